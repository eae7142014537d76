package vector

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/yuhaijun999/dingo-sdk/codec"
)

// VectorFilter mirrors the wire enum selecting what a search filters on.
// Unset is the zero value, matching FilterSourceNone.
type VectorFilter int

const (
	VectorFilterUnset VectorFilter = iota
	VectorFilterScalar
	VectorFilterTable
	VectorFilterVectorId
)

// VectorFilterMode mirrors the wire enum for when a filter is applied.
type VectorFilterMode int

const (
	VectorFilterModeUnset VectorFilterMode = iota
	VectorFilterModeQueryPre
	VectorFilterModeQueryPost
)

// IndexSubParam is the per-index-kind slice of SearchParam actually sent on
// the wire; exactly one concrete type is populated per WireSearchParameter,
// selected by the resolved IndexDescriptor.Kind.
type IndexSubParam interface{ isIndexSubParam() }

type FlatSubParam struct{ ParallelOnQueries int32 }
type IvfFlatSubParam struct {
	Nprobe            int32
	ParallelOnQueries int32
}
type IvfPqSubParam struct {
	Nprobe            int32
	ParallelOnQueries int32
	RecallNum         int32
}
type HnswSubParam struct{ EfSearch int32 }
type DiskAnnSubParam struct{ Beamwidth int32 }
type BruteForceSubParam struct{}

func (FlatSubParam) isIndexSubParam()       {}
func (IvfFlatSubParam) isIndexSubParam()    {}
func (IvfPqSubParam) isIndexSubParam()      {}
func (HnswSubParam) isIndexSubParam()       {}
func (DiskAnnSubParam) isIndexSubParam()    {}
func (BruteForceSubParam) isIndexSubParam() {}

// WireSearchParameter is the fully resolved, index-kind-specific request
// shape sent to every region for a search RPC.
type WireSearchParameter struct {
	TopN              uint32
	WithoutVectorData bool
	WithoutScalarData bool
	WithoutTableData  bool
	EnableRangeSearch bool
	VectorFilter      VectorFilter
	VectorFilterMode  VectorFilterMode
	VectorIDs         []int64
	// VectorIDsBitmap is a Roaring-encoded copy of VectorIDs, sent
	// alongside the raw list so a server that understands the compact
	// form can skip re-building it; only populated when the filter
	// source is vector-id (see BuildWireSearchParameter).
	VectorIDsBitmap []byte
	IsNegation      bool
	IsSorted        bool
	UseBruteForce   bool
	SubParam        IndexSubParam
	Coprocessor     []byte
}

// BuildWireSearchParameter maps a SearchParam plus the resolved index kind
// into the request shape every region RPC carries, compiling the optional
// filter expression into a coprocessor blob along the way.
func BuildWireSearchParameter(desc *IndexDescriptor, p SearchParam, exprCodec codec.Codec) (WireSearchParameter, error) {
	wp := WireSearchParameter{
		TopN:              p.TopK,
		WithoutVectorData: !p.WithVectorData,
		WithoutScalarData: !p.WithScalarData,
		WithoutTableData:  !p.WithTableData,
		EnableRangeSearch: p.EnableRangeSearch,
		VectorIDs:         p.VectorIDs,
		IsNegation:        p.IsNegation,
		IsSorted:          p.IsSorted,
		UseBruteForce:     p.UseBruteForce,
	}

	switch p.FilterSource {
	case FilterSourceNone:
		wp.VectorFilter = VectorFilterUnset
	case FilterSourceScalar:
		wp.VectorFilter = VectorFilterScalar
	case FilterSourceTable:
		wp.VectorFilter = VectorFilterTable
	case FilterSourceVectorId:
		wp.VectorFilter = VectorFilterVectorId
		bitmap, err := encodeVectorIDBitmap(p.VectorIDs)
		if err != nil {
			return WireSearchParameter{}, err
		}
		wp.VectorIDsBitmap = bitmap
	default:
		return WireSearchParameter{}, fmt.Errorf("vector: unsupported filter source %v", p.FilterSource)
	}

	switch p.FilterType {
	case FilterTypeNone:
		wp.VectorFilterMode = VectorFilterModeUnset
	case FilterTypeQueryPre:
		wp.VectorFilterMode = VectorFilterModeQueryPre
	case FilterTypeQueryPost:
		wp.VectorFilterMode = VectorFilterModeQueryPost
	default:
		return WireSearchParameter{}, fmt.Errorf("vector: unsupported filter type %v", p.FilterType)
	}

	sub, err := buildSubParam(desc.Kind, p.ExtraParams, p.Beamwidth)
	if err != nil {
		return WireSearchParameter{}, err
	}
	wp.SubParam = sub

	if p.LangchainExprJSON != "" {
		blob, err := compileFilterExpr(p.LangchainExprJSON, desc.ScalarSchema, exprCodec)
		if err != nil {
			return WireSearchParameter{}, err
		}
		wp.Coprocessor = blob
	}

	return wp, nil
}

func buildSubParam(kind IndexKind, extra map[ExtraKey]int32, beamwidth uint32) (IndexSubParam, error) {
	switch kind {
	case IndexKindFlat, IndexKindBinaryFlat:
		return FlatSubParam{ParallelOnQueries: extra[ExtraKeyParallelOnQueries]}, nil
	case IndexKindIvfFlat, IndexKindBinaryIvfFlat:
		return IvfFlatSubParam{
			Nprobe:            extra[ExtraKeyNprobe],
			ParallelOnQueries: extra[ExtraKeyParallelOnQueries],
		}, nil
	case IndexKindIvfPq:
		return IvfPqSubParam{
			Nprobe:            extra[ExtraKeyNprobe],
			ParallelOnQueries: extra[ExtraKeyParallelOnQueries],
			RecallNum:         extra[ExtraKeyRecallNum],
		}, nil
	case IndexKindHnsw:
		return HnswSubParam{EfSearch: extra[ExtraKeyEfSearch]}, nil
	case IndexKindDiskAnn:
		return DiskAnnSubParam{Beamwidth: int32(beamwidth)}, nil
	case IndexKindBruteForce:
		return BruteForceSubParam{}, nil
	default:
		return nil, fmt.Errorf("vector: unsupported index kind %v", kind)
	}
}

// encodeVectorIDBitmap compacts a vector_ids filter list into Roaring's
// binary format. ids outside uint32 range are rejected: partitions are
// expected to stay well under 2^32 live points.
func encodeVectorIDBitmap(ids []int64) ([]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	bitmap := roaring.New()
	for _, id := range ids {
		if id < 0 || id > int64(^uint32(0)) {
			return nil, fmt.Errorf("vector: vector id %d out of range for a compact filter", id)
		}
		bitmap.Add(uint32(id))
	}

	var buf bytes.Buffer
	if _, err := bitmap.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("vector: encoding vector_ids filter: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeVectorIDBitmap reverses encodeVectorIDBitmap, used by tests and by
// any in-process reference server exercising the filter.
func decodeVectorIDBitmap(buf []byte) ([]int64, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	bitmap := roaring.New()
	if _, err := bitmap.ReadFrom(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("vector: decoding vector_ids filter: %w", err)
	}
	values := bitmap.ToArray()
	ids := make([]int64, len(values))
	for i, v := range values {
		ids[i] = int64(v)
	}
	return ids, nil
}

// stripDiskAnnSubParam clears the DiskANN-specific sub-message for the
// brute-force fallback path, mirroring the primary request otherwise.
func stripDiskAnnSubParam(p WireSearchParameter) WireSearchParameter {
	p.SubParam = BruteForceSubParam{}
	p.UseBruteForce = true
	return p
}

// compileFilterExpr validates exprJSON and re-encodes it through exprCodec
// into the opaque coprocessor blob sent on the wire. scalarSchema narrows
// which columns the expression may reference; an expression referencing an
// unknown column is rejected here rather than at the server.
func compileFilterExpr(exprJSON string, scalarSchema []ScalarSchemaColumn, exprCodec codec.Codec) ([]byte, error) {
	var parsed any
	if err := exprCodec.Unmarshal([]byte(exprJSON), &parsed); err != nil {
		return nil, fmt.Errorf("vector: invalid filter expression: %w", err)
	}

	if len(scalarSchema) > 0 {
		if err := validateExprColumns(parsed, scalarSchema); err != nil {
			return nil, err
		}
	}

	return exprCodec.Marshal(parsed)
}

// validateExprColumns walks a parsed langchain-style expression tree
// looking for {"field": "<col>"} references and rejects any column not
// present in scalarSchema.
func validateExprColumns(node any, scalarSchema []ScalarSchemaColumn) error {
	known := make(map[string]bool, len(scalarSchema))
	for _, c := range scalarSchema {
		known[c.Key] = true
	}

	var walk func(any) error
	walk = func(n any) error {
		switch v := n.(type) {
		case map[string]any:
			if field, ok := v["field"].(string); ok && !known[field] {
				return fmt.Errorf("vector: filter expression references unknown column %q", field)
			}
			for _, child := range v {
				if err := walk(child); err != nil {
					return err
				}
			}
		case []any:
			for _, child := range v {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(node)
}
