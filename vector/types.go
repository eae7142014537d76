// Package vector implements the client-side upsert and search tasks for a
// range-partitioned vector index: request validation, fanout across
// regions, and result aggregation.
package vector

import (
	"sort"

	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
)

// ValueType selects which payload field of a Vector is populated.
type ValueType int

const (
	ValueTypeFloat ValueType = iota
	ValueTypeUint8
	ValueTypeInt8
)

// ScalarValue holds one column of a vector's scalar payload. The concrete
// Go type (string, int64, float64, bool, []byte) is chosen by the caller
// and round-tripped opaquely by the codec package.
type ScalarValue = any

// Vector is a single embedding plus its optional scalar attributes. Exactly
// one of FloatValues/BinaryValues is populated, matching ValueType, and its
// length equals Dimension (one byte per value for Uint8/Int8).
type Vector struct {
	Dimension    uint32
	ValueType    ValueType
	FloatValues  []float32
	BinaryValues []byte
	ScalarData   map[string]ScalarValue
}

// VectorWithId is the unit of upsert and the payload half of a search hit.
// ID is the primary key and the routing key; it must be strictly positive.
type VectorWithId struct {
	ID         int64
	Vector     Vector
	ScalarData map[string]ScalarValue
}

// Metric records which distance function produced a VectorWithDistance's
// Distance; the server owns the sign convention, the client only sorts.
type Metric int

const (
	MetricNone Metric = iota
	MetricL2
	MetricInnerProduct
	MetricCosine
	MetricHamming
)

// VectorWithDistance is one search hit. Ordering across all metrics is
// ascending by Distance; ties keep arrival order.
type VectorWithDistance struct {
	VectorData VectorWithId
	Distance   float32
	Metric     Metric
}

// Dist implements internal/topk.Candidate.
func (v VectorWithDistance) Dist() float32 { return v.Distance }

// FilterSource selects which field a search filters on.
type FilterSource int

const (
	FilterSourceNone FilterSource = iota
	FilterSourceScalar
	FilterSourceTable
	FilterSourceVectorId
)

// FilterType selects when a filter is applied relative to the vector query.
type FilterType int

const (
	FilterTypeNone FilterType = iota
	FilterTypeQueryPre
	FilterTypeQueryPost
)

// ExtraKey names an index-kind-specific tuning parameter. Keys that don't
// apply to the resolved index kind are silently ignored.
type ExtraKey int

const (
	ExtraKeyNprobe ExtraKey = iota
	ExtraKeyParallelOnQueries
	ExtraKeyEfSearch
	ExtraKeyRecallNum
)

// SearchParam configures a search task. It is a flat superset of every
// index kind's parameters; BuildWireSearchParameter (wire.go) narrows it to the
// fields the resolved index kind actually uses.
type SearchParam struct {
	TopK             uint32
	WithVectorData   bool
	WithScalarData   bool
	SelectedKeys     []string // honored only when WithScalarData
	WithTableData    bool
	EnableRangeSearch bool
	FilterSource     FilterSource
	FilterType       FilterType
	VectorIDs        []int64
	IsNegation       bool
	IsSorted         bool
	UseBruteForce    bool
	Beamwidth        uint32 // DiskANN only
	LangchainExprJSON string
	ExtraParams      map[ExtraKey]int32
}

// IndexKind identifies the on-disk/in-memory algorithm backing an index,
// which determines both its RPC sub-parameters (see wire.go) and whether it
// can return ErrDiskAnnNoData.
type IndexKind int

const (
	IndexKindFlat IndexKind = iota
	IndexKindIvfFlat
	IndexKindIvfPq
	IndexKindHnsw
	IndexKindDiskAnn
	IndexKindBruteForce
	IndexKindBinaryFlat
	IndexKindBinaryIvfFlat
)

// ScalarSchemaColumn describes one column available to a langchain filter
// expression compiled against this index.
type ScalarSchemaColumn struct {
	Key   string
	Type  string
	Speed bool
}

// IndexDescriptor is resolved once per task from the (external, injected)
// index cache and carries everything routing and wire-mapping need.
type IndexDescriptor struct {
	ID           int64
	Kind         IndexKind
	PartitionIDs []int64
	ScalarSchema []ScalarSchemaColumn

	// PartitionOf overrides the default hash-based id->partition routing
	// hint. Left nil, PartitionForID falls back to a stable hash over
	// PartitionIDs. Index caches that already know the true id ranges per
	// partition set this directly instead.
	PartitionOf func(id int64) int64
}

// PartitionForID resolves the partition id routes to. The true assignment
// is owned by the server; this is a stable routing hint used to build a key
// that the topology cache resolves to the correct region. A hint that lands
// on the wrong partition costs nothing beyond a RegionNotFound abort, since
// the server-side partition table is authoritative for placement.
func (d *IndexDescriptor) PartitionForID(id int64) int64 {
	if d.PartitionOf != nil {
		return d.PartitionOf(id)
	}
	if len(d.PartitionIDs) == 0 {
		return 0
	}
	sorted := append([]int64(nil), d.PartitionIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[uint64(id)%uint64(len(sorted))]
}

// StartKey and EndKey return the half-open byte range owned by partitionID
// within this index's keyspace.
func (d *IndexDescriptor) StartKey(partitionID int64) []byte {
	return keycodec.EncodeStart(keycodec.TagVector, partitionID)
}

func (d *IndexDescriptor) EndKey(partitionID int64) []byte {
	return keycodec.EncodeEnd(keycodec.TagVector, partitionID)
}

// PointKey returns the routing key for a single vector id within partitionID.
func (d *IndexDescriptor) PointKey(partitionID, id int64) []byte {
	return keycodec.EncodePoint(keycodec.TagVector, partitionID, id)
}
