package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/yuhaijun999/dingo-sdk/dataset/blobstore"
	"github.com/yuhaijun999/dingo-sdk/vector"
)

// archiveCompression names the at-rest compression scheme applied to a
// benchmark archive before decoding.
type archiveCompression int

const (
	compressionNone archiveCompression = iota
	compressionZstd
	compressionLZ4
)

// HDF5Decoder parses one HDF5-formatted dataset archive already fetched
// into memory via blobstore. This module does not vendor a full HDF5
// parser; callers plug one in via WithHDF5Decoder.
type HDF5Decoder interface {
	Decode(raw []byte) (train []vector.VectorWithId, tests []TestEntry, dimension int, err error)
}

// HDF5Loader reads one of the HDF5-backed ann-benchmarks datasets
// (sift/glove/gist/mnist/laion). Without a decoder plugged in via
// WithHDF5Decoder, Init fails fast with ErrUnsupportedFormat rather than
// silently returning no data.
type HDF5Loader struct {
	store       blobstore.Store
	name        string
	compression archiveCompression

	decoder HDF5Decoder

	train     []vector.VectorWithId
	tests     []TestEntry
	dimension int
	cursor    int
}

// HDF5Option configures an HDF5Loader.
type HDF5Option func(*HDF5Loader)

// WithHDF5Decoder plugs in the format decoder. Required before Init.
func WithHDF5Decoder(d HDF5Decoder) HDF5Option {
	return func(l *HDF5Loader) { l.decoder = d }
}

// WithZstdCompressed marks the archive as zstd-compressed at rest; Init
// decompresses it before handing raw bytes to the decoder. Benchmark
// corpora are frequently distributed this way to cut object-store
// transfer cost.
func WithZstdCompressed() HDF5Option {
	return func(l *HDF5Loader) { l.compression = compressionZstd }
}

// WithLZ4Compressed marks the archive as lz4-frame-compressed at rest.
// Favors decode speed over ratio compared to WithZstdCompressed, useful
// when the same archive is re-fetched repeatedly across benchmark runs.
func WithLZ4Compressed() HDF5Option {
	return func(l *HDF5Loader) { l.compression = compressionLZ4 }
}

// NewHDF5Loader builds a loader that fetches name from store.
func NewHDF5Loader(store blobstore.Store, name string, opts ...HDF5Option) *HDF5Loader {
	l := &HDF5Loader{store: store, name: name}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init fetches and decodes the archive.
func (l *HDF5Loader) Init(ctx context.Context) error {
	if l.decoder == nil {
		return ErrUnsupportedFormat
	}

	blob, err := l.store.Open(ctx, l.name)
	if err != nil {
		return err
	}
	defer blob.Close()

	raw := make([]byte, blob.Size())
	if _, err := blob.ReadAt(raw, 0); err != nil {
		return err
	}

	switch l.compression {
	case compressionZstd:
		raw, err = decompressZstd(raw)
	case compressionLZ4:
		raw, err = decompressLZ4(raw)
	}
	if err != nil {
		return fmt.Errorf("dataset: decompressing %s: %w", l.name, err)
	}

	train, tests, dim, err := l.decoder.Decode(raw)
	if err != nil {
		return err
	}
	l.train, l.tests, l.dimension = train, tests, dim
	return nil
}

func (l *HDF5Loader) Dimension() int  { return l.dimension }
func (l *HDF5Loader) TrainCount() int { return len(l.train) }
func (l *HDF5Loader) TestCount() int  { return len(l.tests) }

// NextBatch implements Dataset.
func (l *HDF5Loader) NextBatch(ctx context.Context, n int) ([]vector.VectorWithId, bool, error) {
	if l.cursor >= len(l.train) {
		return nil, false, nil
	}
	end := l.cursor + n
	if end > len(l.train) {
		end = len(l.train)
	}
	batch := l.train[l.cursor:end]
	l.cursor = end
	return batch, l.cursor < len(l.train), nil
}

// TestData implements Dataset.
func (l *HDF5Loader) TestData(ctx context.Context) ([]TestEntry, error) {
	return l.tests, nil
}

func decompressZstd(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

func decompressLZ4(raw []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
}
