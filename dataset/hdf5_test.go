package dataset

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuhaijun999/dingo-sdk/dataset/blobstore"
	"github.com/yuhaijun999/dingo-sdk/vector"
)

// memStore is a trivial in-memory blobstore.Store fake for these tests.
type memStore struct {
	blobs map[string][]byte
}

func (s *memStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	data, ok := s.blobs[name]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return &memBlob{data: data}, nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for name := range s.blobs {
		names = append(names, name)
	}
	return names, nil
}

type memBlob struct{ data []byte }

func (b *memBlob) Close() error { return nil }
func (b *memBlob) Size() int64  { return int64(len(b.data)) }
func (b *memBlob) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, b.data[off:]), nil
}

// echoDecoder returns the raw bytes it was given back as a single vector,
// so tests can assert on exactly what reached the decoder.
type echoDecoder struct{}

func (echoDecoder) Decode(raw []byte) ([]vector.VectorWithId, []TestEntry, int, error) {
	return []vector.VectorWithId{{ID: 1, Vector: vector.Vector{FloatValues: []float32{float32(len(raw))}}}}, nil, 1, nil
}

func TestHDF5Loader_WithoutDecoderFailsFast(t *testing.T) {
	loader := NewHDF5Loader(&memStore{blobs: map[string][]byte{"sift.hdf5": []byte("data")}}, "sift.hdf5")
	err := loader.Init(context.Background())
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestHDF5Loader_DecodesUncompressedArchive(t *testing.T) {
	store := &memStore{blobs: map[string][]byte{"sift.hdf5": []byte("hello")}}
	loader := NewHDF5Loader(store, "sift.hdf5", WithHDF5Decoder(echoDecoder{}))
	require.NoError(t, loader.Init(context.Background()))

	batch, more, err := loader.NextBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, batch, 1)
	assert.Equal(t, float32(5), batch[0].Vector.FloatValues[0])
}

func TestHDF5Loader_DecompressesZstdArchiveBeforeDecoding(t *testing.T) {
	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	original := []byte("uncompressed payload")
	_, err = enc.Write(original)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	store := &memStore{blobs: map[string][]byte{"glove.hdf5.zst": compressed.Bytes()}}
	loader := NewHDF5Loader(store, "glove.hdf5.zst", WithHDF5Decoder(echoDecoder{}), WithZstdCompressed())
	require.NoError(t, loader.Init(context.Background()))

	batch, _, err := loader.NextBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, float32(len(original)), batch[0].Vector.FloatValues[0])
}

func TestHDF5Loader_DecompressesLZ4ArchiveBeforeDecoding(t *testing.T) {
	var compressed bytes.Buffer
	w := lz4.NewWriter(&compressed)
	original := []byte("uncompressed payload")
	_, err := w.Write(original)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	store := &memStore{blobs: map[string][]byte{"mnist.hdf5.lz4": compressed.Bytes()}}
	loader := NewHDF5Loader(store, "mnist.hdf5.lz4", WithHDF5Decoder(echoDecoder{}), WithLZ4Compressed())
	require.NoError(t, loader.Init(context.Background()))

	batch, _, err := loader.NextBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, float32(len(original)), batch[0].Vector.FloatValues[0])
}
