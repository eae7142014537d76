// Package blobstore abstracts fetching benchmark dataset archives (sift,
// glove, gist, mnist, laion, and the JSON-corpus datasets) from an object
// store. The dataset loaders in the parent package only ever read; they
// never write blobs back, so this interface is read-only.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist. Implementations
// should return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blobstore: not found")

// Store fetches immutable dataset archives by name.
type Store interface {
	Open(ctx context.Context, name string) (Blob, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a dataset archive.
type Blob interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Mappable is an optional interface for Blobs that can hand back their full
// contents as a single byte slice without an intermediate copy, useful for
// the HDF5 decoder which needs random access over the whole file.
type Mappable interface {
	Bytes(ctx context.Context) ([]byte, error)
}
