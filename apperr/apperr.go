// Package apperr holds the small set of sentinel errors shared by every
// task package, kept separate from the root client package to avoid an
// import cycle (vector/document need it; the root package imports both).
package apperr

import "errors"

// ErrInvalidArgument is returned synchronously from Init for malformed
// input: empty batches, non-positive ids, duplicate ids.
var ErrInvalidArgument = errors.New("invalid argument")
