// Package keycodec encodes logical ids (partition id, vector/document id)
// into the byte keys used for region lookup. The exact byte layout is an
// interface contract with the external topology cache: callers never
// interpret the bytes themselves, only compare or pass them through.
//
// The encoding is grounded on the big-endian, lexicographically-ordered key
// layout used throughout the pack for range-partitioned stores (see
// chotki.OKey in the drpcorg/chotki example): fixed-width big-endian integers
// sort the same as byte strings, so byte-wise order equals numeric order.
package keycodec

import "encoding/binary"

// Tag distinguishes key spaces sharing one keyspace (vector index vs
// document index) so region ranges never straddle two logical stores.
type Tag byte

const (
	// TagVector namespaces vector-index partition/point keys.
	TagVector Tag = 'V'
	// TagDocument namespaces document-index partition/point keys.
	TagDocument Tag = 'D'
)

// keyLen is 1 (tag) + 8 (partition id) [+ 8 (point id)].
const (
	startKeyLen = 1 + 8
	pointKeyLen = 1 + 8 + 8
)

// EncodeStart returns the start-of-partition key: encode(tag, partitionID).
// It is the inclusive lower bound of partitionID's half-open range.
func EncodeStart(tag Tag, partitionID int64) []byte {
	key := make([]byte, startKeyLen)
	key[0] = byte(tag)
	binary.BigEndian.PutUint64(key[1:], uint64(partitionID))
	return key
}

// EncodeEnd returns the exclusive upper bound of partitionID's range, which
// is simply the start key of the next partition: encode(tag, partitionID+1).
func EncodeEnd(tag Tag, partitionID int64) []byte {
	return EncodeStart(tag, partitionID+1)
}

// EncodePoint returns the point key used to route a single id:
// encode(tag, partitionID, id).
func EncodePoint(tag Tag, partitionID, id int64) []byte {
	key := make([]byte, pointKeyLen)
	key[0] = byte(tag)
	binary.BigEndian.PutUint64(key[1:9], uint64(partitionID))
	binary.BigEndian.PutUint64(key[9:], uint64(id))
	return key
}
