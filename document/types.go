// Package document implements the client-side batch-query task for a
// range-partitioned document index.
package document

import (
	"sort"

	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
)

// ScalarValue mirrors vector.ScalarValue: an opaque per-column payload
// value round-tripped by the codec package.
type ScalarValue = any

// DocWithId is one document returned by a batch query.
type DocWithId struct {
	ID         int64
	ScalarData map[string]ScalarValue
	TableData  []byte
}

// IndexDescriptor is resolved once per task from the (external, injected)
// index cache.
type IndexDescriptor struct {
	ID           int64
	PartitionIDs []int64

	// PartitionOf overrides the default hash-based id->partition routing
	// hint, mirroring vector.IndexDescriptor.PartitionOf.
	PartitionOf func(id int64) int64
}

// PartitionForID deterministically assigns id to one of the index's known
// partitions, mirroring vector.IndexDescriptor.PartitionForID.
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

// PointKey returns the routing key for a single document id within
// partitionID.
func (d *IndexDescriptor) PointKey(partitionID, id int64) []byte {
	return keycodec.EncodePoint(keycodec.TagDocument, partitionID, id)
}
