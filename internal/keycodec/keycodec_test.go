package keycodec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePoint_MonotonicWithinPartition(t *testing.T) {
	// Property 7: for fixed partition p and id1 < id2, encode(p,id1) < encode(p,id2).
	const partition = int64(7)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		id1 := r.Int63n(1 << 40)
		id2 := id1 + 1 + r.Int63n(1<<40)

		k1 := EncodePoint(TagVector, partition, id1)
		k2 := EncodePoint(TagVector, partition, id2)

		assert.Equal(t, -1, bytes.Compare(k1, k2), "encode(%d) should sort before encode(%d)", id1, id2)
	}
}

func TestEncodeStart_MonotonicAcrossPartitions(t *testing.T) {
	for p := int64(0); p < 100; p++ {
		require.True(t, bytes.Compare(EncodeStart(TagVector, p), EncodeStart(TagVector, p+1)) < 0)
	}
}

func TestEncodeEnd_IsNextPartitionStart(t *testing.T) {
	for p := int64(0); p < 20; p++ {
		assert.Equal(t, EncodeStart(TagVector, p+1), EncodeEnd(TagVector, p))
	}
}

func TestHalfOpenRangeContainment(t *testing.T) {
	const partition = int64(3)
	start := EncodeStart(TagVector, partition)
	end := EncodeEnd(TagVector, partition)

	for _, id := range []int64{1, 2, 1000, 1 << 30} {
		key := EncodePoint(TagVector, partition, id)
		assert.True(t, bytes.Compare(start, key) <= 0, "start <= point key")
		assert.True(t, bytes.Compare(key, end) < 0, "point key < end")
	}

	// A point key belonging to the next partition must fall outside [start, end).
	next := EncodePoint(TagVector, partition+1, 1)
	assert.False(t, bytes.Compare(start, next) <= 0 && bytes.Compare(next, end) < 0)
}

func TestTagsPartitionKeyspaces(t *testing.T) {
	vecKey := EncodeStart(TagVector, 0)
	docKey := EncodeStart(TagDocument, 0)
	assert.NotEqual(t, vecKey, docKey)
}
