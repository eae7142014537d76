// Package testutil provides deterministic fakes for topology.Cache and
// rpc.Controller so task and planner tests can script per-region outcomes
// without a real cluster.
package testutil

import (
	"bytes"
	"context"
	"sort"

	"github.com/yuhaijun999/dingo-sdk/topology"
)

// FakeCache is an in-memory topology.Cache over a fixed, non-overlapping set
// of regions supplied at construction. It never refreshes on its own;
// Refresh is a no-op recorded for assertions.
type FakeCache struct {
	regions   []topology.Region
	refreshed []int64
}

// NewFakeCache builds a cache from regions, sorted by StartKey.
func NewFakeCache(regions ...topology.Region) *FakeCache {
	sorted := append([]topology.Region(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].StartKey, sorted[j].StartKey) < 0
	})
	return &FakeCache{regions: sorted}
}

func (c *FakeCache) LookupRegion(ctx context.Context, key []byte) (topology.Region, error) {
	for _, r := range c.regions {
		if bytes.Compare(key, r.StartKey) >= 0 && bytes.Compare(key, r.EndKey) < 0 {
			return r, nil
		}
	}
	return topology.Region{}, topology.ErrRegionNotFound
}

func (c *FakeCache) ScanRegions(ctx context.Context, start, end []byte) ([]topology.Region, error) {
	var out []topology.Region
	cursor := start
	for {
		found := false
		for _, r := range c.regions {
			if bytes.Compare(r.StartKey, cursor) <= 0 && bytes.Compare(cursor, r.EndKey) < 0 {
				out = append(out, r)
				cursor = r.EndKey
				found = true
				break
			}
		}
		if !found || bytes.Compare(cursor, end) >= 0 {
			break
		}
	}
	if len(out) == 0 || bytes.Compare(cursor, end) < 0 {
		return nil, topology.ErrRangeNotCovered
	}
	return out, nil
}

func (c *FakeCache) Refresh(ctx context.Context, regionID int64) error {
	c.refreshed = append(c.refreshed, regionID)
	return nil
}

// Refreshed reports every regionID passed to Refresh, in call order.
func (c *FakeCache) Refreshed() []int64 {
	return c.refreshed
}
