// Package fanout turns a logical set of ids or partitions into the set of
// per-region RPCs a task must issue, by consulting a topology.Cache.
package fanout

import (
	"context"
	"sort"

	"github.com/yuhaijun999/dingo-sdk/internal/keycodec"
	"github.com/yuhaijun999/dingo-sdk/topology"
)

// IDGroup is one region's share of an id-keyed fanout (upsert, batch-get):
// every id in IDs routes to Region.
type IDGroup struct {
	Region topology.Region
	IDs    []int64
}

// PlanByID groups ids by owning region for id-keyed operations. partitionOf
// resolves the partition an id belongs to (owned by the caller's index
// descriptor, not by the codec). Lookup failure for any single id aborts
// the whole plan: id-keyed tasks do not partially fan out.
func PlanByID(ctx context.Context, cache topology.Cache, tag keycodec.Tag, ids []int64, partitionOf func(id int64) int64) ([]IDGroup, error) {
	byRegion := make(map[int64]*IDGroup, len(ids))
	order := make([]int64, 0, len(ids))

	for _, id := range ids {
		key := keycodec.EncodePoint(tag, partitionOf(id), id)
		region, err := cache.LookupRegion(ctx, key)
		if err != nil {
			return nil, err
		}

		g, ok := byRegion[region.RegionID]
		if !ok {
			g = &IDGroup{Region: region}
			byRegion[region.RegionID] = g
			order = append(order, region.RegionID)
		}
		g.IDs = append(g.IDs, id)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	groups := make([]IDGroup, 0, len(order))
	for _, rid := range order {
		groups = append(groups, *byRegion[rid])
	}
	return groups, nil
}

// PartitionPlan is one partition's set of covering regions, broadcast targets
// for a search fanout within that partition.
type PartitionPlan struct {
	PartitionID int64
	Regions     []topology.Region
}

// PlanByPartition resolves, for each partition id, the regions whose ranges
// jointly cover that partition. Search broadcasts to every region in a
// partition's plan.
func PlanByPartition(ctx context.Context, cache topology.Cache, tag keycodec.Tag, partitionIDs []int64) ([]PartitionPlan, error) {
	plans := make([]PartitionPlan, 0, len(partitionIDs))
	for _, p := range partitionIDs {
		start := keycodec.EncodeStart(tag, p)
		end := keycodec.EncodeEnd(tag, p)

		regions, err := cache.ScanRegions(ctx, start, end)
		if err != nil {
			return nil, err
		}
		plans = append(plans, PartitionPlan{PartitionID: p, Regions: regions})
	}
	return plans, nil
}
