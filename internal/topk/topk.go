// Package topk merges candidate lists gathered from multiple regions into
// the final ascending-by-distance result set, keeping only the smallest
// distances when a limit is requested.
package topk

import "container/heap"

// Candidate is anything with a distance the merge can compare. Callers keep
// their own payload as part of the concrete type.
type Candidate interface {
	Dist() float32
}

// maxHeap is a bounded max-heap over Candidate: item 0 is always the current
// worst (largest-distance) kept candidate, so a heap-full replacement never
// needs to scan the whole set.
type maxHeap[T Candidate] []T

func (h maxHeap[T]) Len() int            { return len(h) }
func (h maxHeap[T]) Less(i, j int) bool  { return h[i].Dist() > h[j].Dist() }
func (h maxHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap[T]) Push(x any)         { *h = append(*h, x.(T)) }
func (h *maxHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge concatenates every candidate list, sorts ascending by distance, and
// truncates to limit when limit > 0. limit <= 0 means "keep everything"
// (range search). Ties preserve the input's relative order.
func Merge[T Candidate](lists [][]T, limit int) []T {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	all := make([]T, 0, total)
	for _, l := range lists {
		all = append(all, l...)
	}

	if limit <= 0 || len(all) <= limit {
		stableSortByDist(all)
		return all
	}

	h := make(maxHeap[T], 0, limit)
	heap.Init(&h)
	for _, c := range all {
		if h.Len() < limit {
			heap.Push(&h, c)
			continue
		}
		if c.Dist() < h[0].Dist() {
			heap.Pop(&h)
			heap.Push(&h, c)
		}
	}

	// The heap holds the right distances but not necessarily the earliest
	// of several equal ones, nor in arrival order; re-collect from the
	// input so ties at the cut-off keep the first arrivals.
	worst := h[0].Dist()
	kept := make([]T, 0, limit)
	for _, c := range all {
		if c.Dist() < worst {
			kept = append(kept, c)
		}
	}
	for _, c := range all {
		if len(kept) == limit {
			break
		}
		if c.Dist() == worst {
			kept = append(kept, c)
		}
	}
	stableSortByDist(kept)
	return kept
}

// stableSortByDist is a small stable insertion sort; result sets returned by
// a single merge are bounded by topk (typically tens to low hundreds), so
// this avoids pulling in sort.Slice's reflection-based comparator overhead
// for the common case while keeping ties in arrival order.
func stableSortByDist[T Candidate](items []T) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && items[j].Dist() > key.Dist() {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
