package smsretry

import "container/heap"

// heapEntry is one slot in the engine's priority queue: a pending record
// plus the strictly increasing submission sequence number used to break ties
// between records sharing the same next_retry_at (spec.md §3 invariant 5).
type heapEntry struct {
	record *Record
	seq    uint64
	index  int // maintained by container/heap for O(log n) removal
}

// recordHeap is a min-heap ordered by (next_retry_at, seq).
type recordHeap []*heapEntry

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	ti, tj := h[i].record.NextRetryAt, h[j].record.NextRetryAt
	if ti != tj {
		return ti < tj
	}
	return h[i].seq < h[j].seq
}

func (h recordHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *recordHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*recordHeap)(nil)
