// Package heap implements the two ordered containers spec.md §4 needs:
// a ready heap ordered by (priority, id) and a deadline heap ordered by
// an absolute time (ready-at for delayed jobs, deadline-at for
// reservations). Both are built on container/heap — the standard
// library already supplies the sift algorithm spec.md §9 asks for
// ("store a heap index inside the job record and sift on removal");
// no example in the retrieval pack implements a custom heap that would
// be worth diverging from container/heap for.
package heap

import (
	stdheap "container/heap"
	"time"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
)

// ReadyHeap orders jobs by (Pri, ID) ascending, per spec.md §3: smaller
// priority is more urgent, ties broken by earlier (smaller) id.
type ReadyHeap struct{ items []*job.Job }

func NewReadyHeap() *ReadyHeap { return &ReadyHeap{} }

func (h *ReadyHeap) Len() int { return len(h.items) }

func (h *ReadyHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Pri != b.Pri {
		return a.Pri < b.Pri
	}
	return a.ID < b.ID
}

func (h *ReadyHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].HeapIndex = i
	h.items[j].HeapIndex = j
}

func (h *ReadyHeap) Push(x any) {
	j := x.(*job.Job)
	j.HeapIndex = len(h.items)
	h.items = append(h.items, j)
}

func (h *ReadyHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	item.HeapIndex = -1
	return item
}

// PushJob inserts j, keyed by its current (Pri, ID).
func (h *ReadyHeap) PushJob(j *job.Job) { stdheap.Push(h, j) }

// PopJob removes and returns the job with the smallest (Pri, ID).
func (h *ReadyHeap) PopJob() *job.Job { return stdheap.Pop(h).(*job.Job) }

// Peek returns the top job without removing it.
func (h *ReadyHeap) Peek() *job.Job {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// Items exposes the backing slice for read-only iteration (stats).
// The heap ordering invariant only guarantees items[0] is the min;
// callers must not assume any further ordering.
func (h *ReadyHeap) Items() []*job.Job { return h.items }

// Remove removes j from wherever it currently sits in the heap,
// identified by its HeapIndex, rather than rebuilding (spec.md §9).
func (h *ReadyHeap) Remove(j *job.Job) {
	if j.HeapIndex < 0 || j.HeapIndex >= len(h.items) {
		return
	}
	stdheap.Remove(h, j.HeapIndex)
}

// DeadlineHeap orders jobs by an absolute time ascending: ReadyAt for a
// tube's delay heap, DeadlineAt for the reservation index.
type DeadlineHeap struct {
	items []*job.Job
	key   func(*job.Job) time.Time
}

// NewDelayHeap orders by Job.ReadyAt (tube-owned delay pool).
func NewDelayHeap() *DeadlineHeap {
	return &DeadlineHeap{key: func(j *job.Job) time.Time { return j.ReadyAt }}
}

// NewDeadlineHeap orders by Job.DeadlineAt (reservation TTR index).
func NewDeadlineHeap() *DeadlineHeap {
	return &DeadlineHeap{key: func(j *job.Job) time.Time { return j.DeadlineAt }}
}

func (h *DeadlineHeap) Len() int { return len(h.items) }

func (h *DeadlineHeap) Less(i, j int) bool {
	return h.key(h.items[i]).Before(h.key(h.items[j]))
}

func (h *DeadlineHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].HeapIndex = i
	h.items[j].HeapIndex = j
}

func (h *DeadlineHeap) Push(x any) {
	j := x.(*job.Job)
	j.HeapIndex = len(h.items)
	h.items = append(h.items, j)
}

func (h *DeadlineHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	item.HeapIndex = -1
	return item
}

func (h *DeadlineHeap) PushJob(j *job.Job) { stdheap.Push(h, j) }

func (h *DeadlineHeap) PopJob() *job.Job { return stdheap.Pop(h).(*job.Job) }

func (h *DeadlineHeap) Peek() *job.Job {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// Items exposes the backing slice for read-only iteration (stats, kick).
// Only items[0] is guaranteed to be the minimum.
func (h *DeadlineHeap) Items() []*job.Job { return h.items }

func (h *DeadlineHeap) Remove(j *job.Job) {
	if j.HeapIndex < 0 || j.HeapIndex >= len(h.items) {
		return
	}
	stdheap.Remove(h, j.HeapIndex)
}
