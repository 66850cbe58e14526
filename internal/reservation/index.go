// Package reservation maintains the global time-ordered view of
// outstanding reservations that the scheduler polls for TTR expiry and
// DEADLINE_SOON safety instants (spec.md §3 "Reservation index", §4.4).
//
// A single deadline-ordered heap suffices for both events: since
// safety = deadline-at - 1s is a constant offset from deadline-at, the
// heap's ordering by deadline-at also gives the ordering by safety
// instant, so there is no need for a second heap.
package reservation

import (
	"github.com/beanstalkd-core/beanstalkd/internal/heap"
	"github.com/beanstalkd-core/beanstalkd/internal/job"
)

// Index tracks every currently-reserved job, ordered by DeadlineAt.
type Index struct {
	deadlines *heap.DeadlineHeap
}

func NewIndex() *Index {
	return &Index{deadlines: heap.NewDeadlineHeap()}
}

// Add registers j (already marked Reserved with DeadlineAt set).
func (idx *Index) Add(j *job.Job) { idx.deadlines.PushJob(j) }

// Remove drops j from the index, e.g. on delete/release/bury/touch.
func (idx *Index) Remove(j *job.Job) { idx.deadlines.Remove(j) }

// PeekEarliest returns the job with the soonest TTR deadline, or nil.
func (idx *Index) PeekEarliest() *job.Job { return idx.deadlines.Peek() }

// PopEarliest removes and returns the job with the soonest TTR deadline.
func (idx *Index) PopEarliest() *job.Job { return idx.deadlines.PopJob() }

// Len reports how many reservations are outstanding.
func (idx *Index) Len() int { return idx.deadlines.Len() }
