// Package tube implements the per-tube job containers of spec.md §3-4.2:
// a priority-ordered ready heap, a ready-at-ordered delay heap, a FIFO
// buried list, pause state, and the FIFO waiter queue reserve matching
// draws from. It plays the role the teacher's internal/sched.Pool
// played for HTTP task pools (per-resource queues with a mutex and
// cumulative counters), generalized from three fixed priority channels
// to the spec's (pri,id)-ordered heap plus delay/buried pools.
package tube

import (
	"container/list"
	"time"

	"github.com/beanstalkd-core/beanstalkd/internal/heap"
	"github.com/beanstalkd-core/beanstalkd/internal/job"
)

// Cumulative holds the tube's monotonically increasing command counters
// (spec.md §3); per-job lifecycle counters (reserves/timeouts/...) live
// on job.Job itself and are not aggregated per tube.
type Cumulative struct {
	TotalJobs    uint64
	CmdDelete    uint64
	CmdPauseTube uint64
}

// Tube is a named queue. All mutation happens under the registry's
// single coordination discipline (spec.md §5); Tube itself holds no
// lock — it is always accessed from within that critical section.
type Tube struct {
	Name string

	Ready  *heap.ReadyHeap
	Delay  *heap.DeadlineHeap
	Buried *list.List // of *job.Job, FIFO: front = oldest

	// PausedUntil is the zero Time when the tube is not paused.
	PausedUntil time.Time

	// Waiters is the FIFO of connections awaiting reserve on this tube,
	// serviced in order whenever a ready job appears (spec.md §4.2).
	Waiters []job.ConnID

	// UsingCount/WatchingCount are the number of connections with this
	// tube as their used-tube / in their watch list, respectively.
	UsingCount    int
	WatchingCount int

	// JobCount is every live job logically belonging to this tube
	// regardless of state (ready/delayed/reserved/buried) — used for
	// refcount. ReservedCount feeds the reserved-job-count stat, since
	// reserved jobs are not physically held in any of this tube's
	// containers.
	JobCount     int
	ReservedCount int

	Cumulative Cumulative
}

// New creates an empty, unpaused tube.
func New(name string) *Tube {
	return &Tube{
		Name:   name,
		Ready:  heap.NewReadyHeap(),
		Delay:  heap.NewDelayHeap(),
		Buried: list.New(),
	}
}

// IsPaused reports whether t rejects reserve matching at instant now.
// Promotion of delayed jobs still proceeds while paused (spec.md §4.2).
func (t *Tube) IsPaused(now time.Time) bool {
	return !t.PausedUntil.IsZero() && now.Before(t.PausedUntil)
}

// Pause sets or clears the pause deadline; seconds == 0 clears it.
func (t *Tube) Pause(now time.Time, d time.Duration) {
	if d <= 0 {
		t.PausedUntil = time.Time{}
		return
	}
	t.PausedUntil = now.Add(d)
}

// Refcount implements the GC rule of spec.md §3: a tube with zero
// jobs and zero using/watching connections is destroyed, except
// "default".
func (t *Tube) Refcount() int {
	return t.JobCount + t.UsingCount + t.WatchingCount
}

// Empty reports whether t is eligible for GC (refcount zero and not
// the default tube, checked by the caller).
func (t *Tube) Empty() bool { return t.Refcount() == 0 }

// EnqueueWaiter appends c to the FIFO if it is not already present.
func (t *Tube) EnqueueWaiter(c job.ConnID) {
	for _, w := range t.Waiters {
		if w == c {
			return
		}
	}
	t.Waiters = append(t.Waiters, c)
}

// RemoveWaiter drops c from this tube's waiter list, if present.
func (t *Tube) RemoveWaiter(c job.ConnID) {
	for i, w := range t.Waiters {
		if w == c {
			t.Waiters = append(t.Waiters[:i], t.Waiters[i+1:]...)
			return
		}
	}
}

// PopWaiter removes and returns the oldest waiter, or the zero value
// and false if the list is empty.
func (t *Tube) PopWaiter() (job.ConnID, bool) {
	if len(t.Waiters) == 0 {
		return job.ConnID{}, false
	}
	c := t.Waiters[0]
	t.Waiters = t.Waiters[1:]
	return c, true
}

// CurrentJobsBreakdown summarizes per-state job counts for stats-tube.
type CurrentJobsBreakdown struct {
	Urgent   uint64
	Ready    uint64
	Reserved uint64
	Delayed  uint64
	Buried   uint64
}

// Breakdown computes the current-jobs-* family of stats-tube fields.
func (t *Tube) Breakdown() CurrentJobsBreakdown {
	var b CurrentJobsBreakdown
	b.Ready = uint64(t.Ready.Len())
	b.Delayed = uint64(t.Delay.Len())
	b.Reserved = uint64(t.ReservedCount)
	b.Buried = uint64(t.Buried.Len())
	for e := t.Buried.Front(); e != nil; e = e.Next() {
		if e.Value.(*job.Job).IsUrgent() {
			b.Urgent++
		}
	}
	for _, j := range t.Ready.Items() {
		if j.IsUrgent() {
			b.Urgent++
		}
	}
	return b
}
