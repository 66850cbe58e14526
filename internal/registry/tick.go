package registry

import (
	"time"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
)

// NextEventAt returns the earliest instant the scheduler has reason to
// wake for (spec.md §4.4): the soonest delayed ready-at, TTR deadline,
// paused-until, waiter timeout, or DEADLINE_SOON safety instant. ok is
// false when there is nothing scheduled at all.
//
// This scans every tube rather than maintaining a heap-of-heaps across
// tubes; with the tube counts this server is expected to run with, a
// per-tick O(tubes) scan is simpler than the heap-of-heaps spec.md §3
// mentions as an option and costs nothing observable — it only governs
// how early the scheduler wakes, never correctness.
func (r *Registry) NextEventAt(now time.Time) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextEventAtLocked(now)
}

func (r *Registry) nextEventAtLocked(now time.Time) (time.Time, bool) {
	have := false
	var best time.Time
	consider := func(t time.Time) {
		if !have || t.Before(best) {
			best, have = t, true
		}
	}

	for _, t := range r.tubes {
		if j := t.Delay.Peek(); j != nil {
			consider(j.ReadyAt)
		}
		if !t.PausedUntil.IsZero() {
			consider(t.PausedUntil)
		}
	}
	if j := r.reservations.PeekEarliest(); j != nil {
		consider(j.DeadlineAt)
		consider(j.SafetyDeadline())
	}
	for _, w := range r.waiters {
		if w.hasDeadline {
			consider(w.deadline)
		}
	}
	return best, have
}

// Tick processes every event due at or before now, in the order
// spec.md §4.4 prescribes: delay promotions, then TTR expiries, then
// pause lifts (preferring to make work available over cancelling it),
// then waiter-specific outcomes (DEADLINE_SOON, explicit timeouts).
// Each promotion/expiry/lift dispatches its tube's waiters before Tick
// moves on, so a single Tick call drains every consequence of the
// events it processes (spec.md §4.4: "each event may generate further
// waiter matches, performed before resuming sleep").
func (r *Registry) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.promoteDelayedLocked(now)
	r.expireReservationsLocked(now)
	r.liftPausesLocked(now)
	r.resolveDeadlineSoonLocked(now)
	r.resolveWaiterTimeoutsLocked(now)
}

func (r *Registry) promoteDelayedLocked(now time.Time) {
	for _, t := range r.tubes {
		promoted := false
		for {
			j := t.Delay.Peek()
			if j == nil || j.ReadyAt.After(now) {
				break
			}
			t.Delay.PopJob()
			j.State = job.Ready
			t.Ready.PushJob(j)
			promoted = true
		}
		if promoted {
			r.dispatchTubeLocked(t.Name, now)
		}
	}
}

func (r *Registry) expireReservationsLocked(now time.Time) {
	touched := make(map[string]bool)
	for {
		j := r.reservations.PeekEarliest()
		if j == nil || j.DeadlineAt.After(now) {
			break
		}
		r.reservations.PopEarliest()
		r.Counters.JobTimeouts++
		j.Counters.Timeouts++
		conn := j.Reserver
		if ids, ok := r.connReserved[conn]; ok {
			delete(ids, j.ID)
		}
		j.ClearReserver()
		t := r.getOrCreateTube(j.Tube)
		t.ReservedCount--
		j.State = job.Ready
		t.Ready.PushJob(j)
		touched[t.Name] = true
	}
	for name := range touched {
		r.dispatchTubeLocked(name, now)
	}
}

func (r *Registry) liftPausesLocked(now time.Time) {
	for name, t := range r.tubes {
		if !t.PausedUntil.IsZero() && !t.PausedUntil.After(now) {
			t.PausedUntil = time.Time{}
			r.dispatchTubeLocked(name, now)
		}
	}
}

func (r *Registry) resolveDeadlineSoonLocked(now time.Time) {
	for conn, w := range r.waiters {
		fired := false
		for id := range r.connReserved[conn] {
			j, ok := r.jobs[id]
			if !ok || j.DeadlineSoonSent {
				continue
			}
			if !now.Before(j.SafetyDeadline()) {
				j.DeadlineSoonSent = true
				fired = true
				break
			}
		}
		if fired {
			r.removeWaiterLocked(conn)
			w.replyCh <- WaitResult{Err: protoerr.New(protoerr.DeadlineSoon)}
		}
	}
}

func (r *Registry) resolveWaiterTimeoutsLocked(now time.Time) {
	for conn, w := range r.waiters {
		if w.hasDeadline && !w.deadline.After(now) {
			r.removeWaiterLocked(conn)
			w.replyCh <- WaitResult{Err: protoerr.New(protoerr.TimedOut)}
		}
	}
}
