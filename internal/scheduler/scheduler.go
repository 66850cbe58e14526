// Package scheduler runs the timer loop that drives delay promotions, TTR
// expiry, pause lifts and waiter timeouts (spec.md §4.4). It generalizes the
// teacher's internal/jobs.Manager.gcLoop ticker-plus-stop-channel shape: that
// loop woke on a fixed interval to sweep expired jobs out of a map; this loop
// instead wakes at the registry's next precise event instant (or early, via
// Wake, whenever a new event is scheduled sooner than the current timer).
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry is the subset of *registry.Registry the loop needs, named so
// tests can supply a fake.
type Registry interface {
	NextEventAt(now time.Time) (time.Time, bool)
	Tick(now time.Time)
	Wake() <-chan struct{}
}

// Scheduler owns the single goroutine that calls Tick.
type Scheduler struct {
	reg Registry
	log *logrus.Entry

	// idleWait bounds how long the loop sleeps when the registry has no
	// scheduled event at all; it wakes anyway to notice new tubes/jobs
	// created between Wake signals without relying on every caller
	// remembering to signal.
	idleWait time.Duration
}

// New constructs a Scheduler for reg. log may be nil, in which case a
// standard logrus logger is used.
func New(reg Registry, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{reg: reg, log: log, idleWait: 5 * time.Second}
}

// Run blocks, ticking the registry until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler starting")
	timer := time.NewTimer(s.idleWait)
	defer timer.Stop()

	for {
		now := time.Now()
		next, ok := s.reg.NextEventAt(now)
		wait := s.idleWait
		if ok {
			if d := next.Sub(now); d <= 0 {
				wait = 0
			} else if d < wait {
				wait = d
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-timer.C:
			s.reg.Tick(time.Now())
		case <-s.reg.Wake():
			// Loop around: the next NextEventAt call picks up whatever
			// was just scheduled instead of waiting out the stale timer.
		}
	}
}
