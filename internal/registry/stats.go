package registry

import (
	"time"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
	"github.com/beanstalkd-core/beanstalkd/internal/tube"
)

// GlobalSnapshot is an immutable view of process-wide stats for the
// `stats` command (spec.md §4.5).
type GlobalSnapshot struct {
	Counters    Counters
	CurrentTubes uint64
	MaxJobSize  int
	Draining    bool
}

func (r *Registry) GlobalStats() GlobalSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdStats++
	return GlobalSnapshot{
		Counters:     r.Counters,
		CurrentTubes: uint64(len(r.tubes)),
		MaxJobSize:   r.maxJobSize,
		Draining:     r.draining,
	}
}

// TubeSnapshot is an immutable view of one tube's stats for
// `stats-tube` (spec.md §4.5).
type TubeSnapshot struct {
	Name          string
	Breakdown     tube.CurrentJobsBreakdown
	TotalJobs     uint64
	CurrentUsing  int
	CurrentWaiting int
	CurrentWatching int
	CmdDelete     uint64
	CmdPauseTube  uint64
	Paused        bool
	PauseTimeLeftSeconds int64
}

func (r *Registry) StatsTube(name string) (TubeSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdStatsTube++
	t, ok := r.tubes[name]
	if !ok {
		return TubeSnapshot{}, false
	}
	now := r.now()
	left := int64(0)
	paused := t.IsPaused(now)
	if paused {
		left = int64(t.PausedUntil.Sub(now).Seconds())
		if left < 0 {
			left = 0
		}
	}
	return TubeSnapshot{
		Name:                 t.Name,
		Breakdown:            t.Breakdown(),
		TotalJobs:            t.Cumulative.TotalJobs,
		CurrentUsing:         t.UsingCount,
		CurrentWaiting:       len(t.Waiters),
		CurrentWatching:      t.WatchingCount,
		CmdDelete:            t.Cumulative.CmdDelete,
		CmdPauseTube:         t.Cumulative.CmdPauseTube,
		Paused:               paused,
		PauseTimeLeftSeconds: left,
	}, true
}

// JobStatsSnapshot is the view for `stats-job` (spec.md §4.5); AgeSeconds
// and TimeLeftSeconds are derived at encode time rather than stored, per
// SPEC_FULL.md's Supplemented Features.
type JobStatsSnapshot struct {
	JobView
	AgeSeconds      int64
	TimeLeftSeconds int64
}

func (r *Registry) StatsJob(id uint64) (JobStatsSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdStatsJob++
	j, ok := r.jobs[id]
	if !ok {
		return JobStatsSnapshot{}, false
	}
	now := r.now()
	age := int64(now.Sub(j.CreatedAt).Seconds())
	var left int64
	switch j.State {
	case job.Delayed:
		left = durSeconds(j.ReadyAt.Sub(now))
	case job.Reserved:
		left = durSeconds(j.DeadlineAt.Sub(now))
	}
	return JobStatsSnapshot{JobView: snapshot(j), AgeSeconds: age, TimeLeftSeconds: left}, true
}

func durSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}
