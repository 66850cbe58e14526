package registry

import (
	"time"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
)

// Delete removes a job entirely (spec.md §4.1 "any non-none -> none").
// Ready/delayed/buried jobs may be deleted by any connection; a
// reserved job may only be deleted by its reserver.
func (r *Registry) Delete(conn job.ConnID, id uint64) *protoerr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdDelete++
	j, ok := r.jobs[id]
	if !ok {
		return protoerr.New(protoerr.NotFound)
	}
	t, ok := r.tubes[j.Tube]
	if !ok {
		return protoerr.New(protoerr.NotFound)
	}
	switch j.State {
	case job.Ready:
		t.Ready.Remove(j)
	case job.Delayed:
		t.Delay.Remove(j)
	case job.Buried:
		t.Buried.Remove(j.BuriedElem)
		j.BuriedElem = nil
	case job.Reserved:
		if !j.ReservedBy(conn) {
			return protoerr.New(protoerr.NotFound)
		}
		r.unreserveLocked(j)
	}
	t.Cumulative.CmdDelete++
	t.JobCount--
	delete(r.jobs, id)
	r.gcTube(t.Name)
	r.call(func() { r.hook.OnDelete(j) })
	return nil
}

// Release transitions a reserved job back to ready or delayed
// (spec.md §4.1). Only the reserver may release.
func (r *Registry) Release(conn job.ConnID, id uint64, pri uint32, delay time.Duration, oom func() bool) (*protoerr.Error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdRelease++
	j, ok := r.jobs[id]
	if !ok || j.State != job.Reserved || !j.ReservedBy(conn) {
		return protoerr.New(protoerr.NotFound), false
	}
	now := r.now()
	t := r.getOrCreateTube(j.Tube)
	r.unreserveLocked(j)
	j.Pri = pri
	j.Counters.Releases++

	if oom != nil && oom() {
		j.State = job.Buried
		j.BuriedElem = t.Buried.PushBack(j)
		j.Counters.Buries++
		r.call(func() { r.hook.OnRelease(j) })
		return nil, true
	}

	if delay > 0 {
		j.State = job.Delayed
		j.ReadyAt = now.Add(delay)
		t.Delay.PushJob(j)
		r.signalWake()
	} else {
		j.State = job.Ready
		t.Ready.PushJob(j)
		r.dispatchTubeLocked(t.Name, now)
	}
	r.call(func() { r.hook.OnRelease(j) })
	return nil, false
}

// Bury moves a reserved job to its tube's buried FIFO (spec.md §4.1).
func (r *Registry) Bury(conn job.ConnID, id uint64, pri uint32) *protoerr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdBury++
	j, ok := r.jobs[id]
	if !ok || j.State != job.Reserved || !j.ReservedBy(conn) {
		return protoerr.New(protoerr.NotFound)
	}
	t := r.getOrCreateTube(j.Tube)
	r.unreserveLocked(j)
	j.Pri = pri
	j.State = job.Buried
	j.BuriedElem = t.Buried.PushBack(j)
	j.Counters.Buries++
	r.call(func() { r.hook.OnBury(j) })
	return nil
}

// Touch extends a reservation's TTR deadline (spec.md §4.3).
func (r *Registry) Touch(conn job.ConnID, id uint64) *protoerr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdTouch++
	j, ok := r.jobs[id]
	if !ok || j.State != job.Reserved || !j.ReservedBy(conn) {
		return protoerr.New(protoerr.NotFound)
	}
	j.DeadlineAt = r.now().Add(j.TTR)
	j.DeadlineSoonSent = false
	r.reservations.Remove(j)
	r.reservations.Add(j)
	r.call(func() { r.hook.OnTouch(j) })
	return nil
}

// Kick moves up to bound jobs from buried (if non-empty) or else from
// delayed (in ready-at order) back to ready (spec.md §4.5).
func (r *Registry) Kick(tubeName string, bound int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdKick++
	t, ok := r.tubes[tubeName]
	if !ok {
		return 0
	}
	now := r.now()
	n := 0
	if t.Buried.Len() > 0 {
		for n < bound && t.Buried.Len() > 0 {
			e := t.Buried.Front()
			j := e.Value.(*job.Job)
			t.Buried.Remove(e)
			j.BuriedElem = nil
			j.State = job.Ready
			j.Counters.Kicks++
			t.Ready.PushJob(j)
			r.call(func() { r.hook.OnKick(j) })
			n++
		}
	} else {
		for n < bound && t.Delay.Len() > 0 {
			j := t.Delay.PopJob()
			j.State = job.Ready
			j.Counters.Kicks++
			t.Ready.PushJob(j)
			r.call(func() { r.hook.OnKick(j) })
			n++
		}
	}
	if n > 0 {
		r.dispatchTubeLocked(tubeName, now)
	}
	return n
}

// KickJob acts on a single buried or delayed job regardless of its
// tube (spec.md §4.5).
func (r *Registry) KickJob(id uint64) *protoerr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdKickJob++
	j, ok := r.jobs[id]
	if !ok {
		return protoerr.New(protoerr.NotFound)
	}
	t := r.getOrCreateTube(j.Tube)
	switch j.State {
	case job.Buried:
		t.Buried.Remove(j.BuriedElem)
		j.BuriedElem = nil
	case job.Delayed:
		t.Delay.Remove(j)
	default:
		return protoerr.New(protoerr.NotFound)
	}
	j.State = job.Ready
	j.Counters.Kicks++
	t.Ready.PushJob(j)
	r.call(func() { r.hook.OnKick(j) })
	r.dispatchTubeLocked(t.Name, r.now())
	return nil
}

// PauseTube sets or clears a tube's pause window. Per SPEC_FULL.md's
// supplemented-features note, pause-tube does not create tubes: an
// unknown name yields NOT_FOUND.
func (r *Registry) PauseTube(name string, d time.Duration) *protoerr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdPauseTube++
	t, ok := r.tubes[name]
	if !ok {
		return protoerr.New(protoerr.NotFound)
	}
	t.Cumulative.CmdPauseTube++
	now := r.now()
	t.Pause(now, d)
	if d > 0 {
		r.signalWake()
	} else {
		r.dispatchTubeLocked(name, now)
	}
	return nil
}

// JobView is an immutable snapshot safe to hand outside the lock.
type JobView struct {
	ID         uint64
	Tube       string
	Pri        uint32
	Body       []byte
	State      job.State
	CreatedAt  time.Time
	TTR        time.Duration
	Delay      time.Duration
	ReadyAt    time.Time
	DeadlineAt time.Time
	Counters   job.Counters
}

func snapshot(j *job.Job) JobView {
	return JobView{
		ID: j.ID, Tube: j.Tube, Pri: j.Pri, Body: j.Body, State: j.State,
		CreatedAt: j.CreatedAt, TTR: j.TTR, Delay: j.Delay, ReadyAt: j.ReadyAt, DeadlineAt: j.DeadlineAt,
		Counters: j.Counters,
	}
}

// Peek looks a job up by id regardless of tube (spec.md §4.5).
func (r *Registry) Peek(id uint64) (JobView, *protoerr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdPeek++
	j, ok := r.jobs[id]
	if !ok {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	return snapshot(j), nil
}

// PeekReady/PeekDelayed/PeekBuried inspect the connection's used tube.
func (r *Registry) PeekReady(tubeName string) (JobView, *protoerr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdPeekReady++
	t, ok := r.tubes[tubeName]
	if !ok {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	j := t.Ready.Peek()
	if j == nil {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	return snapshot(j), nil
}

func (r *Registry) PeekDelayed(tubeName string) (JobView, *protoerr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdPeekDelayed++
	t, ok := r.tubes[tubeName]
	if !ok {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	j := t.Delay.Peek()
	if j == nil {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	return snapshot(j), nil
}

func (r *Registry) PeekBuried(tubeName string) (JobView, *protoerr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdPeekBuried++
	t, ok := r.tubes[tubeName]
	if !ok {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	e := t.Buried.Front()
	if e == nil {
		return JobView{}, protoerr.New(protoerr.NotFound)
	}
	return snapshot(e.Value.(*job.Job)), nil
}

// ListTubes enumerates every currently-existing tube.
func (r *Registry) ListTubes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdListTubes++
	names := make([]string, 0, len(r.tubes))
	for name := range r.tubes {
		names = append(names, name)
	}
	return names
}

// TubeExists reports whether name currently has a tube object.
func (r *Registry) TubeExists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tubes[name]
	return ok
}

// CmdListTubeUsed records a list-tube-used dispatch (spec.md §8); the
// command itself needs no registry state beyond the counter.
func (r *Registry) CmdListTubeUsed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdListTubeUsed++
}

// CmdListTubesWatched records a list-tubes-watched dispatch.
func (r *Registry) CmdListTubesWatched() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdListTubesWatched++
}
