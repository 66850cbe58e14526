// Package registry is the global job/tube store of spec.md §3: the sole
// owner of every Job and Tube, referenced everywhere else only by id or
// name (spec.md §9). It plays the role the teacher's internal/sched and
// internal/jobs Managers played (a mutex-guarded map plus a handful of
// registration/lookup methods), generalized from HTTP task pools to
// beanstalkd tubes, and is where spec.md §5's "single logical critical
// section per command-dispatch" is implemented as one coarse mutex.
package registry

import (
	"sync"
	"time"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
	"github.com/beanstalkd-core/beanstalkd/internal/reservation"
	"github.com/beanstalkd-core/beanstalkd/internal/tube"
)

const DefaultTube = "default"

// WALHook is the write-ahead-log collaborator of spec.md §6. Only the
// hook is specified; file format is out of scope, so the zero value
// (nil) is a valid no-op implementation.
type WALHook interface {
	OnPut(j *job.Job)
	OnReserve(j *job.Job, conn job.ConnID)
	OnDelete(j *job.Job)
	OnRelease(j *job.Job)
	OnBury(j *job.Job)
	OnKick(j *job.Job)
	OnTouch(j *job.Job)
}

// Counters are the process-wide cumulative counters of spec.md §3,
// named after the protocol document's stats keys (mirroring the field
// names compmaniak-go-beanstalk's Conn.Stats uses client-side).
type Counters struct {
	CmdPut                uint64
	CmdPeek               uint64
	CmdPeekReady          uint64
	CmdPeekDelayed        uint64
	CmdPeekBuried         uint64
	CmdReserve            uint64
	CmdReserveWithTimeout uint64
	CmdReserveJob         uint64
	CmdDelete             uint64
	CmdRelease            uint64
	CmdUse                uint64
	CmdWatch              uint64
	CmdIgnore             uint64
	CmdBury               uint64
	CmdKick               uint64
	CmdKickJob            uint64
	CmdTouch              uint64
	CmdStats              uint64
	CmdStatsJob           uint64
	CmdStatsTube          uint64
	CmdListTubes          uint64
	CmdListTubeUsed       uint64
	CmdListTubesWatched   uint64
	CmdPauseTube          uint64
	JobTimeouts           uint64
	TotalJobs             uint64
	CurrentConnections    uint64
	CurrentProducers      uint64
	CurrentWorkers        uint64
	CurrentWaiting        uint64
	TotalConnections      uint64
}

// waiter is a connection suspended on reserve/reserve-with-timeout.
type waiter struct {
	conn        job.ConnID
	watch       []string
	replyCh     chan WaitResult
	hasDeadline bool
	deadline    time.Time
}

// WaitResult is delivered to a suspended reserve's ReplyCh.
type WaitResult struct {
	Job *job.Job
	Err *protoerr.Error
}

// Clock abstracts time.Now so tests can drive the scheduler
// deterministically instead of sleeping in real time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Registry is the central, mutex-guarded job/tube universe.
type Registry struct {
	mu sync.Mutex

	clock Clock
	hook  WALHook

	jobs  map[uint64]*job.Job
	tubes map[string]*tube.Tube
	ids   job.IDAllocator

	reservations *reservation.Index
	connReserved map[job.ConnID]map[uint64]struct{}
	waiters      map[job.ConnID]*waiter

	maxJobSize int
	minTTR     time.Duration
	draining   bool

	Counters Counters

	// wake is signalled whenever a mutation may have moved the
	// earliest scheduler event earlier than what the scheduler is
	// currently sleeping toward (spec.md §4.4).
	wake chan struct{}
}

// New creates a registry with the "default" tube already present (it
// persists even when empty, spec.md §3). minTTR floors every job's
// time-to-run, per the --min-ttr flag's contract (internal/config).
func New(maxJobSize int, minTTR time.Duration, hook WALHook) *Registry {
	return NewWithClock(maxJobSize, minTTR, hook, realClock{})
}

func NewWithClock(maxJobSize int, minTTR time.Duration, hook WALHook, clock Clock) *Registry {
	r := &Registry{
		clock:        clock,
		hook:         hook,
		jobs:         make(map[uint64]*job.Job),
		tubes:        make(map[string]*tube.Tube),
		reservations: reservation.NewIndex(),
		connReserved: make(map[job.ConnID]map[uint64]struct{}),
		waiters:      make(map[job.ConnID]*waiter),
		maxJobSize:   maxJobSize,
		minTTR:       minTTR,
		wake:         make(chan struct{}, 1),
	}
	r.tubes[DefaultTube] = tube.New(DefaultTube)
	return r
}

// Wake returns the channel the scheduler selects on to be nudged early.
func (r *Registry) Wake() <-chan struct{} { return r.wake }

func (r *Registry) signalWake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Registry) now() time.Time { return r.clock.Now() }

// MaxJobSize reports the configured body-size ceiling (spec.md §5).
func (r *Registry) MaxJobSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxJobSize
}

// SetDraining toggles draining mode (spec.md §6); it is driven by the
// abstract "enter drain mode" external event spec.md §1 describes.
func (r *Registry) SetDraining(d bool) {
	r.mu.Lock()
	r.draining = d
	r.mu.Unlock()
}

func (r *Registry) call(hook func()) {
	if r.hook != nil {
		hook()
	}
}

// --- tube lookup / lazy creation / GC -------------------------------

func (r *Registry) getOrCreateTube(name string) *tube.Tube {
	t, ok := r.tubes[name]
	if !ok {
		t = tube.New(name)
		r.tubes[name] = t
	}
	return t
}

func (r *Registry) gcTube(name string) {
	if name == DefaultTube {
		return
	}
	t, ok := r.tubes[name]
	if ok && t.Empty() {
		delete(r.tubes, name)
	}
}

// --- connection tube membership --------------------------------------

// SetUsedTube switches a connection's used tube from oldName (ignored
// if empty) to newName, lazily creating newName (spec.md §4.3).
func (r *Registry) SetUsedTube(oldName, newName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdUse++
	if oldName != "" {
		if old, ok := r.tubes[oldName]; ok {
			old.UsingCount--
			r.gcTube(oldName)
		}
	}
	t := r.getOrCreateTube(newName)
	t.UsingCount++
}

// Watch adds name to a connection's watch list (spec.md §4.3).
func (r *Registry) Watch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdWatch++
	t := r.getOrCreateTube(name)
	t.WatchingCount++
}

// Unwatch removes name from a connection's watch list.
func (r *Registry) Unwatch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdIgnore++
	if t, ok := r.tubes[name]; ok {
		t.WatchingCount--
		r.gcTube(name)
	}
}

// --- connection lifecycle --------------------------------------------

func (r *Registry) ConnectionOpened() {
	r.mu.Lock()
	r.Counters.CurrentConnections++
	r.Counters.TotalConnections++
	r.mu.Unlock()
}

func (r *Registry) ConnectionClosed() {
	r.mu.Lock()
	r.Counters.CurrentConnections--
	r.mu.Unlock()
}

func (r *Registry) MarkProducer() { r.mu.Lock(); r.Counters.CurrentProducers++; r.mu.Unlock() }
func (r *Registry) UnmarkProducer() {
	r.mu.Lock()
	r.Counters.CurrentProducers--
	r.mu.Unlock()
}
func (r *Registry) MarkWorker() { r.mu.Lock(); r.Counters.CurrentWorkers++; r.mu.Unlock() }
func (r *Registry) UnmarkWorker() {
	r.mu.Lock()
	r.Counters.CurrentWorkers--
	r.mu.Unlock()
}

// ReleaseConnection runs the release-on-close pass of spec.md §4.3: every
// job reserved by conn is returned to ready, or to delayed honoring the
// tube's current pause, without incrementing timeouts.
func (r *Registry) ReleaseConnection(conn job.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	ids := r.connReserved[conn]
	for id := range ids {
		j, ok := r.jobs[id]
		if !ok {
			continue
		}
		r.unreserveLocked(j)
		t := r.getOrCreateTube(j.Tube)
		j.Counters.Releases++
		r.requeueAfterReleaseLocked(t, j, now)
	}
	delete(r.connReserved, conn)
	r.cancelWaitLocked(conn, nil)
}

// requeueAfterReleaseLocked places j back into ready or delayed,
// honoring a currently-paused tube, then dispatches waiters.
func (r *Registry) requeueAfterReleaseLocked(t *tube.Tube, j *job.Job, now time.Time) {
	if t.IsPaused(now) {
		j.State = job.Delayed
		j.ReadyAt = t.PausedUntil
		t.Delay.PushJob(j)
		r.signalWake()
		return
	}
	j.State = job.Ready
	t.Ready.PushJob(j)
	r.dispatchTubeLocked(t.Name, now)
}

// unreserveLocked removes j from the reservation index and connection
// bookkeeping; it does not change j.State or requeue it.
func (r *Registry) unreserveLocked(j *job.Job) {
	r.reservations.Remove(j)
	if t, ok := r.tubes[j.Tube]; ok {
		t.ReservedCount--
	}
	if ids, ok := r.connReserved[j.Reserver]; ok {
		delete(ids, j.ID)
	}
	j.ClearReserver()
}

// removeWaiterLocked drops conn's waiter registration from every tube
// it was enqueued on and from the waiters map, returning it (or nil if
// conn had no active waiter, e.g. already serviced/cancelled).
func (r *Registry) removeWaiterLocked(conn job.ConnID) *waiter {
	w, ok := r.waiters[conn]
	if !ok {
		return nil
	}
	delete(r.waiters, conn)
	r.Counters.CurrentWaiting--
	for _, name := range w.watch {
		if t, ok := r.tubes[name]; ok {
			t.RemoveWaiter(conn)
		}
	}
	return w
}

// cancelWaitLocked cancels conn's pending reserve and, if err is
// non-nil, delivers it as the wait's outcome.
func (r *Registry) cancelWaitLocked(conn job.ConnID, err *protoerr.Error) {
	w := r.removeWaiterLocked(conn)
	if w != nil && err != nil {
		w.replyCh <- WaitResult{Err: err}
	}
}

// CancelWait cancels conn's pending reserve, e.g. on connection close
// or a half-closed receive side (spec.md §4.3). It is a no-op if the
// waiter was already serviced or cancelled by the scheduler.
func (r *Registry) CancelWait(conn job.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelWaitLocked(conn, protoerr.New(protoerr.TimedOut))
}

// --- put --------------------------------------------------------------

// Put inserts a new job into usedTube, per spec.md §4.1. buried reports
// the OUT_OF_MEMORY_WHILE_QUEUEING downgrade of spec.md §4.1.
func (r *Registry) Put(usedTube string, pri uint32, delay, ttr time.Duration, body []byte, oom func() bool) (id uint64, buried bool, err *protoerr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdPut++
	if r.draining {
		return 0, false, protoerr.New(protoerr.Draining)
	}
	if len(body) > r.maxJobSize {
		return 0, false, protoerr.New(protoerr.JobTooBig)
	}
	now := r.now()
	t := r.getOrCreateTube(usedTube)
	newID := r.ids.Next()
	if ttr < r.minTTR {
		ttr = r.minTTR
	}
	j := job.New(newID, usedTube, pri, body, delay, ttr, now)
	t.JobCount++
	t.Cumulative.TotalJobs++
	r.Counters.TotalJobs++

	pausedRemaining := time.Duration(0)
	paused := t.IsPaused(now)
	if paused {
		pausedRemaining = t.PausedUntil.Sub(now)
	}

	if oom != nil && oom() {
		j.State = job.Buried
		j.BuriedElem = t.Buried.PushBack(j)
		j.Counters.Buries++
		r.jobs[newID] = j
		r.call(func() { r.hook.OnPut(j) })
		return newID, true, nil
	}

	if delay > 0 || paused {
		eff := delay
		if pausedRemaining > eff {
			eff = pausedRemaining
		}
		j.State = job.Delayed
		j.ReadyAt = now.Add(eff)
		t.Delay.PushJob(j)
		r.signalWake()
	} else {
		j.State = job.Ready
		t.Ready.PushJob(j)
	}
	r.jobs[newID] = j
	r.call(func() { r.hook.OnPut(j) })
	if j.State == job.Ready {
		r.dispatchTubeLocked(usedTube, now)
	}
	return newID, false, nil
}

// --- reserve ------------------------------------------------------------

// ReserveResult is returned by Reserve: either a job was matched
// immediately, an immediate error applies (DEADLINE_SOON, TIMED_OUT for
// a zero-second timeout), or the caller must block on Pending until it
// resolves.
type ReserveResult struct {
	Job     *job.Job
	Err     *protoerr.Error
	Pending <-chan WaitResult
}

// Reserve attempts to match conn (watching watch, in FIFO-registered
// order) against ready jobs across all watched tubes (spec.md §4.2).
// hasTimeout/timeout model reserve-with-timeout; hasTimeout==false means
// an infinite wait (bare reserve).
func (r *Registry) Reserve(conn job.ConnID, watch []string, hasTimeout bool, timeout time.Duration) ReserveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if hasTimeout {
		r.Counters.CmdReserveWithTimeout++
	} else {
		r.Counters.CmdReserve++
	}

	if r.deadlineSoonDueLocked(conn, now) {
		return ReserveResult{Err: protoerr.New(protoerr.DeadlineSoon)}
	}

	if j := r.selectBestLocked(watch, now); j != nil {
		r.reserveJobLocked(j, conn, now)
		return ReserveResult{Job: j}
	}

	if hasTimeout && timeout <= 0 {
		return ReserveResult{Err: protoerr.New(protoerr.TimedOut)}
	}

	w := &waiter{conn: conn, watch: append([]string(nil), watch...), replyCh: make(chan WaitResult, 1)}
	if hasTimeout {
		w.hasDeadline = true
		w.deadline = now.Add(timeout)
		r.signalWake()
	}
	r.waiters[conn] = w
	r.Counters.CurrentWaiting++
	for _, name := range watch {
		t := r.getOrCreateTube(name)
		t.EnqueueWaiter(conn)
	}
	return ReserveResult{Pending: w.replyCh}
}

// deadlineSoonDueLocked implements the "not currently waiting" half of
// spec.md §4.3's DEADLINE_SOON rule: if a reserved job of conn already
// crossed its safety instant, the next reserve call returns it at once.
func (r *Registry) deadlineSoonDueLocked(conn job.ConnID, now time.Time) bool {
	for id := range r.connReserved[conn] {
		j, ok := r.jobs[id]
		if !ok || j.DeadlineSoonSent {
			continue
		}
		if !now.Before(j.SafetyDeadline()) {
			j.DeadlineSoonSent = true
			return true
		}
	}
	return false
}

// selectBestLocked implements spec.md §4.2's cross-tube selection.
func (r *Registry) selectBestLocked(watch []string, now time.Time) *job.Job {
	var best *job.Job
	for _, name := range watch {
		t, ok := r.tubes[name]
		if !ok || t.IsPaused(now) {
			continue
		}
		cand := t.Ready.Peek()
		if cand == nil {
			continue
		}
		if best == nil || cand.Pri < best.Pri || (cand.Pri == best.Pri && cand.ID < best.ID) {
			best = cand
		}
	}
	if best == nil {
		return nil
	}
	t := r.tubes[best.Tube]
	t.Ready.Remove(best)
	return best
}

func (r *Registry) reserveJobLocked(j *job.Job, conn job.ConnID, now time.Time) {
	j.SetReserver(conn, now)
	t := r.getOrCreateTube(j.Tube)
	t.ReservedCount++
	r.reservations.Add(j)
	ids := r.connReserved[conn]
	if ids == nil {
		ids = make(map[uint64]struct{})
		r.connReserved[conn] = ids
	}
	ids[j.ID] = struct{}{}
	r.call(func() { r.hook.OnReserve(j, conn) })
}

// ReserveJob implements reserve-job: a non-blocking transition of a
// ready, delayed or buried job to reserved (spec.md §4.3). A job that is
// already reserved yields NOT_FOUND.
func (r *Registry) ReserveJob(conn job.ConnID, id uint64) *protoerr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters.CmdReserveJob++
	j, ok := r.jobs[id]
	if !ok {
		return protoerr.New(protoerr.NotFound)
	}
	t := r.getOrCreateTube(j.Tube)
	switch j.State {
	case job.Ready:
		t.Ready.Remove(j)
	case job.Delayed:
		t.Delay.Remove(j)
	case job.Buried:
		t.Buried.Remove(j.BuriedElem)
		j.BuriedElem = nil
	default:
		return protoerr.New(protoerr.NotFound)
	}
	r.reserveJobLocked(j, conn, r.now())
	return nil
}

// dispatchTubeLocked services name's waiter FIFO per spec.md §4.2.
func (r *Registry) dispatchTubeLocked(name string, now time.Time) {
	t, ok := r.tubes[name]
	if !ok {
		return
	}
	for !t.IsPaused(now) && t.Ready.Len() > 0 {
		conn, ok := t.PopWaiter()
		if !ok {
			break
		}
		w, ok := r.waiters[conn]
		if !ok {
			continue
		}
		j := r.selectBestLocked(w.watch, now)
		if j == nil {
			continue
		}
		r.reserveJobLocked(j, conn, now)
		r.removeWaiterLocked(conn)
		w.replyCh <- WaitResult{Job: j}
	}
}
