// Package job defines the Job record and its lifecycle states, adapted
// from the teacher's internal/jobs package: that package tracked HTTP
// task submissions (queued/running/done/failed) in a map guarded by a
// mutex; here the same "mutable record with a status enum and
// timestamps" shape carries the beanstalkd job lifecycle of spec.md §4.1
// instead.
package job

import (
	"container/list"
	"time"

	"github.com/gofrs/uuid"
)

// State is a job's position in its tube's containers (spec.md §3).
type State int

const (
	Ready State = iota
	Delayed
	Reserved
	Buried
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Delayed:
		return "delayed"
	case Reserved:
		return "reserved"
	case Buried:
		return "buried"
	default:
		return "invalid"
	}
}

// ConnID identifies a connection for reservation ownership and waiter
// bookkeeping. Connections are tagged with a UUID purely for identity
// and log correlation (internal/conn), never serialized onto the wire.
type ConnID = uuid.UUID

// Counters holds the per-job cumulative counters from spec.md §3.
type Counters struct {
	Reserves uint64
	Timeouts uint64
	Releases uint64
	Buries   uint64
	Kicks    uint64
}

// Job is the mutable record for one piece of queued work. A Job is
// owned exclusively by the global registry (internal/registry);
// tubes and connections only ever hold its ID (spec.md §9).
type Job struct {
	ID        uint64
	Tube      string
	Pri       uint32
	Body      []byte
	CreatedAt time.Time
	TTR       time.Duration
	Delay     time.Duration

	State State

	// ReadyAt is meaningful only while State == Delayed.
	ReadyAt time.Time
	// DeadlineAt is meaningful only while State == Reserved.
	DeadlineAt time.Time

	Reserver   ConnID
	hasReserver bool

	Counters Counters

	// DeadlineSoonSent latches so DEADLINE_SOON fires at most once per
	// reservation, per spec.md §4.3 and the Open Question decision (b)
	// recorded in SPEC_FULL.md.
	DeadlineSoonSent bool

	// BinlogFileHint is the WAL-file hint from spec.md §3; this
	// implementation carries no on-disk log, so it is always 0.
	BinlogFileHint uint64

	// HeapIndex is the job's position in whichever container/heap it
	// currently lives in (ready heap, delay heap, or the reservation
	// index while reserved); -1 when not in a heap (buried, or not yet
	// placed). Kept on the record itself
	// so removal from a position other than the top can sift in place
	// rather than rebuilding the heap (spec.md §9).
	HeapIndex int

	// BuriedElem is j's node in its tube's buried list.List while
	// State == Buried, so kick-job/reserve-job can remove it in O(1)
	// instead of a linear scan for in-place removal (spec.md §9).
	BuriedElem *list.Element
}

// New constructs a job in no container yet; the caller (registry) is
// responsible for placing it into ready or delayed and setting state.
func New(id uint64, tube string, pri uint32, body []byte, delay, ttr time.Duration, now time.Time) *Job {
	if ttr < time.Second {
		ttr = time.Second
	}
	return &Job{
		ID:        id,
		Tube:      tube,
		Pri:       pri,
		Body:      body,
		CreatedAt: now,
		TTR:       ttr,
		Delay:     delay,
		HeapIndex: -1,
	}
}

// SetReserver marks j reserved by c with the TTR deadline starting now.
func (j *Job) SetReserver(c ConnID, now time.Time) {
	j.State = Reserved
	j.Reserver = c
	j.hasReserver = true
	j.DeadlineAt = now.Add(j.TTR)
	j.DeadlineSoonSent = false
	j.Counters.Reserves++
	j.HeapIndex = -1
}

// ClearReserver releases j from its current reserver. Callers set the
// resulting state (Ready/Delayed/Buried) themselves.
func (j *Job) ClearReserver() {
	j.Reserver = ConnID{}
	j.hasReserver = false
}

// ReservedBy reports whether j is currently reserved by c.
func (j *Job) ReservedBy(c ConnID) bool {
	return j.hasReserver && j.State == Reserved && j.Reserver == c
}

// IsUrgent reports whether j counts toward current-jobs-urgent, the
// historical beanstalkd threshold of priority < 1024 (SPEC_FULL.md,
// Supplemented Features).
func (j *Job) IsUrgent() bool { return j.Pri < 1024 }

// SafetyDeadline is the instant one second before TTR expiry at which
// DEADLINE_SOON becomes due (spec.md §4.3).
func (j *Job) SafetyDeadline() time.Time {
	return j.DeadlineAt.Add(-time.Second)
}

// IDAllocator hands out monotonically increasing job ids, generalizing
// the teacher's util.NewReqID (which minted a random hex string per
// request) to the spec's requirement of dense, monotonic 64-bit ids
// used as heap tie-breakers.
type IDAllocator struct {
	next uint64
}

// Next returns the next unique id, starting at 1.
func (a *IDAllocator) Next() uint64 {
	a.next++
	return a.next
}
