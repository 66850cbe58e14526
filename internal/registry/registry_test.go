package registry

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
)

// fakeClock lets tests drive Tick deterministically instead of sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Now()}
	return NewWithClock(65536, time.Second, nil, clock), clock
}

func newConn(t *testing.T) job.ConnID {
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func TestPutAndPeek(t *testing.T) {
	r, _ := newTestRegistry()
	id, buried, err := r.Put("default", 10, 0, 5*time.Second, []byte("payload"), nil)
	require.Nil(t, err)
	assert.False(t, buried)
	assert.Equal(t, uint64(1), id)

	jv, perr := r.Peek(id)
	require.Nil(t, perr)
	assert.Equal(t, job.Ready, jv.State)
	assert.Equal(t, []byte("payload"), jv.Body)
}

func TestPutAppliesConfiguredMinTTRFloor(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	r := NewWithClock(65536, 5*time.Second, nil, clock)

	id, _, err := r.Put("default", 0, 0, time.Second, nil, nil)
	require.Nil(t, err)

	jv, _ := r.Peek(id)
	assert.Equal(t, 5*time.Second, jv.TTR)
}

func TestPutJobTooBig(t *testing.T) {
	r, _ := newTestRegistry()
	_, _, perr := r.Put("default", 0, 0, time.Second, make([]byte, 100000), nil)
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.JobTooBig, perr.Code)
}

func TestPutWhileDraining(t *testing.T) {
	r, _ := newTestRegistry()
	r.SetDraining(true)
	_, _, perr := r.Put("default", 0, 0, time.Second, nil, nil)
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.Draining, perr.Code)
}

func TestPutDelayedThenPromoted(t *testing.T) {
	r, clock := newTestRegistry()
	id, _, err := r.Put("default", 0, 5*time.Second, time.Second, nil, nil)
	require.Nil(t, err)

	jv, _ := r.Peek(id)
	assert.Equal(t, job.Delayed, jv.State)

	clock.Advance(6 * time.Second)
	r.Tick(clock.Now())

	jv, _ = r.Peek(id)
	assert.Equal(t, job.Ready, jv.State)
}

func TestReserveImmediateMatch(t *testing.T) {
	r, _ := newTestRegistry()
	id, _, err := r.Put("default", 5, 0, 10*time.Second, []byte("x"), nil)
	require.Nil(t, err)

	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	require.Nil(t, res.Err)
	require.NotNil(t, res.Job)
	assert.Equal(t, id, res.Job.ID)
}

func TestReservePicksLowestPriThenID(t *testing.T) {
	r, _ := newTestRegistry()
	_, _, _ = r.Put("default", 10, 0, time.Second, nil, nil)
	id2, _, _ := r.Put("default", 1, 0, time.Second, nil, nil)
	_, _, _ = r.Put("default", 1, 0, time.Second, nil, nil)

	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	require.NotNil(t, res.Job)
	assert.Equal(t, id2, res.Job.ID)
}

func TestReserveBlocksThenResolvesOnPut(t *testing.T) {
	r, _ := newTestRegistry()
	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	assert.Nil(t, res.Job)
	assert.Nil(t, res.Err)
	require.NotNil(t, res.Pending)

	id, _, err := r.Put("default", 0, 0, time.Second, []byte("hi"), nil)
	require.Nil(t, err)

	select {
	case wr := <-res.Pending:
		require.Nil(t, wr.Err)
		require.NotNil(t, wr.Job)
		assert.Equal(t, id, wr.Job.ID)
	default:
		t.Fatal("expected pending reserve to resolve immediately after put")
	}
}

func TestReserveWithZeroTimeoutReturnsTimedOut(t *testing.T) {
	r, _ := newTestRegistry()
	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, true, 0)
	require.NotNil(t, res.Err)
	assert.Equal(t, protoerr.TimedOut, res.Err.Code)
}

func TestDeleteRequiresReserverForReservedJob(t *testing.T) {
	r, _ := newTestRegistry()
	id, _, _ := r.Put("default", 0, 0, time.Second, nil, nil)
	owner := newConn(t)
	res := r.Reserve(owner, []string{"default"}, false, 0)
	require.NotNil(t, res.Job)

	other := newConn(t)
	perr := r.Delete(other, id)
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.NotFound, perr.Code)

	perr = r.Delete(owner, id)
	assert.Nil(t, perr)

	_, perr = r.Peek(id)
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.NotFound, perr.Code)
}

func TestReleaseRequeuesReady(t *testing.T) {
	r, _ := newTestRegistry()
	id, _, _ := r.Put("default", 5, 0, time.Second, nil, nil)
	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	require.NotNil(t, res.Job)

	perr, buried := r.Release(conn, id, 3, 0, nil)
	require.Nil(t, perr)
	assert.False(t, buried)

	jv, _ := r.Peek(id)
	assert.Equal(t, job.Ready, jv.State)
	assert.Equal(t, uint32(3), jv.Pri)
}

func TestBuryAndKick(t *testing.T) {
	r, _ := newTestRegistry()
	id, _, _ := r.Put("default", 0, 0, time.Second, nil, nil)
	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	require.NotNil(t, res.Job)

	perr := r.Bury(conn, id, 0)
	require.Nil(t, perr)

	jv, _ := r.Peek(id)
	assert.Equal(t, job.Buried, jv.State)

	n := r.Kick("default", 10)
	assert.Equal(t, 1, n)

	jv, _ = r.Peek(id)
	assert.Equal(t, job.Ready, jv.State)
}

func TestTouchExtendsDeadline(t *testing.T) {
	r, clock := newTestRegistry()
	id, _, _ := r.Put("default", 0, 0, 5*time.Second, nil, nil)
	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	require.NotNil(t, res.Job)

	clock.Advance(4 * time.Second)
	perr := r.Touch(conn, id)
	require.Nil(t, perr)

	next, ok := r.NextEventAt(clock.Now())
	require.True(t, ok)
	assert.True(t, next.After(clock.Now()))
}

func TestExpiredReservationReturnsToReady(t *testing.T) {
	r, clock := newTestRegistry()
	id, _, _ := r.Put("default", 0, 0, time.Second, nil, nil)
	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	require.NotNil(t, res.Job)

	clock.Advance(2 * time.Second)
	r.Tick(clock.Now())

	jv, _ := r.Peek(id)
	assert.Equal(t, job.Ready, jv.State)
	assert.Equal(t, uint64(1), jv.Counters.Timeouts)
}

func TestPauseTubeBlocksReserve(t *testing.T) {
	r, _ := newTestRegistry()
	id, _, _ := r.Put("default", 0, 0, time.Second, nil, nil)
	perr := r.PauseTube("default", time.Minute)
	require.Nil(t, perr)

	conn := newConn(t)
	res := r.Reserve(conn, []string{"default"}, false, 0)
	assert.Nil(t, res.Job)
	assert.Nil(t, res.Err)
	require.NotNil(t, res.Pending)

	_, perr = r.Peek(id)
	assert.Nil(t, perr)
}
