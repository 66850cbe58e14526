package tube

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
)

func TestPauseAndIsPaused(t *testing.T) {
	tb := New("default")
	now := time.Now()
	assert.False(t, tb.IsPaused(now))

	tb.Pause(now, 5*time.Second)
	assert.True(t, tb.IsPaused(now))
	assert.False(t, tb.IsPaused(now.Add(6*time.Second)))

	tb.Pause(now, 0)
	assert.False(t, tb.IsPaused(now))
}

func TestRefcountAndEmpty(t *testing.T) {
	tb := New("jobs")
	assert.True(t, tb.Empty())

	tb.JobCount = 1
	assert.False(t, tb.Empty())
	assert.Equal(t, 1, tb.Refcount())

	tb.JobCount = 0
	tb.UsingCount = 1
	assert.False(t, tb.Empty())
}

func TestWaiterFIFO(t *testing.T) {
	tb := New("default")
	a, _ := uuid.NewV4()
	b, _ := uuid.NewV4()
	c, _ := uuid.NewV4()

	tb.EnqueueWaiter(a)
	tb.EnqueueWaiter(b)
	tb.EnqueueWaiter(a) // duplicate, ignored
	tb.EnqueueWaiter(c)

	tb.RemoveWaiter(b)

	first, ok := tb.PopWaiter()
	assert.True(t, ok)
	assert.Equal(t, a, first)

	second, ok := tb.PopWaiter()
	assert.True(t, ok)
	assert.Equal(t, c, second)

	_, ok = tb.PopWaiter()
	assert.False(t, ok)
}

func TestBreakdown(t *testing.T) {
	tb := New("default")
	now := time.Now()

	readyUrgent := job.New(1, "default", 100, nil, 0, time.Second, now)
	readyLow := job.New(2, "default", 2000, nil, 0, time.Second, now)
	tb.Ready.PushJob(readyUrgent)
	tb.Ready.PushJob(readyLow)

	delayed := job.New(3, "default", 0, nil, time.Minute, time.Second, now)
	tb.Delay.PushJob(delayed)

	buried := job.New(4, "default", 50, nil, 0, time.Second, now)
	tb.Buried.PushBack(buried)

	tb.ReservedCount = 2

	b := tb.Breakdown()
	assert.Equal(t, uint64(2), b.Ready)
	assert.Equal(t, uint64(1), b.Delayed)
	assert.Equal(t, uint64(2), b.Reserved)
	assert.Equal(t, uint64(1), b.Buried)
	assert.Equal(t, uint64(2), b.Urgent)
}
