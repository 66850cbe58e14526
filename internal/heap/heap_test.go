package heap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
)

func mkJob(id uint64, pri uint32) *job.Job {
	return job.New(id, "t", pri, nil, 0, time.Second, time.Now())
}

func TestReadyHeapOrdersByPriThenID(t *testing.T) {
	h := NewReadyHeap()
	j3 := mkJob(3, 10)
	j1 := mkJob(1, 10)
	j2 := mkJob(2, 5)
	h.PushJob(j3)
	h.PushJob(j1)
	h.PushJob(j2)

	assert.Equal(t, j2, h.Peek())
	assert.Equal(t, j2, h.PopJob())
	assert.Equal(t, j1, h.PopJob())
	assert.Equal(t, j3, h.PopJob())
	assert.Equal(t, 0, h.Len())
}

func TestReadyHeapRemoveMidHeap(t *testing.T) {
	h := NewReadyHeap()
	jobs := []*job.Job{mkJob(1, 5), mkJob(2, 1), mkJob(3, 9), mkJob(4, 3)}
	for _, j := range jobs {
		h.PushJob(j)
	}
	h.Remove(jobs[3]) // pri 3
	assert.Equal(t, 3, h.Len())

	var got []uint64
	for h.Len() > 0 {
		got = append(got, h.PopJob().ID)
	}
	assert.Equal(t, []uint64{2, 1, 3}, got)
}

func TestDeadlineHeapOrdersByKey(t *testing.T) {
	h := NewDelayHeap()
	now := time.Now()
	j1 := mkJob(1, 0)
	j1.ReadyAt = now.Add(3 * time.Second)
	j2 := mkJob(2, 0)
	j2.ReadyAt = now.Add(1 * time.Second)
	h.PushJob(j1)
	h.PushJob(j2)

	assert.Equal(t, j2, h.Peek())
	assert.Equal(t, j2, h.PopJob())
	assert.Equal(t, j1, h.PopJob())
}

func TestDeadlineHeapItemsAndRemove(t *testing.T) {
	h := NewDeadlineHeap()
	now := time.Now()
	j1 := mkJob(1, 0)
	j1.DeadlineAt = now.Add(2 * time.Second)
	j2 := mkJob(2, 0)
	j2.DeadlineAt = now.Add(1 * time.Second)
	h.PushJob(j1)
	h.PushJob(j2)

	assert.Len(t, h.Items(), 2)
	h.Remove(j2)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, j1, h.Peek())
}
