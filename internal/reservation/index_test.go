package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
)

func mkReserved(id uint64, deadline time.Time) *job.Job {
	j := job.New(id, "default", 0, nil, 0, time.Second, time.Now())
	j.DeadlineAt = deadline
	return j
}

func TestIndexOrdersByDeadline(t *testing.T) {
	idx := NewIndex()
	now := time.Now()
	j1 := mkReserved(1, now.Add(3*time.Second))
	j2 := mkReserved(2, now.Add(1*time.Second))
	j3 := mkReserved(3, now.Add(2*time.Second))

	idx.Add(j1)
	idx.Add(j2)
	idx.Add(j3)
	assert.Equal(t, 3, idx.Len())

	assert.Equal(t, j2, idx.PeekEarliest())
	assert.Equal(t, j2, idx.PopEarliest())
	assert.Equal(t, j3, idx.PopEarliest())
	assert.Equal(t, j1, idx.PopEarliest())
	assert.Equal(t, 0, idx.Len())
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex()
	now := time.Now()
	j1 := mkReserved(1, now.Add(1*time.Second))
	j2 := mkReserved(2, now.Add(2*time.Second))
	idx.Add(j1)
	idx.Add(j2)

	idx.Remove(j1)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, j2, idx.PeekEarliest())
}
