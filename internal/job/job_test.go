package job

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnforcesMinimumTTR(t *testing.T) {
	now := time.Now()
	j := New(1, "default", 0, nil, 0, 500*time.Millisecond, now)
	assert.Equal(t, time.Second, j.TTR)
	assert.Equal(t, -1, j.HeapIndex)
}

func TestReserveAndClear(t *testing.T) {
	now := time.Now()
	j := New(1, "default", 0, []byte("x"), 0, 5*time.Second, now)
	conn, err := uuid.NewV4()
	require.NoError(t, err)

	j.SetReserver(conn, now)
	assert.True(t, j.ReservedBy(conn))
	assert.Equal(t, Reserved, j.State)
	assert.Equal(t, now.Add(5*time.Second), j.DeadlineAt)
	assert.False(t, j.DeadlineSoonSent)
	assert.Equal(t, uint64(1), j.Counters.Reserves)

	other, _ := uuid.NewV4()
	assert.False(t, j.ReservedBy(other))

	j.ClearReserver()
	assert.False(t, j.ReservedBy(conn))
}

func TestSafetyDeadline(t *testing.T) {
	now := time.Now()
	j := New(1, "default", 0, nil, 0, 5*time.Second, now)
	j.DeadlineAt = now.Add(5 * time.Second)
	assert.Equal(t, now.Add(4*time.Second), j.SafetyDeadline())
}

func TestIsUrgent(t *testing.T) {
	low := New(1, "t", 100, nil, 0, time.Second, time.Now())
	high := New(2, "t", 2048, nil, 0, time.Second, time.Now())
	assert.True(t, low.IsUrgent())
	assert.False(t, high.IsUrgent())
}

func TestIDAllocatorMonotonic(t *testing.T) {
	var a IDAllocator
	assert.Equal(t, uint64(1), a.Next())
	assert.Equal(t, uint64(2), a.Next())
	assert.Equal(t, uint64(3), a.Next())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "delayed", Delayed.String())
	assert.Equal(t, "reserved", Reserved.String())
	assert.Equal(t, "buried", Buried.String())
	assert.Equal(t, "invalid", State(99).String())
}
