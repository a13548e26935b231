package glesutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsScheduledJobs(t *testing.T) {
	l := NewLoop()
	assert.False(t, l.IsLoopPending())
	assert.Zero(t, l.Run())

	var order []int
	require.NoError(t, l.ScheduleJob(func() { order = append(order, 1) }))
	require.NoError(t, l.ScheduleJob(func() {
		order = append(order, 2)
		// jobs scheduled while running run in the same Run
		_ = l.ScheduleJob(func() { order = append(order, 3) })
	}))
	assert.True(t, l.IsLoopPending())

	assert.Equal(t, 3, l.Run())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.False(t, l.IsLoopPending())
}

func TestLoopScheduleFromGoroutines(t *testing.T) {
	l := NewLoop()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.ScheduleJob(func() {})
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, l.Run())
}

func TestLoopStop(t *testing.T) {
	l := NewLoop()
	ran := false
	require.NoError(t, l.ScheduleJob(func() { ran = true }))
	l.Stop()

	assert.ErrorIs(t, l.ScheduleJob(func() {}), ErrLoopStopped)
	assert.Zero(t, l.Run())
	assert.False(t, ran)
}
