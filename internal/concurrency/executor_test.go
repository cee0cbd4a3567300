package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_RunsAllTasks(t *testing.T) {
	e := NewExecutor(4, 64)
	defer e.Close()

	var wg sync.WaitGroup
	var ran atomic.Int64
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		for {
			err := e.Submit(func() {
				ran.Add(1)
				wg.Done()
			})
			if err == nil {
				break
			}
			require.ErrorIs(t, err, ErrExecutorFull)
			time.Sleep(time.Millisecond)
		}
	}
	wg.Wait()
	assert.Equal(t, int64(1000), ran.Load())
}

func TestExecutor_SubmitAfterClose(t *testing.T) {
	e := NewExecutor(1, 8)
	e.Close()
	assert.ErrorIs(t, e.Submit(func() {}), ErrExecutorClosed)
	e.Close() // idempotent
}

func TestExecutor_RecoversPanics(t *testing.T) {
	e := NewExecutor(1, 8)
	recovered := make(chan any, 1)
	e.OnPanic(func(r any) { recovered <- r })

	require.NoError(t, e.Submit(func() { panic("boom") }))
	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("panic handler not invoked")
	}

	done := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
	e.Close()
	assert.Equal(t, int64(1), e.Stats()["panics"])
}

func TestExecutor_CloseDrainsQueuedTasks(t *testing.T) {
	e := NewExecutor(1, 64)
	block := make(chan struct{})
	var ran atomic.Int64
	require.NoError(t, e.Submit(func() { <-block }))
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Submit(func() { ran.Add(1) }))
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	e.Close()
	assert.Equal(t, int64(10), ran.Load())
	stats := e.Stats()
	assert.Equal(t, stats["total_tasks"], stats["completed_tasks"])
}

func TestExecutor_SubmitRacingCloseRunsAcceptedTasks(t *testing.T) {
	for round := 0; round < 50; round++ {
		e := NewExecutor(2, 8)
		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if e.Submit(func() { ran.Add(1) }) == nil {
						accepted.Add(1)
					}
				}
			}()
		}
		e.Close()
		wg.Wait()
		require.Equal(t, accepted.Load(), ran.Load(), "round %d", round)
	}
}
