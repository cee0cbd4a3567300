package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockFreeQueue_Capacity(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{0, 2},
		{1, 2},
		{3, 4},
		{1024, 1024},
		{1025, 2048},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewLockFreeQueue[int](tt.requested).Cap(), "requested %d", tt.requested)
	}
}

func TestLockFreeQueue_FullAndEmpty(t *testing.T) {
	q := NewLockFreeQueue[int](4)

	_, ok := q.Dequeue()
	assert.False(t, ok)

	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i))
	}
	assert.False(t, q.Enqueue(99), "queue should report full")
	assert.Equal(t, 4, q.Len())

	for i := 0; i < 4; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v, "FIFO order")
	}
	assert.Equal(t, 0, q.Len())
}

func TestLockFreeQueue_ClearsDequeuedSlot(t *testing.T) {
	q := NewLockFreeQueue[[]byte](2)
	require.True(t, q.Enqueue(make([]byte, 8)))
	_, ok := q.Dequeue()
	require.True(t, ok)
	assert.Nil(t, q.cells[0].data)
}

func TestLockFreeQueue_MPMC(t *testing.T) {
	q := NewLockFreeQueue[int](1024)
	producers := 10
	consumers := 10
	itemsPerProducer := 10000

	var wg sync.WaitGroup
	var sentSum, receivedSum, receivedCount int64
	totalItems := int64(producers * itemsPerProducer)

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				val := pid*itemsPerProducer + i + 1
				for !q.Enqueue(val) {
					runtime.Gosched()
				}
				atomic.AddInt64(&sentSum, int64(val))
			}
		}(p)
	}

	var consumerWg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				if val, ok := q.Dequeue(); ok {
					atomic.AddInt64(&receivedSum, int64(val))
					if atomic.AddInt64(&receivedCount, 1) == totalItems {
						return
					}
				} else {
					if atomic.LoadInt64(&receivedCount) >= totalItems {
						return
					}
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Wait()

	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		assert.Equal(t, sentSum, receivedSum, "checksum mismatch")
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for consumers, received %d/%d", atomic.LoadInt64(&receivedCount), totalItems)
	}
}
