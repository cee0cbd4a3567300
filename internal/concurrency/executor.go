// File: internal/concurrency/executor.go
// Package concurrency implements the fan-out task executor used by the relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines using lock-free local queues
// and a bounded global channel as fallback. Idle workers park on a wake channel
// instead of spinning.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a fixed pool of worker goroutines.
type Executor struct {
	globalQueue chan TaskFunc
	workers     []*worker
	closeCh     chan struct{}
	closed      atomic.Bool
	// submitMu orders Submit against Close: every accepted task is enqueued
	// before the workers start their final drain.
	submitMu sync.RWMutex
	next        atomic.Uint64
	wg          sync.WaitGroup
	onPanic     func(any)

	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	rejectedTasks  atomic.Int64
	panics         atomic.Int64
}

// worker represents a single executor goroutine.
type worker struct {
	id         int
	executor   *Executor
	localQueue *LockFreeQueue[TaskFunc]
	wake       chan struct{}
}

// NewExecutor creates a new Executor with numWorkers goroutines, each owning a local
// queue of queueSize slots. numWorkers <= 0 defaults to runtime.NumCPU().
func NewExecutor(numWorkers, queueSize int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	e := &Executor{
		globalQueue: make(chan TaskFunc, numWorkers*4),
		closeCh:     make(chan struct{}),
		workers:     make([]*worker, numWorkers),
	}
	for i := 0; i < numWorkers; i++ {
		e.workers[i] = &worker{
			id:         i,
			executor:   e,
			localQueue: NewLockFreeQueue[TaskFunc](queueSize),
			wake:       make(chan struct{}, 1),
		}
	}
	e.wg.Add(numWorkers)
	for _, w := range e.workers {
		go w.run()
	}
	return e
}

// OnPanic installs a handler invoked with the recovered value when a task panics.
// Must be called before the first Submit.
func (e *Executor) OnPanic(fn func(any)) {
	e.onPanic = fn
}

// Submit enqueues a task. It does not wait for workers: ErrExecutorClosed after
// Close, ErrExecutorFull when every queue is saturated. An accepted task always
// runs, even when Close is called concurrently.
func (e *Executor) Submit(task TaskFunc) error {
	e.submitMu.RLock()
	defer e.submitMu.RUnlock()
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	w := e.workers[e.next.Add(1)%uint64(len(e.workers))]
	if w.localQueue.Enqueue(task) {
		e.totalTasks.Add(1)
		w.signal()
		return nil
	}
	select {
	case e.globalQueue <- task:
		e.totalTasks.Add(1)
		return nil
	default:
		e.rejectedTasks.Add(1)
		return ErrExecutorFull
	}
}

// NumWorkers returns the number of workers.
func (e *Executor) NumWorkers() int {
	return len(e.workers)
}

// Close stops accepting tasks, lets workers drain their local queues and waits for them.
func (e *Executor) Close() {
	e.submitMu.Lock()
	first := e.closed.CompareAndSwap(false, true)
	e.submitMu.Unlock()
	if first {
		close(e.closeCh)
		e.wg.Wait()
	}
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	done := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": done,
		"pending_tasks":   total - done,
		"rejected_tasks":  e.rejectedTasks.Load(),
		"panics":          e.panics.Load(),
		"num_workers":     int64(len(e.workers)),
	}
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run() {
	defer w.executor.wg.Done()
	for {
		if task, ok := w.localQueue.Dequeue(); ok {
			w.execute(task)
			continue
		}
		select {
		case task := <-w.executor.globalQueue:
			w.execute(task)
		case <-w.wake:
		case <-w.executor.closeCh:
			w.drain()
			return
		}
	}
}

// drain runs whatever is still queued so that tasks holding pooled buffers release them.
func (w *worker) drain() {
	for {
		if task, ok := w.localQueue.Dequeue(); ok {
			w.execute(task)
			continue
		}
		select {
		case task := <-w.executor.globalQueue:
			w.execute(task)
		default:
			return
		}
	}
}

// execute runs the task and updates statistics, recovering from panics.
func (w *worker) execute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			w.executor.panics.Add(1)
			if w.executor.onPanic != nil {
				w.executor.onPanic(r)
			}
		}
		w.executor.completedTasks.Add(1)
	}()
	task()
}
