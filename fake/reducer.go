// File: fake/reducer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Recording load reducer with injectable failures.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-sfu/api"
)

// Reducer counts ReduceLoad and Recover invocations.
type Reducer struct {
	mu           sync.Mutex
	impact       time.Duration
	reduceCalls  int
	recoverCalls int
	reduceErr    error
	recoverErr   error
}

var _ api.LoadReducer = (*Reducer)(nil)

// NewReducer creates a reducer reporting impact as its cooldown.
func NewReducer(impact time.Duration) *Reducer {
	return &Reducer{impact: impact}
}

func (r *Reducer) ReduceLoad() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reduceCalls++
	return r.reduceErr
}

func (r *Reducer) Recover() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoverCalls++
	return r.recoverErr
}

func (r *Reducer) ImpactTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.impact
}

// SetImpactTime changes the reported cooldown.
func (r *Reducer) SetImpactTime(d time.Duration) {
	r.mu.Lock()
	r.impact = d
	r.mu.Unlock()
}

// FailReduce makes subsequent ReduceLoad calls return err; nil restores success.
func (r *Reducer) FailReduce(err error) {
	r.mu.Lock()
	r.reduceErr = err
	r.mu.Unlock()
}

// FailRecover makes subsequent Recover calls return err; nil restores success.
func (r *Reducer) FailRecover(err error) {
	r.mu.Lock()
	r.recoverErr = err
	r.mu.Unlock()
}

// ReduceCalls returns the number of ReduceLoad invocations, failed ones included.
func (r *Reducer) ReduceCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reduceCalls
}

// RecoverCalls returns the number of Recover invocations, failed ones included.
func (r *Reducer) RecoverCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recoverCalls
}
