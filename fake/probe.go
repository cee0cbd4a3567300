// File: fake/probe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"

	"github.com/momentics/hioload-sfu/api"
)

// Probe replays scripted samples; once exhausted it repeats the last one.
type Probe struct {
	mu      sync.Mutex
	samples []api.LoadMeasurement
	err     error
	calls   int
}

// NewProbe creates a probe returning samples in order.
func NewProbe(samples ...api.LoadMeasurement) *Probe {
	return &Probe{samples: samples}
}

// Fail makes Sample return err until cleared with nil.
func (p *Probe) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *Probe) Sample() (api.LoadMeasurement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if len(p.samples) == 0 {
		return nil, api.ErrNotFound
	}
	m := p.samples[0]
	if len(p.samples) > 1 {
		p.samples = p.samples[1:]
	}
	return m, nil
}

// Calls returns how many times Sample ran.
func (p *Probe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
