// File: overload/probe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-sfu/api"
)

// Probe produces one load measurement per call.
type Probe interface {
	Sample() (api.LoadMeasurement, error)
}

// PacketRateProbe turns a monotonically increasing packet counter into a rate.
// The first sample only primes the probe and reports zero.
type PacketRateProbe struct {
	mu      sync.Mutex
	counter func() uint64
	clock   api.Clock
	last    uint64
	lastAt  time.Time
	primed  bool
	rate    float64
}

// NewPacketRateProbe creates a probe over counter.
func NewPacketRateProbe(counter func() uint64, clock api.Clock) (*PacketRateProbe, error) {
	if counter == nil || clock == nil {
		return nil, fmt.Errorf("overload: packet rate probe needs a counter and a clock: %w", api.ErrInvalidArgument)
	}
	return &PacketRateProbe{counter: counter, clock: clock}, nil
}

func (p *PacketRateProbe) Sample() (api.LoadMeasurement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now, cur := p.clock.Now(), p.counter()
	if !p.primed {
		p.primed = true
		p.last, p.lastAt = cur, now
		return PacketRateMeasurement(0), nil
	}
	elapsed := now.Sub(p.lastAt)
	if elapsed <= 0 {
		return PacketRateMeasurement(p.rate), nil
	}
	// A counter reset is treated as a fresh start.
	delta := uint64(0)
	if cur >= p.last {
		delta = cur - p.last
	}
	p.rate = float64(delta) / elapsed.Seconds()
	p.last, p.lastAt = cur, now
	return PacketRateMeasurement(p.rate), nil
}

// CPUProbe reports process CPU usage between consecutive samples.
type CPUProbe struct {
	mu      sync.Mutex
	clock   api.Clock
	lastCPU time.Duration
	lastAt  time.Time
	usage   float64
	cpuTime func() (time.Duration, error)
}

// NewCPUProbe returns api.ErrNotSupported where process CPU time is unavailable.
func NewCPUProbe(clock api.Clock) (*CPUProbe, error) {
	if clock == nil {
		return nil, fmt.Errorf("overload: cpu probe needs a clock: %w", api.ErrInvalidArgument)
	}
	return newCPUProbe(clock, processCPUTime)
}

func newCPUProbe(clock api.Clock, cpuTime func() (time.Duration, error)) (*CPUProbe, error) {
	used, err := cpuTime()
	if err != nil {
		return nil, err
	}
	return &CPUProbe{clock: clock, lastCPU: used, lastAt: clock.Now(), cpuTime: cpuTime}, nil
}

func (p *CPUProbe) Sample() (api.LoadMeasurement, error) {
	used, err := p.cpuTime()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	elapsed := now.Sub(p.lastAt)
	if elapsed <= 0 {
		return CPUMeasurement(p.usage), nil
	}
	p.usage = float64(used-p.lastCPU) / float64(elapsed)
	p.lastCPU, p.lastAt = used, now
	return CPUMeasurement(p.usage), nil
}
