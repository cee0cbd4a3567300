// File: pool/bufferpool.go
// Package pool implements the size-banded byte buffer allocator of the packet path.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/momentics/hioload-sfu/api"
)

// ByteBufferPool recycles fixed-capacity byte slices in a small number of size
// bands. It never fails and never blocks: misuse is downgraded to log output.
type ByteBufferPool struct {
	bands   []*slabPool // ascending by size
	largest int
	logger  *slog.Logger

	statistics  atomic.Bool
	bookkeeping atomic.Bool
	tracker     *tracker

	numRequests      atomic.Int64
	numReturns       atomic.Int64
	numLargeRequests atomic.Int64
}

var _ api.BytePool = (*ByteBufferPool)(nil)

// New builds a pool. The returned instance is meant to be created once by the
// process composition root and shared by reference.
func New(opts ...Option) (*ByteBufferPool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.thresholds) == 0 {
		return nil, fmt.Errorf("pool: at least one size band required: %w", api.ErrInvalidArgument)
	}
	for i, t := range o.thresholds {
		if t <= 0 || (i > 0 && t <= o.thresholds[i-1]) {
			return nil, fmt.Errorf("pool: thresholds must be positive and ascending, got %v: %w", o.thresholds, api.ErrInvalidArgument)
		}
	}
	if o.partitions <= 0 || o.partitionCapacity <= 0 {
		return nil, fmt.Errorf("pool: partitions (%d) and partition capacity (%d) must be positive: %w",
			o.partitions, o.partitionCapacity, api.ErrInvalidArgument)
	}

	p := &ByteBufferPool{
		bands:   make([]*slabPool, len(o.thresholds)),
		largest: o.thresholds[len(o.thresholds)-1],
		logger:  o.logger.With(slog.String("component", "bytebufferpool")),
	}
	for i, t := range o.thresholds {
		p.bands[i] = newSlabPool(fmt.Sprintf("pool%d", i+1), t, o.partitions, o.partitionCapacity)
	}
	p.tracker = newTracker(p.logger, o.historyLimit)
	p.SetStatisticsEnabled(o.statistics)
	p.SetBookkeepingEnabled(o.bookkeeping)
	return p, nil
}

// Acquire returns a buffer of at least size bytes. Sizes within a band yield a
// buffer of exactly the band size; larger sizes yield an unpooled buffer of exactly size.
func (p *ByteBufferPool) Acquire(size int) []byte {
	if size < 0 {
		size = 0
	}
	stats := p.statistics.Load()
	if stats {
		p.numRequests.Add(1)
	}

	var buf []byte
	if sp := p.bandFor(size); sp != nil {
		buf = sp.get(stats)
	} else {
		buf = make([]byte, size)
		p.numLargeRequests.Add(1)
	}

	if p.bookkeeping.Load() {
		p.tracker.allocated(buf)
	}
	return buf
}

// Release hands buf back. The buffer is classified by its full extent, so a
// caller that resliced buf[:n] may return the slice it holds.
func (p *ByteBufferPool) Release(buf []byte) {
	if buf == nil {
		return
	}
	buf = buf[:cap(buf)]
	stats := p.statistics.Load()
	if stats {
		p.numReturns.Add(1)
	}

	size := len(buf)
	if p.bookkeeping.Load() {
		if err := p.tracker.returned(buf, size > p.largest); errors.Is(err, api.ErrDoubleReturn) {
			// Pooling it again would hand one buffer to two owners.
			return
		}
	} else if size > p.largest {
		p.logger.Warn("received a suspiciously large buffer",
			slog.Int("buffer_len", size),
			slog.Any("error", api.ErrOversizedReturn))
	}

	if sp := p.bandExact(size); sp != nil {
		sp.put(buf, stats)
		return
	}
	if size <= p.largest {
		p.logger.Debug("discarding buffer not matching any size band", slog.Int("buffer_len", size))
	}
}

// SetStatisticsEnabled toggles request/return/allocation accounting.
func (p *ByteBufferPool) SetStatisticsEnabled(enabled bool) {
	p.statistics.Store(enabled)
}

// StatisticsEnabled reports the statistics flag.
func (p *ByteBufferPool) StatisticsEnabled() bool {
	return p.statistics.Load()
}

// SetBookkeepingEnabled toggles per-buffer lifecycle tracking. Disabling drops
// every retained record immediately.
func (p *ByteBufferPool) SetBookkeepingEnabled(enabled bool) {
	p.bookkeeping.Store(enabled)
	p.tracker.setEnabled(enabled)
}

// BookkeepingEnabled reports the bookkeeping flag.
func (p *ByteBufferPool) BookkeepingEnabled() bool {
	return p.bookkeeping.Load()
}

// Stats returns a snapshot. Concurrent activity may make the counters mutually
// inconsistent by a few operations.
func (p *ByteBufferPool) Stats() api.PoolStats {
	large := p.numLargeRequests.Load()
	s := api.PoolStats{NumLargeRequests: large}

	if p.statistics.Load() {
		s.StatisticsEnabled = true
		s.NumRequests = p.numRequests.Load()
		s.NumReturns = p.numReturns.Load()
		s.NumAllocations = large
		s.Bands = make([]api.BandStats, len(p.bands))
		for i, sp := range p.bands {
			bs := sp.stats()
			s.Bands[i] = bs
			s.NumAllocations += bs.NumAllocations
			s.StoredBytes += bs.StoredBytes
		}
		s.AllocationPercent = percent(s.NumAllocations, s.NumRequests)
	}

	if p.bookkeeping.Load() {
		s.BookkeepingEnabled = true
		s.OutstandingBuffers, s.Anomalies = p.tracker.counts()
	}
	return s
}

// Thresholds returns the band sizes in ascending order.
func (p *ByteBufferPool) Thresholds() []int {
	out := make([]int, len(p.bands))
	for i, sp := range p.bands {
		out[i] = sp.size
	}
	return out
}

// bandFor returns the smallest band able to hold size bytes.
func (p *ByteBufferPool) bandFor(size int) *slabPool {
	for _, sp := range p.bands {
		if size <= sp.size {
			return sp
		}
	}
	return nil
}

// bandExact returns the band whose size equals size.
func (p *ByteBufferPool) bandExact(size int) *slabPool {
	for _, sp := range p.bands {
		if size == sp.size {
			return sp
		}
	}
	return nil
}
