// File: pool/slab_pool.go
// Package pool implements lock-free slab allocation for one size band.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/internal/concurrency"
)

// slabPool owns the free buffers of exactly one band size. The free list is
// split into partitions, each a bounded MPMC queue, so concurrent packet paths
// rarely contend on the same cache lines.
type slabPool struct {
	name       string
	size       int
	partitions []*concurrency.LockFreeQueue[[]byte]
	next       atomic.Uint64

	// Counters are only advanced while statistics are enabled.
	requests    atomic.Int64
	returns     atomic.Int64
	allocations atomic.Int64
	discards    atomic.Int64
}

func newSlabPool(name string, size, partitions, capacity int) *slabPool {
	sp := &slabPool{
		name:       name,
		size:       size,
		partitions: make([]*concurrency.LockFreeQueue[[]byte], partitions),
	}
	for i := range sp.partitions {
		sp.partitions[i] = concurrency.NewLockFreeQueue[[]byte](capacity)
	}
	return sp
}

// get pops a free buffer, scanning partitions from a round-robin start, or
// allocates a new buffer of the band size on a miss.
func (sp *slabPool) get(stats bool) []byte {
	if stats {
		sp.requests.Add(1)
	}
	n := uint64(len(sp.partitions))
	start := sp.next.Add(1)
	for i := uint64(0); i < n; i++ {
		if buf, ok := sp.partitions[(start+i)%n].Dequeue(); ok {
			return buf
		}
	}
	if stats {
		sp.allocations.Add(1)
	}
	return make([]byte, sp.size)
}

// put pushes buf to a partition; a saturated band drops the buffer to the GC.
func (sp *slabPool) put(buf []byte, stats bool) {
	if stats {
		sp.returns.Add(1)
	}
	n := uint64(len(sp.partitions))
	start := sp.next.Add(1)
	for i := uint64(0); i < n; i++ {
		if sp.partitions[(start+i)%n].Enqueue(buf) {
			return
		}
	}
	if stats {
		sp.discards.Add(1)
	}
}

// storedBytes is computed from queue depth so it stays correct across statistics toggles.
func (sp *slabPool) storedBytes() int64 {
	var stored int64
	for _, q := range sp.partitions {
		stored += int64(q.Len())
	}
	return stored * int64(sp.size)
}

func (sp *slabPool) stats() api.BandStats {
	requests := sp.requests.Load()
	allocations := sp.allocations.Load()
	return api.BandStats{
		Name:              sp.name,
		BufferSize:        sp.size,
		NumPartitions:     len(sp.partitions),
		NumRequests:       requests,
		NumReturns:        sp.returns.Load(),
		NumAllocations:    allocations,
		NumDiscards:       sp.discards.Load(),
		AllocationPercent: percent(allocations, requests),
		StoredBytes:       sp.storedBytes(),
	}
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}
