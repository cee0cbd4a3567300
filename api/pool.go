// File: api/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Defines the pooling contract used on the packet path: size-banded byte buffer
// reuse plus the statistics record exposed to the control plane.

package api

import "github.com/goccy/go-json"

// BytePool provides reusable []byte buffers for all high-intensity operations.
type BytePool interface {
	// Acquire returns a slice of at least n bytes.
	Acquire(n int) []byte

	// Release returns a buffer to the pool. The caller must not touch buf afterwards.
	Release(buf []byte)
}

// StatsProvider exposes a pool statistics snapshot.
type StatsProvider interface {
	Stats() PoolStats
}

// PoolStats aggregates buffer allocation/reuse stats for the whole allocator.
// Only NumLargeRequests is always meaningful; the statistics block is valid when
// StatisticsEnabled is set and the bookkeeping block when BookkeepingEnabled is set.
type PoolStats struct {
	NumLargeRequests int64

	StatisticsEnabled bool
	NumRequests       int64
	NumReturns        int64
	NumAllocations    int64
	AllocationPercent float64
	StoredBytes       int64
	Bands             []BandStats

	BookkeepingEnabled bool
	OutstandingBuffers int64
	Anomalies          int64
}

// MarshalJSON emits only the blocks that are enabled.
func (s PoolStats) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"num_large_requests": s.NumLargeRequests,
	}
	if s.StatisticsEnabled {
		out["num_requests"] = s.NumRequests
		out["num_returns"] = s.NumReturns
		out["num_allocations"] = s.NumAllocations
		out["allocation_percent"] = s.AllocationPercent
		out["stored_bytes"] = s.StoredBytes
		for _, b := range s.Bands {
			out[b.Name] = b
		}
	}
	if s.BookkeepingEnabled {
		out["outstanding_buffers"] = s.OutstandingBuffers
		out["anomalies"] = s.Anomalies
	}
	return json.Marshal(out)
}

// BandStats describes one size band of the allocator.
type BandStats struct {
	Name              string  `json:"-"`
	BufferSize        int     `json:"default_size"`
	NumPartitions     int     `json:"num_partitions"`
	NumRequests       int64   `json:"num_requests"`
	NumReturns        int64   `json:"num_returns"`
	NumAllocations    int64   `json:"num_allocations"`
	NumDiscards       int64   `json:"num_discards"`
	AllocationPercent float64 `json:"allocation_percent"`
	StoredBytes       int64   `json:"stored_bytes"`
}
