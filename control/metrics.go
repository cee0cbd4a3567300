// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Control-plane bookkeeping: how many updates were applied or rejected and when.

package control

import (
	"maps"
	"sync"
	"time"
)

// MetricsRegistry holds control-plane counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Inc adds one to an integer counter.
func (mr *MetricsRegistry) Inc(key string) {
	mr.mu.Lock()
	n, _ := mr.metrics[key].(int64)
	mr.metrics[key] = n + 1
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest metrics plus the last update time.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := maps.Clone(mr.metrics)
	if !mr.updated.IsZero() {
		out["updated_at"] = mr.updated.UTC().Format(time.RFC3339Nano)
	}
	return out
}
