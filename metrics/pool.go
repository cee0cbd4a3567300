// File: metrics/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-sfu/api"
)

// PoolCollector reads a pool stats snapshot on every scrape. Series for a
// disabled instrumentation block are simply absent.
type PoolCollector struct {
	pool api.StatsProvider

	largeRequests     *prometheus.Desc
	requests          *prometheus.Desc
	returns           *prometheus.Desc
	allocations       *prometheus.Desc
	allocationPercent *prometheus.Desc
	storedBytes       *prometheus.Desc

	bandRequests    *prometheus.Desc
	bandAllocations *prometheus.Desc
	bandDiscards    *prometheus.Desc
	bandStoredBytes *prometheus.Desc

	outstanding *prometheus.Desc
	anomalies   *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector over pool.
func NewPoolCollector(pool api.StatsProvider) *PoolCollector {
	name := func(n string) string { return prometheus.BuildFQName(Namespace, "pool", n) }
	band := []string{"band", "size"}
	return &PoolCollector{
		pool:              pool,
		largeRequests:     prometheus.NewDesc(name("large_requests_total"), "Requests above the largest size band, served unpooled.", nil, nil),
		requests:          prometheus.NewDesc(name("requests_total"), "Buffer requests.", nil, nil),
		returns:           prometheus.NewDesc(name("returns_total"), "Buffer returns.", nil, nil),
		allocations:       prometheus.NewDesc(name("allocations_total"), "Requests that had to allocate a new buffer.", nil, nil),
		allocationPercent: prometheus.NewDesc(name("allocation_percent"), "Allocations as a percentage of requests.", nil, nil),
		storedBytes:       prometheus.NewDesc(name("stored_bytes"), "Bytes held in free lists.", nil, nil),
		bandRequests:      prometheus.NewDesc(name("band_requests_total"), "Requests per size band.", band, nil),
		bandAllocations:   prometheus.NewDesc(name("band_allocations_total"), "Cache misses per size band.", band, nil),
		bandDiscards:      prometheus.NewDesc(name("band_discards_total"), "Returns dropped because the band was full.", band, nil),
		bandStoredBytes:   prometheus.NewDesc(name("band_stored_bytes"), "Bytes held in the free list of a size band.", band, nil),
		outstanding:       prometheus.NewDesc(name("outstanding_buffers"), "Buffers handed out and not yet returned.", nil, nil),
		anomalies:         prometheus.NewDesc(name("anomalies"), "Buffer misuse events detected since bookkeeping was last enabled.", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.largeRequests, c.requests, c.returns, c.allocations, c.allocationPercent, c.storedBytes,
		c.bandRequests, c.bandAllocations, c.bandDiscards, c.bandStoredBytes,
		c.outstanding, c.anomalies,
	} {
		ch <- d
	}
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.largeRequests, prometheus.CounterValue, float64(s.NumLargeRequests))

	if s.StatisticsEnabled {
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.NumRequests))
		ch <- prometheus.MustNewConstMetric(c.returns, prometheus.CounterValue, float64(s.NumReturns))
		ch <- prometheus.MustNewConstMetric(c.allocations, prometheus.CounterValue, float64(s.NumAllocations))
		ch <- prometheus.MustNewConstMetric(c.allocationPercent, prometheus.GaugeValue, s.AllocationPercent)
		ch <- prometheus.MustNewConstMetric(c.storedBytes, prometheus.GaugeValue, float64(s.StoredBytes))
		for _, b := range s.Bands {
			size := itoa(b.BufferSize)
			ch <- prometheus.MustNewConstMetric(c.bandRequests, prometheus.CounterValue, float64(b.NumRequests), b.Name, size)
			ch <- prometheus.MustNewConstMetric(c.bandAllocations, prometheus.CounterValue, float64(b.NumAllocations), b.Name, size)
			ch <- prometheus.MustNewConstMetric(c.bandDiscards, prometheus.CounterValue, float64(b.NumDiscards), b.Name, size)
			ch <- prometheus.MustNewConstMetric(c.bandStoredBytes, prometheus.GaugeValue, float64(b.StoredBytes), b.Name, size)
		}
	}

	if s.BookkeepingEnabled {
		ch <- prometheus.MustNewConstMetric(c.outstanding, prometheus.GaugeValue, float64(s.OutstandingBuffers))
		ch <- prometheus.MustNewConstMetric(c.anomalies, prometheus.GaugeValue, float64(s.Anomalies))
	}
}
