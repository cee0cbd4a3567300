// File: metrics/register.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/overload"
)

// LoadSource is the read side of the load-shedding controller.
type LoadSource interface {
	CurrentStressLevel() float64
	State() overload.State
}

// RelaySource is the read side of the packet relay.
type RelaySource interface {
	PacketsReceived() uint64
	PacketsForwarded() uint64
	PacketsDropped() uint64
	LastNLimit() int
}

// Sources lists what to export; nil members are skipped.
type Sources struct {
	Pool  api.StatsProvider
	Load  LoadSource
	Relay RelaySource
}

// Register installs collectors for src on reg. It panics on duplicate
// registration, like promauto.
func Register(reg prometheus.Registerer, src Sources) {
	factory := promauto.With(reg)

	if src.Pool != nil {
		reg.MustRegister(NewPoolCollector(src.Pool))
	}

	if l := src.Load; l != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "load",
			Name:      "stress",
			Help:      "Aggregate load normalized by the overload thresholds; 1.0 triggers shedding.",
		}, l.CurrentStressLevel)
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "load",
			Name:      "reducing",
			Help:      "1 while at least one load reduction is in effect.",
		}, func() float64 {
			if l.State() == overload.Reducing {
				return 1
			}
			return 0
		})
	}

	if r := src.Relay; r != nil {
		counter := func(name, help string, fn func() uint64) {
			factory.NewCounterFunc(prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "relay",
				Name:      name,
				Help:      help,
			}, func() float64 { return float64(fn()) })
		}
		counter("packets_received_total", "Datagrams read from the media socket.", r.PacketsReceived)
		counter("packets_forwarded_total", "Datagrams written to receivers.", r.PacketsForwarded)
		counter("packets_dropped_total", "Datagrams dropped for unknown senders, full queues or send errors.", r.PacketsDropped)
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "relay",
			Name:      "last_n",
			Help:      "Per-receiver stream cap, -1 when unlimited.",
		}, func() float64 { return float64(r.LastNLimit()) })
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
