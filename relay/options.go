// File: relay/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"log/slog"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/overload"
)

// DefaultMaxPacketSize fits an RTP packet on a standard Ethernet MTU.
const DefaultMaxPacketSize = 1500

type options struct {
	logger        *slog.Logger
	workers       int
	queueSize     int
	maxPacketSize int
	clock         api.Clock
}

func defaultOptions() options {
	return options{
		logger:        slog.Default(),
		maxPacketSize: DefaultMaxPacketSize,
		clock:         overload.SystemClock{},
	}
}

// Option configures a Relay.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkers sets the number of send workers and their queue size.
// Zero values pick the executor defaults.
func WithWorkers(workers, queueSize int) Option {
	return func(o *options) {
		o.workers = workers
		o.queueSize = queueSize
	}
}

// WithMaxPacketSize sets the receive buffer size requested from the pool.
func WithMaxPacketSize(n int) Option {
	return func(o *options) { o.maxPacketSize = n }
}

// WithClock sets the clock used for endpoint activity ordering.
func WithClock(c api.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}
