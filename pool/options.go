// File: pool/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for ByteBufferPool construction.

package pool

import "log/slog"

// Default band thresholds: audio and RTCP, mid-size video, full-MTU packets.
const (
	DefaultThreshold1 = 220
	DefaultThreshold2 = 775
	DefaultThreshold3 = 1500

	DefaultPartitions        = 8
	DefaultPartitionCapacity = 1024
)

type options struct {
	thresholds        []int
	partitions        int
	partitionCapacity int
	logger            *slog.Logger
	historyLimit      int
	statistics        bool
	bookkeeping       bool
}

func defaultOptions() options {
	return options{
		thresholds:        []int{DefaultThreshold1, DefaultThreshold2, DefaultThreshold3},
		partitions:        DefaultPartitions,
		partitionCapacity: DefaultPartitionCapacity,
		logger:            slog.Default(),
	}
}

// Option customizes a ByteBufferPool.
type Option func(*options)

// WithThresholds replaces the band bounds. They must be positive and strictly ascending.
func WithThresholds(thresholds ...int) Option {
	return func(o *options) {
		o.thresholds = append([]int(nil), thresholds...)
	}
}

// WithPartitions sets the number of free-list partitions per band.
func WithPartitions(n int) Option {
	return func(o *options) { o.partitions = n }
}

// WithPartitionCapacity bounds how many free buffers a single partition retains.
func WithPartitionCapacity(n int) Option {
	return func(o *options) { o.partitionCapacity = n }
}

// WithLogger sets the diagnostic sink.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHistoryLimit keeps only the n most recent bookkeeping events per buffer.
// Zero keeps the full history.
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithStatistics sets the initial statistics flag.
func WithStatistics(enabled bool) Option {
	return func(o *options) { o.statistics = enabled }
}

// WithBookkeeping sets the initial bookkeeping flag.
func WithBookkeeping(enabled bool) Option {
	return func(o *options) { o.bookkeeping = enabled }
}
