// File: overload/sampler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/hioload-sfu/api"
)

// Sampler polls probes on a fixed interval and feeds a Controller. It is the
// single goroutine calling LoadUpdate, which serializes the controller.
type Sampler struct {
	ctrl     *Controller
	probes   []Probe
	interval time.Duration
	logger   *slog.Logger
}

// NewSampler creates a sampler. A nil logger means slog.Default().
func NewSampler(ctrl *Controller, interval time.Duration, logger *slog.Logger, probes ...Probe) (*Sampler, error) {
	if ctrl == nil || interval <= 0 || len(probes) == 0 {
		return nil, fmt.Errorf("overload: sampler needs a controller, a positive interval and a probe: %w", api.ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		ctrl:     ctrl,
		probes:   probes,
		interval: interval,
		logger:   logger.With(slog.String("component", "load_sampler")),
	}, nil
}

// Run samples until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SampleOnce()
		}
	}
}

// SampleOnce polls every probe once. Probe and reducer failures are logged.
func (s *Sampler) SampleOnce() {
	for _, p := range s.probes {
		m, err := p.Sample()
		if err != nil {
			s.logger.Warn("load probe failed", slog.Any("error", err))
			continue
		}
		if err := s.ctrl.LoadUpdate(m); err != nil {
			s.logger.Error("load update failed",
				slog.String("measurement", m.String()),
				slog.Any("error", err))
		}
	}
}
