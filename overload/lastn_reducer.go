// File: overload/lastn_reducer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/momentics/hioload-sfu/api"
)

// LastNTarget is the forwarding engine whose per-receiver stream cap is shed.
// A limit of -1 means unlimited.
type LastNTarget interface {
	LastNLimit() int
	SetLastNLimit(n int)
	MaxConferenceSize() int
}

// LastNConfig tunes LastNReducer.
type LastNConfig struct {
	ReductionScale float64       // in (0, 1)
	RecoverScale   float64       // > 1
	MinLastN       int           // floor for reductions
	ImpactTime     time.Duration // cooldown reported to the controller
}

// DefaultLastNConfig returns the stock tuning.
func DefaultLastNConfig() LastNConfig {
	return LastNConfig{
		ReductionScale: 0.75,
		RecoverScale:   1.25,
		MinLastN:       1,
		ImpactTime:     time.Minute,
	}
}

// Validate checks the tuning ranges.
func (c LastNConfig) Validate() error {
	switch {
	case c.ReductionScale <= 0 || c.ReductionScale >= 1:
		return fmt.Errorf("overload: reduction scale %v not in (0, 1): %w", c.ReductionScale, api.ErrInvalidArgument)
	case c.RecoverScale <= 1:
		return fmt.Errorf("overload: recover scale %v must exceed 1: %w", c.RecoverScale, api.ErrInvalidArgument)
	case c.MinLastN < 0:
		return fmt.Errorf("overload: min last-n %d is negative: %w", c.MinLastN, api.ErrInvalidArgument)
	case c.ImpactTime <= 0:
		return fmt.Errorf("overload: impact time %v must be positive: %w", c.ImpactTime, api.ErrInvalidArgument)
	}
	return nil
}

// LastNReducer sheds load by capping how many streams each receiver gets.
type LastNReducer struct {
	mu     sync.Mutex
	target LastNTarget
	cfg    LastNConfig
	logger *slog.Logger
}

var _ api.LoadReducer = (*LastNReducer)(nil)

// NewLastNReducer creates a reducer acting on target.
func NewLastNReducer(target LastNTarget, cfg LastNConfig, logger *slog.Logger) (*LastNReducer, error) {
	if target == nil {
		return nil, fmt.Errorf("overload: last-n target is required: %w", api.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LastNReducer{target: target, cfg: cfg, logger: logger.With(slog.String("component", "last_n_reducer"))}, nil
}

// receivers is how many streams the largest conference forwards to each member.
func (r *LastNReducer) receivers() int {
	return max(r.target.MaxConferenceSize()-1, 0)
}

// ReduceLoad scales the current cap down, starting from the receiver count of
// the largest conference when no cap is set.
func (r *LastNReducer) ReduceLoad() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.target.LastNLimit()
	if current < 0 {
		current = r.receivers()
	}
	next := int(math.Floor(float64(current) * r.cfg.ReductionScale))
	if next < r.cfg.MinLastN {
		next = r.cfg.MinLastN
	}
	r.logger.Info("reducing last-n",
		slog.Int("largest_conference", r.target.MaxConferenceSize()),
		slog.Int("last_n", next))
	r.target.SetLastNLimit(next)
	return nil
}

// Recover scales the cap up and lifts it once it no longer constrains any
// conference.
func (r *LastNReducer) Recover() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.target.LastNLimit()
	if current < 0 {
		return nil
	}
	next := int(math.Ceil(float64(current) * r.cfg.RecoverScale))
	if next <= current {
		next = current + 1
	}
	if next >= r.receivers() {
		next = -1
	}
	r.logger.Info("recovering last-n", slog.Int("last_n", next))
	r.target.SetLastNLimit(next)
	return nil
}

func (r *LastNReducer) ImpactTime() time.Duration { return r.cfg.ImpactTime }
