// File: overload/controller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-sfu/api"
)

// State of the controller.
type State int

const (
	// Nominal means no reduction is in effect.
	Nominal State = iota
	// Reducing means at least one ReduceLoad has not been matched by a Recover.
	Reducing
)

func (s State) String() string {
	switch s {
	case Nominal:
		return "nominal"
	case Reducing:
		return "reducing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type source struct {
	thresholdPair
	latest api.LoadMeasurement
}

// Controller drives a LoadReducer from load measurements with hysteresis.
//
// LoadUpdate must be serialized by the caller. CurrentStressLevel and State
// may be read concurrently with it.
type Controller struct {
	sources        []*source
	byKind         map[string]*source
	recoveryRatio  float64
	reducer        api.LoadReducer
	clock          api.Clock
	logger         *slog.Logger
	reducerEnabled bool

	lastAction    time.Time
	hasLastAction bool

	// Last Info-level report of a skipped action while the reducer is disabled.
	lastSkipped    time.Time
	hasLastSkipped bool

	stress      atomic.Uint64 // math.Float64bits
	outstanding atomic.Int64
}

// New builds a controller for one measurement kind; WithSource adds more.
// Every recovery threshold must share its overload threshold's kind and be
// strictly lower.
func New(overload, recovery api.LoadMeasurement, reducer api.LoadReducer, clock api.Clock, opts ...Option) (*Controller, error) {
	if reducer == nil || clock == nil {
		return nil, fmt.Errorf("overload: reducer and clock are required: %w", api.ErrInvalidArgument)
	}
	o := options{logger: slog.Default(), reducerEnabled: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		byKind:         make(map[string]*source),
		recoveryRatio:  math.Inf(1),
		reducer:        reducer,
		clock:          clock,
		logger:         o.logger.With(slog.String("component", "loadmanager")),
		reducerEnabled: o.reducerEnabled,
	}
	pairs := append([]thresholdPair{{overload: overload, recovery: recovery}}, o.extra...)
	for _, p := range pairs {
		if err := c.addSource(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Controller) addSource(p thresholdPair) error {
	if p.overload == nil || p.recovery == nil {
		return fmt.Errorf("overload: nil threshold: %w", api.ErrInvalidArgument)
	}
	if p.overload.Load() <= 0 {
		return fmt.Errorf("overload: overload threshold %s must be positive: %w", p.overload, api.ErrInvalidArgument)
	}
	ratio, err := p.recovery.Div(p.overload)
	if err != nil {
		return err
	}
	if ratio >= 1 || ratio < 0 {
		return fmt.Errorf("overload: recovery threshold %s must be below overload threshold %s: %w",
			p.recovery, p.overload, api.ErrInvalidArgument)
	}
	kind := p.overload.Kind()
	if _, dup := c.byKind[kind]; dup {
		return fmt.Errorf("overload: thresholds for %q configured twice: %w", kind, api.ErrAlreadyExists)
	}
	s := &source{thresholdPair: p}
	c.sources = append(c.sources, s)
	c.byKind[kind] = s
	c.recoveryRatio = math.Min(c.recoveryRatio, ratio)
	return nil
}

// LoadUpdate records m as the latest measurement of its kind, recomputes the
// stress level and calls the reducer if a transition is due. Reducer errors
// are returned wrapped; a failed call leaves the cooldown timer and state as
// they were, so the next update retries it.
func (c *Controller) LoadUpdate(m api.LoadMeasurement) error {
	if m == nil {
		return fmt.Errorf("overload: nil measurement: %w", api.ErrInvalidArgument)
	}
	src, ok := c.byKind[m.Kind()]
	if !ok {
		return fmt.Errorf("overload: no thresholds for %q: %w", m.Kind(), api.ErrMeasurementMismatch)
	}
	src.latest = m

	stress := 0.0
	for _, s := range c.sources {
		if s.latest == nil {
			continue
		}
		r, err := s.latest.Div(s.overload)
		if err != nil {
			return err
		}
		stress += r
	}
	c.stress.Store(math.Float64bits(stress))

	now := c.clock.Now()
	switch {
	case stress >= 1.0:
		if c.cooledDown(now) {
			return c.reduce(now, stress, m)
		}
	case stress <= c.recoveryRatio:
		if c.outstanding.Load() > 0 && c.cooledDown(now) {
			return c.recover(now, stress, m)
		}
	}
	return nil
}

// CurrentStressLevel returns the last computed stress, 0 before any update.
func (c *Controller) CurrentStressLevel() float64 {
	return math.Float64frombits(c.stress.Load())
}

// State reports whether reductions are in effect.
func (c *Controller) State() State {
	if c.outstanding.Load() > 0 {
		return Reducing
	}
	return Nominal
}

// RecoveryRatio returns the stress at or below which recovery is considered.
func (c *Controller) RecoveryRatio() float64 { return c.recoveryRatio }

// ReducerEnabled reports whether the reducer is actually invoked.
func (c *Controller) ReducerEnabled() bool { return c.reducerEnabled }

// cooledDown queries the reducer each time; its impact time may change.
func (c *Controller) cooledDown(now time.Time) bool {
	if !c.hasLastAction {
		return true
	}
	return now.Sub(c.lastAction) >= c.reducer.ImpactTime()
}

// skipped reports an action the disabled reducer did not take. It logs at Info
// at most once per impact time and at Debug otherwise.
func (c *Controller) skipped(now time.Time, msg string, stress float64, m api.LoadMeasurement) {
	level := slog.LevelDebug
	if !c.hasLastSkipped || now.Sub(c.lastSkipped) >= c.reducer.ImpactTime() {
		level = slog.LevelInfo
		c.lastSkipped = now
		c.hasLastSkipped = true
	}
	c.logger.Log(context.Background(), level, msg,
		slog.Float64("stress", stress),
		slog.String("measurement", m.String()))
}

func (c *Controller) reduce(now time.Time, stress float64, m api.LoadMeasurement) error {
	if !c.reducerEnabled {
		c.skipped(now, "load is too high, load reducer is disabled", stress, m)
		return nil
	}
	c.logger.Info("load is too high, reducing",
		slog.Float64("stress", stress),
		slog.String("measurement", m.String()))
	if err := c.reducer.ReduceLoad(); err != nil {
		return fmt.Errorf("overload: reduce load: %w", err)
	}
	c.lastAction = now
	c.hasLastAction = true
	c.outstanding.Add(1)
	return nil
}

func (c *Controller) recover(now time.Time, stress float64, m api.LoadMeasurement) error {
	if !c.reducerEnabled {
		c.skipped(now, "load is low enough, load reducer is disabled", stress, m)
		return nil
	}
	c.logger.Info("load is low enough, recovering",
		slog.Float64("stress", stress),
		slog.String("measurement", m.String()))
	if err := c.reducer.Recover(); err != nil {
		return fmt.Errorf("overload: recover: %w", err)
	}
	c.lastAction = now
	c.hasLastAction = true
	c.outstanding.Add(-1)
	return nil
}
