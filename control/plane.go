// control/plane.go
// Author: momentics <momentics@gmail.com>
//
// Plane implements api.Control using control package primitives.

package control

import (
	"fmt"
	"log/slog"

	"github.com/momentics/hioload-sfu/api"
)

// Configuration keys understood by the bindings.
const (
	KeyPoolStatistics  = "pool.statistics_enabled"
	KeyPoolBookkeeping = "pool.bookkeeping_enabled"
	KeyRelayLastN      = "relay.last_n"
)

// PoolToggles is the instrumentation surface of the buffer allocator.
type PoolToggles interface {
	api.StatsProvider
	SetStatisticsEnabled(bool)
	StatisticsEnabled() bool
	SetBookkeepingEnabled(bool)
	BookkeepingEnabled() bool
}

// LastNSetter is the relay's manual last-N override.
type LastNSetter interface {
	LastNLimit() int
	SetLastNLimit(n int)
}

// Plane is the process control plane.
type Plane struct {
	config  *ConfigStore
	metrics *MetricsRegistry
	debug   *DebugProbes
	logger  *slog.Logger
}

var _ api.Control = (*Plane)(nil)

// NewPlane creates a control plane with platform probes registered.
func NewPlane(logger *slog.Logger) *Plane {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Plane{
		config:  NewConfigStore(),
		metrics: NewMetricsRegistry(),
		debug:   NewDebugProbes(),
		logger:  logger.With(slog.String("component", "control")),
	}
	RegisterPlatformProbes(p.debug)
	return p
}

// BindPool exposes the allocator flags as configuration keys, initialised
// from the allocator's current state.
func (p *Plane) BindPool(pool PoolToggles) error {
	if err := p.config.Declare(KeyPoolStatistics, pool.StatisticsEnabled(), Bool); err != nil {
		return err
	}
	if err := p.config.Declare(KeyPoolBookkeeping, pool.BookkeepingEnabled(), Bool); err != nil {
		return err
	}
	p.config.OnChange(KeyPoolStatistics, func(v any) {
		enabled := v.(bool)
		pool.SetStatisticsEnabled(enabled)
		p.logger.Info("pool statistics toggled", slog.Bool("enabled", enabled))
	})
	p.config.OnChange(KeyPoolBookkeeping, func(v any) {
		enabled := v.(bool)
		pool.SetBookkeepingEnabled(enabled)
		p.logger.Info("pool bookkeeping toggled", slog.Bool("enabled", enabled))
	})
	p.debug.RegisterProbe("pool", func() any { return pool.Stats() })
	return nil
}

// BindRelay exposes the manual last-N cap as a configuration key; -1 lifts it.
func (p *Plane) BindRelay(relay LastNSetter) error {
	if err := p.config.Declare(KeyRelayLastN, relay.LastNLimit(), IntAtLeast(-1)); err != nil {
		return err
	}
	// The load reducer moves the live cap without going through the store, so
	// only an explicit change of this key may override it.
	p.config.OnChange(KeyRelayLastN, func(v any) {
		n, _ := asInt(v)
		relay.SetLastNLimit(n)
		p.logger.Info("relay last-n set", slog.Int("last_n", n))
	})
	p.debug.RegisterProbe("relay.last_n", func() any { return relay.LastNLimit() })
	return nil
}

func (p *Plane) GetConfig() map[string]any {
	return p.config.GetSnapshot()
}

func (p *Plane) SetConfig(cfg map[string]any) error {
	changed, err := p.config.SetConfig(cfg)
	if err != nil {
		p.metrics.Inc("config.rejected")
		return fmt.Errorf("control: set config: %w", err)
	}
	if changed {
		p.metrics.Inc("config.applied")
	}
	return nil
}

// Stats returns control-plane counters and every debug probe under "debug.".
func (p *Plane) Stats() map[string]any {
	combined := p.metrics.GetSnapshot()
	for k, v := range p.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

func (p *Plane) OnReload(fn func()) {
	p.config.OnReload(fn)
}

func (p *Plane) RegisterDebugProbe(name string, fn func() any) {
	p.debug.RegisterProbe(name, fn)
}

func (p *Plane) DumpState() map[string]any {
	return p.debug.DumpState()
}
