// File: cmd/hioload-sfu/app.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/config"
	"github.com/momentics/hioload-sfu/control"
	"github.com/momentics/hioload-sfu/management"
	"github.com/momentics/hioload-sfu/metrics"
	"github.com/momentics/hioload-sfu/overload"
	"github.com/momentics/hioload-sfu/pool"
	"github.com/momentics/hioload-sfu/relay"
)

// shutdownTimeout bounds the management server drain.
const shutdownTimeout = 5 * time.Second

// app owns every long-lived component; it is the only place they are built.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	conn    net.PacketConn
	pool    *pool.ByteBufferPool
	relay   *relay.Relay
	ctrl    *overload.Controller
	sampler *overload.Sampler
	plane   *control.Plane
	mgmt    *management.Server
	reg     *prometheus.Registry
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newApp(cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.pool, err = pool.New(
		pool.WithThresholds(cfg.Pool.Thresholds...),
		pool.WithPartitions(cfg.Pool.Partitions),
		pool.WithPartitionCapacity(cfg.Pool.PartitionCapacity),
		pool.WithHistoryLimit(cfg.Pool.HistoryLimit),
		pool.WithStatistics(cfg.Pool.Statistics),
		pool.WithBookkeeping(cfg.Pool.Bookkeeping),
		pool.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a.conn, err = net.ListenPacket("udp", cfg.Relay.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Relay.ListenAddress, err)
	}
	a.relay, err = relay.New(a.conn, a.pool,
		relay.WithLogger(logger),
		relay.WithWorkers(cfg.Relay.Workers, cfg.Relay.QueueSize),
		relay.WithMaxPacketSize(cfg.Relay.MaxPacketSize),
	)
	if err != nil {
		return nil, err
	}

	if err := a.buildLoadShedding(); err != nil {
		return nil, err
	}

	a.plane = control.NewPlane(logger)
	if err := a.plane.BindPool(a.pool); err != nil {
		return nil, err
	}
	if err := a.plane.BindRelay(a.relay); err != nil {
		return nil, err
	}
	a.plane.RegisterDebugProbe("load.stress", func() any { return a.ctrl.CurrentStressLevel() })
	a.plane.RegisterDebugProbe("load.state", func() any { return a.ctrl.State().String() })

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(a.reg, metrics.Sources{Pool: a.pool, Load: a.ctrl, Relay: a.relay})

	if cfg.Management.Enabled {
		a.mgmt = management.NewServer(management.Deps{
			Pool:     a.pool,
			Control:  a.plane,
			Load:     a.ctrl,
			Relay:    a.relay,
			Gatherer: a.reg,
			Logger:   logger,
		})
	}
	return a, nil
}

func (a *app) buildLoadShedding() error {
	lc := a.cfg.Load
	clock := overload.SystemClock{}

	reducer, err := overload.NewLastNReducer(a.relay, overload.LastNConfig{
		ReductionScale: lc.ReductionScale,
		RecoverScale:   lc.RecoverScale,
		MinLastN:       lc.MinLastN,
		ImpactTime:     lc.ImpactTime,
	}, a.logger)
	if err != nil {
		return err
	}

	opts := []overload.Option{
		overload.WithLogger(a.logger),
		overload.WithReducerEnabled(lc.ReducerEnabled),
	}
	packets, err := overload.NewPacketRateProbe(func() uint64 {
		return a.relay.PacketsReceived() + a.relay.PacketsForwarded()
	}, clock)
	if err != nil {
		return err
	}
	probes := []overload.Probe{packets}

	if lc.CPUEnabled() {
		cpu, err := overload.NewCPUProbe(clock)
		switch {
		case errors.Is(err, api.ErrNotSupported):
			a.logger.Warn("cpu load source not supported on this platform, ignoring it")
		case err != nil:
			return err
		default:
			opts = append(opts, overload.WithSource(overload.CPUMeasurement(lc.CPUOverload), overload.CPUMeasurement(lc.CPURecovery)))
			probes = append(probes, cpu)
		}
	}

	a.ctrl, err = overload.New(
		overload.PacketRateMeasurement(lc.PacketRateOverload),
		overload.PacketRateMeasurement(lc.PacketRateRecovery),
		reducer, clock, opts...)
	if err != nil {
		return err
	}
	a.sampler, err = overload.NewSampler(a.ctrl, lc.SampleInterval, a.logger, probes...)
	return err
}

// run blocks until ctx is done or a component fails.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	start := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	start("relay", func() error { return a.relay.Run(ctx) })
	start("sampler", func() error { return a.sampler.Run(ctx) })
	if a.mgmt != nil {
		start("management", func() error { return a.mgmt.Listen(a.cfg.Management.Address) })
		go func() {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			if err := a.mgmt.Shutdown(sctx); err != nil {
				a.logger.Warn("management shutdown", slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	a.close()

	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) close() {
	if a.relay != nil {
		a.relay.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
}
