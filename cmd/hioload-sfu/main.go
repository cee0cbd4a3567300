// File: cmd/hioload-sfu/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-sfu forwards UDP media between conference endpoints and sheds load
// by lowering last-N when the packet rate or CPU usage gets too high.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/momentics/hioload-sfu/config"
	"github.com/momentics/hioload-sfu/control"
)

const serviceName = "hioload-sfu"

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (defaults apply when empty)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	logger.Info("service starting",
		slog.String("service", serviceName),
		slog.String("config_path", *configPath),
		slog.String("relay_address", cfg.Relay.ListenAddress),
		slog.Bool("reducer_enabled", cfg.Load.ReducerEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go control.WatchReload(ctx, hup, func() (map[string]any, error) {
		if *configPath == "" {
			return nil, fmt.Errorf("no configuration file to reload")
		}
		next, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		return next.RuntimeKeys(), nil
	}, a.plane, logger)

	if err := a.run(ctx); err != nil {
		logger.Error("service failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
