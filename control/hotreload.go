// control/hotreload.go
// Re-applies external configuration when the process is asked to reload.

package control

import (
	"context"
	"log/slog"
	"os"

	"github.com/momentics/hioload-sfu/api"
)

// LoadFunc produces the runtime keys to apply on reload.
type LoadFunc func() (map[string]any, error)

// WatchReload applies load() to ctrl each time a value arrives on signals,
// until ctx is done or signals is closed. Failures are logged and the previous
// configuration stays in effect.
func WatchReload(ctx context.Context, signals <-chan os.Signal, load LoadFunc, ctrl api.Control, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			logger.Info("reloading configuration", slog.String("signal", sig.String()))
			ReloadOnce(load, ctrl, logger)
		}
	}
}

// ReloadOnce runs a single reload.
func ReloadOnce(load LoadFunc, ctrl api.Control, logger *slog.Logger) {
	cfg, err := load()
	if err != nil {
		logger.Error("configuration reload failed", slog.Any("error", err))
		return
	}
	if err := ctrl.SetConfig(cfg); err != nil {
		logger.Error("configuration rejected", slog.Any("error", err))
	}
}
