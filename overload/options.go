// File: overload/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"log/slog"

	"github.com/momentics/hioload-sfu/api"
)

type thresholdPair struct {
	overload api.LoadMeasurement
	recovery api.LoadMeasurement
}

type options struct {
	logger         *slog.Logger
	reducerEnabled bool
	extra          []thresholdPair
}

// Option configures a Controller.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReducerEnabled toggles reducer invocation. A disabled controller still
// tracks stress and logs the actions it would have taken. Enabled by default.
func WithReducerEnabled(enabled bool) Option {
	return func(o *options) { o.reducerEnabled = enabled }
}

// WithSource adds another measurement kind with its own threshold pair.
func WithSource(overload, recovery api.LoadMeasurement) Option {
	return func(o *options) {
		o.extra = append(o.extra, thresholdPair{overload: overload, recovery: recovery})
	}
}
