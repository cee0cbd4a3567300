// File: api/load.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Load measurement and mitigation contracts consumed by the overload controller.

package api

import "time"

// LoadMeasurement is an opaque load sample of a particular kind.
type LoadMeasurement interface {
	// Kind names the measurement family, e.g. "packet_rate" or "cpu".
	Kind() string
	// Load returns the raw numeric value.
	Load() float64
	// Div returns the ratio of this measurement to other, which must be of the same kind.
	Div(other LoadMeasurement) (float64, error)
	String() string
}

// LoadReducer is the mitigation capability driven by the overload controller.
type LoadReducer interface {
	// ReduceLoad applies one step of load reduction.
	ReduceLoad() error
	// Recover undoes one step of load reduction.
	Recover() error
	// ImpactTime is how long a ReduceLoad or Recover takes to show in measurements.
	// It is queried on every check.
	ImpactTime() time.Duration
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
