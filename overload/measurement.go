// File: overload/measurement.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"fmt"

	"github.com/momentics/hioload-sfu/api"
)

// Measurement kinds.
const (
	KindPacketRate = "packet_rate"
	KindCPU        = "cpu_usage"
)

// PacketRateMeasurement is an aggregate packet rate in packets per second.
type PacketRateMeasurement float64

var _ api.LoadMeasurement = PacketRateMeasurement(0)

func (m PacketRateMeasurement) Kind() string   { return KindPacketRate }
func (m PacketRateMeasurement) Load() float64  { return float64(m) }
func (m PacketRateMeasurement) String() string { return fmt.Sprintf("RTP packet rate (up + down) of %.0f pps", float64(m)) }

// Div returns m / other.
func (m PacketRateMeasurement) Div(other api.LoadMeasurement) (float64, error) {
	return divide(m, other)
}

// CPUMeasurement is process CPU usage as a fraction of one core; a fully
// busy four-core process reports 4.0.
type CPUMeasurement float64

var _ api.LoadMeasurement = CPUMeasurement(0)

func (m CPUMeasurement) Kind() string   { return KindCPU }
func (m CPUMeasurement) Load() float64  { return float64(m) }
func (m CPUMeasurement) String() string { return fmt.Sprintf("CPU usage %.2f%%", float64(m)*100) }

// Div returns m / other.
func (m CPUMeasurement) Div(other api.LoadMeasurement) (float64, error) {
	return divide(m, other)
}

func divide(m, other api.LoadMeasurement) (float64, error) {
	if other == nil || other.Kind() != m.Kind() {
		kind := "<nil>"
		if other != nil {
			kind = other.Kind()
		}
		return 0, fmt.Errorf("overload: cannot divide %s by %s: %w", m.Kind(), kind, api.ErrMeasurementMismatch)
	}
	if other.Load() == 0 {
		return 0, fmt.Errorf("overload: %s divisor is zero: %w", m.Kind(), api.ErrInvalidArgument)
	}
	return m.Load() / other.Load(), nil
}
