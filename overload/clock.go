// File: overload/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"time"

	"github.com/momentics/hioload-sfu/api"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

var _ api.Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now() }
