//go:build !unix

// File: overload/cpu_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"time"

	"github.com/momentics/hioload-sfu/api"
)

func processCPUTime() (time.Duration, error) {
	return 0, api.ErrNotSupported
}
