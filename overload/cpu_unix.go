//go:build unix

// File: overload/cpu_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package overload

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// processCPUTime returns user plus system time consumed by this process.
func processCPUTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("overload: getrusage: %w", err)
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
