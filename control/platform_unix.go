//go:build unix

// control/platform_unix.go
// Author: momentics <momentics@gmail.com>
//
// Unix-specific probes backed by getrusage(2).

package control

import "golang.org/x/sys/unix"

func registerOSProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.max_rss", func() any {
		var ru unix.Rusage
		if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
			return err.Error()
		}
		return ru.Maxrss
	})
}
