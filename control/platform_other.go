//go:build !unix

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

func registerOSProbes(*DebugProbes) {}
