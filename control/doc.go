// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control plane of the relay: typed dynamic configuration with reload
// listeners, control-plane counters and debug probe registration.
//
// Plane binds the allocator's instrumentation flags and the relay's last-N cap
// to configuration keys, so the management API, SIGHUP reloads and startup
// configuration all go through one validated path.
package control
