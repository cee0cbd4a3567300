// Package management serves the HTTP control surface of the relay: allocator
// statistics and instrumentation toggles, load state, conference membership
// and Prometheus metrics.
package management
