// Package metrics exports allocator, load and relay state to Prometheus.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package metrics

// Namespace prefixes every exported metric.
const Namespace = "hioload_sfu"
