// Package pool
// Author: momentics <momentics@gmail.com>
//
// Resource recycling for the packet-forwarding path.
//
// ByteBufferPool serves buffers from three size bands (220, 775 and 1500 bytes
// by default). Each band keeps its free buffers in a set of lock-free
// partitions; a miss allocates a buffer of the full band size so that it can be
// reused by any later request of the same band. Requests above the largest band
// are served with a one-off allocation and are never pooled.
//
// Two process-wide switches trade overhead for visibility: statistics (request,
// return and allocation counters) and bookkeeping (a per-buffer audit trail that
// reports double returns, returns of foreign buffers and oversized returns).
// Both are off by default. Neither ever fails or blocks the caller.
package pool
