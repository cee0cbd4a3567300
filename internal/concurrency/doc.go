// Package concurrency holds the lock-free primitives shared by the allocator and
// the relay: a bounded MPMC queue and a small fan-out executor.
package concurrency
