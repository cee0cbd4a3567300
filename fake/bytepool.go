// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake byte pool recording every acquire and release by buffer identity.

package fake

import (
	"sync"
	"unsafe"

	"github.com/momentics/hioload-sfu/api"
)

// BytePool allocates fresh buffers and remembers which are still held.
type BytePool struct {
	mu          sync.Mutex
	outstanding map[*byte]int
	acquired    int
	released    int
	misuse      int
}

var _ api.BytePool = (*BytePool)(nil)

// NewBytePool creates an empty recording pool.
func NewBytePool() *BytePool {
	return &BytePool{outstanding: make(map[*byte]int)}
}

// Acquire returns a new zeroed buffer of exactly n bytes (at least one).
func (p *BytePool) Acquire(n int) []byte {
	if n < 1 {
		n = 1
	}
	buf := make([]byte, n)
	p.mu.Lock()
	p.outstanding[unsafe.SliceData(buf)] = n
	p.acquired++
	p.mu.Unlock()
	return buf
}

// Release records buf as returned. Unknown or repeated returns count as misuse.
func (p *BytePool) Release(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	key := unsafe.SliceData(buf)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.outstanding[key]; !ok {
		p.misuse++
		return
	}
	delete(p.outstanding, key)
	p.released++
}

// Outstanding returns the number of buffers acquired and not yet released.
func (p *BytePool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// Counts returns acquired, released and misuse totals.
func (p *BytePool) Counts() (acquired, released, misuse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired, p.released, p.misuse
}
