package probe

import "sync"

// IdentifierAllocator hands out ICMP identifiers for probes that do not set
// one explicitly.
type IdentifierAllocator interface {
	Allocate() uint16
}

// Counter is a wrapping 16-bit identifier sequence. Each call to Allocate
// returns the current value and advances it by one.
//
// A Counter is not safe for concurrent use; give each goroutine its own
// Prober (and with it its own Counter).
type Counter struct {
	next uint16
}

// NewCounter returns a Counter whose first identifier is seed.
func NewCounter(seed uint16) *Counter {
	return &Counter{next: seed}
}

// Allocate returns the next identifier.
func (c *Counter) Allocate() uint16 {
	id := c.next
	c.next++
	return id
}

// lockedAllocator serialises access to an allocator shared by the
// package-level Ping.
type lockedAllocator struct {
	mu    sync.Mutex
	alloc IdentifierAllocator
}

func (l *lockedAllocator) Allocate() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alloc.Allocate()
}
