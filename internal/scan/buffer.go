// Package scan holds the buffer that hands sensor samples from the reader
// goroutine to a polling consumer.
package scan

import (
	"fmt"
	"sync"
)

// Policy selects how a Buffer bounds its size and what Snapshot does.
type Policy int

const (
	// PolicyRing keeps the most recent Capacity items; Snapshot copies.
	PolicyRing Policy = iota
	// PolicyDrain empties the buffer on every Snapshot. If the consumer falls
	// behind and the buffer reaches Capacity, the oldest TrimCount items are
	// dropped to make room.
	PolicyDrain
)

func (p Policy) String() string {
	switch p {
	case PolicyRing:
		return "ring"
	case PolicyDrain:
		return "drain"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Config fixes a Buffer's behaviour at construction.
type Config struct {
	Policy   Policy
	Capacity int
	// TrimCount is how many items PolicyDrain drops at once when full.
	// Values below 1 mean 1. Ignored by PolicyRing.
	TrimCount int
}

// Stats are cumulative buffer counters.
type Stats struct {
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
	Appended uint64 `json:"appended"`
	Evicted  uint64 `json:"evicted"`
	Drained  uint64 `json:"drained"`
}

// Buffer is a fixed-capacity FIFO guarded by one mutex. Items come out in
// insertion order. The size never exceeds Capacity.
type Buffer[T any] struct {
	mu     sync.Mutex
	policy Policy
	trim   int

	items []T
	head  int
	n     int

	appended uint64
	evicted  uint64
	drained  uint64
}

// New returns an empty buffer.
func New[T any](cfg Config) (*Buffer[T], error) {
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("scan: capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.Policy != PolicyRing && cfg.Policy != PolicyDrain {
		return nil, fmt.Errorf("scan: unknown policy %v", cfg.Policy)
	}
	trim := 1
	if cfg.Policy == PolicyDrain && cfg.TrimCount > 1 {
		trim = min(cfg.TrimCount, cfg.Capacity)
	}
	return &Buffer[T]{
		policy: cfg.Policy,
		trim:   trim,
		items:  make([]T, cfg.Capacity),
	}, nil
}

// AppendBatch adds batch in order under a single lock, evicting the oldest
// items as the policy requires.
func (b *Buffer[T]) AppendBatch(batch []T) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := len(b.items)
	for _, v := range batch {
		if b.n == c {
			b.dropOldest(b.trim)
		}
		b.items[(b.head+b.n)%c] = v
		b.n++
	}
	b.appended += uint64(len(batch))
}

func (b *Buffer[T]) dropOldest(k int) {
	var zero T
	for i := 0; i < k && b.n > 0; i++ {
		b.items[b.head] = zero
		b.head = (b.head + 1) % len(b.items)
		b.n--
		b.evicted++
	}
}

// Snapshot returns a copy of the contents, oldest first. A PolicyDrain buffer
// is emptied in the same critical section. Never blocks beyond the lock.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.n)
	c := len(b.items)
	first := min(b.n, c-b.head)
	copy(out, b.items[b.head:b.head+first])
	copy(out[first:], b.items[:b.n-first])

	if b.policy == PolicyDrain {
		clear(b.items)
		b.drained += uint64(b.n)
		b.head, b.n = 0, 0
	}
	return out
}

// Len returns the current number of items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Policy returns the policy fixed at construction.
func (b *Buffer[T]) Policy() Policy { return b.policy }

// Stats returns the current counters.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Len:      b.n,
		Capacity: len(b.items),
		Appended: b.appended,
		Evicted:  b.evicted,
		Drained:  b.drained,
	}
}
