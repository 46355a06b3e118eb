// Package recent keeps a bounded, ordered log of the most recently produced
// markers. The oldest entry is evicted once the log is at capacity.
package recent

import (
	"context"
	"sync"
)

// DefaultCapacity bounds a log created with a non-positive capacity.
const DefaultCapacity = 1000

// Log is an append-only window over the last Capacity entries.
type Log[T any] interface {
	Append(ctx context.Context, v T) error
	// List returns the retained entries, oldest first.
	List(ctx context.Context) ([]T, error)
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Memory is a ring buffer. When full, the oldest entry is overwritten.
type Memory[T any] struct {
	mu       sync.Mutex
	entries  []T
	head     int // next write position
	tail     int // oldest entry
	count    int
	capacity int

	dropped int64
}

func NewMemory[T any](capacity int) *Memory[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory[T]{
		entries:  make([]T, capacity),
		capacity: capacity,
	}
}

func (m *Memory[T]) Append(_ context.Context, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == m.capacity {
		m.tail = (m.tail + 1) % m.capacity
		m.count--
		m.dropped++
	}
	m.entries[m.head] = v
	m.head = (m.head + 1) % m.capacity
	m.count++
	return nil
}

func (m *Memory[T]) List(_ context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]T, m.count)
	for i := 0; i < m.count; i++ {
		out[i] = m.entries[(m.tail+i)%m.capacity]
	}
	return out, nil
}

func (m *Memory[T]) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, nil
}

func (m *Memory[T]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	for i := range m.entries {
		m.entries[i] = zero
	}
	m.head, m.tail, m.count = 0, 0, 0
	return nil
}

// Capacity returns the configured bound.
func (m *Memory[T]) Capacity() int { return m.capacity }

// Dropped returns how many entries have been evicted since creation.
func (m *Memory[T]) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
