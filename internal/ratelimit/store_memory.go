package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// InMemoryStore is a single-process sliding window store. Keys idle for a
// full window are swept on a later Allow.
type InMemoryStore struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	clock         func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

type bucket struct {
	stamps []time.Time
	window time.Duration
}

// idle reports whether every request in b fell out of its window.
func (b *bucket) idle(now time.Time) bool {
	return len(b.stamps) == 0 || !b.stamps[len(b.stamps)-1].After(now.Add(-b.window))
}

type MemoryOption func(*InMemoryStore)

func WithClock(clock func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSweepInterval sets how often idle keys are dropped.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		buckets:       make(map[string]*bucket),
		clock:         time.Now,
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records a request for key if fewer than limit fall inside window.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	b.window = window
	b.stamps = prune(b.stamps, now.Add(-window))

	if len(b.stamps) >= limit {
		reset := now.Add(window)
		if len(b.stamps) > 0 {
			reset = b.stamps[0].Add(window)
		}
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    reset,
			RetryAfter: reset.Sub(now),
		}, nil
	}

	b.stamps = append(b.stamps, now)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(b.stamps),
		ResetAt:   b.stamps[0].Add(window),
	}, nil
}

func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Len reports how many keys are tracked.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// sweep drops idle buckets at most once per sweepInterval. Caller holds mu.
func (s *InMemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if b.idle(now) {
			delete(s.buckets, key)
		}
	}
}

// prune drops timestamps at or before cutoff. stamps is oldest first.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
