// Package window keeps per-rule, per-group time-bounded event buffers.
//
// Buckets are addressed by (rule id, group key) and are independent of each
// other. Eviction is anchored to event timestamps, not wall-clock time, so
// correct windowing assumes events are appended in non-decreasing timestamp
// order. Out-of-order appends are still evicted correctly, only more slowly.
package window

import (
	"sync"
	"time"

	"logsentry/pkg/models"
)

// Key addresses one bucket.
type Key struct {
	RuleID string
	Group  string
}

const minCompactCap = 64

type bucket struct {
	events []models.Event
	// ordered is false once an event older than the tail has been appended.
	ordered bool
}

// Option configures a Store.
type Option func(*Store)

// WithCreateHook is called whenever a bucket is created.
func WithCreateHook(fn func(Key)) Option {
	return func(s *Store) {
		s.onCreate = fn
	}
}

// Store holds every bucket owned by one engine.
type Store struct {
	mu       sync.Mutex
	buckets  map[Key]*bucket
	onCreate func(Key)
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{buckets: make(map[Key]*bucket)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds an event to the bucket, creating the bucket if needed.
// It reports whether the bucket was created by this call.
func (s *Store) Append(key Key, ev models.Event) bool {
	s.mu.Lock()
	b, exists := s.buckets[key]
	if !exists {
		b = &bucket{ordered: true}
		s.buckets[key] = b
	}
	if n := len(b.events); n > 0 && ev.Timestamp.Before(b.events[n-1].Timestamp) {
		b.ordered = false
	}
	b.events = append(b.events, ev)
	hook := s.onCreate
	s.mu.Unlock()

	if !exists && hook != nil {
		hook(key)
	}
	return !exists
}

// EvictOlderThan drops every event with a timestamp before cutoff and
// returns how many were removed.
func (s *Store) EvictOlderThan(key Key, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buckets[key]
	if b == nil || len(b.events) == 0 {
		return 0
	}

	idx := 0
	for idx < len(b.events) && b.events[idx].Timestamp.Before(cutoff) {
		idx++
	}
	removed := idx
	if idx > 0 {
		clear(b.events[:idx])
		b.events = b.events[idx:]
		b.compact()
	}
	if b.ordered {
		return removed
	}

	kept := b.events[:0]
	for _, ev := range b.events {
		if ev.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	clear(b.events[len(kept):])
	b.events = kept
	b.ordered = isOrdered(kept)
	return removed
}

// compact copies the live events into a fresh array once the bucket has
// shrunk well below its capacity.
func (b *bucket) compact() {
	if cap(b.events) < minCompactCap || len(b.events) > cap(b.events)/4 {
		return
	}
	b.events = append(make([]models.Event, 0, 2*len(b.events)), b.events...)
}

// Clear empties the bucket. The bucket itself is kept.
func (s *Store) Clear(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b := s.buckets[key]; b != nil {
		b.events = nil
		b.ordered = true
	}
}

// Snapshot returns a copy of the bucket's events.
func (s *Store) Snapshot(key Key) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buckets[key]
	if b == nil || len(b.events) == 0 {
		return nil
	}
	out := make([]models.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of events in the bucket.
func (s *Store) Len(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b := s.buckets[key]; b != nil {
		return len(b.events)
	}
	return 0
}

// Exists reports whether the bucket has been created.
func (s *Store) Exists(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.buckets[key]
	return ok
}

// Buckets returns the number of buckets created so far.
func (s *Store) Buckets() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.buckets)
}

// Partition returns the rule-scoped view of the store.
func (s *Store) Partition(ruleID string) *Partition {
	return &Partition{store: s, ruleID: ruleID}
}

func isOrdered(events []models.Event) bool {
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			return false
		}
	}
	return true
}
