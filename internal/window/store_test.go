package window

import (
	"testing"
	"time"

	"logsentry/pkg/models"
)

func eventAt(ts time.Time, id string) models.Event {
	return models.Event{Timestamp: ts, Category: "auth", Details: map[string]string{"id": id}}
}

func TestAppendReportsBucketCreation(t *testing.T) {
	var created []Key
	s := NewStore(WithCreateHook(func(k Key) { created = append(created, k) }))
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "alice"}

	if s.Exists(key) {
		t.Fatalf("expected bucket to be absent before first append")
	}
	if !s.Append(key, eventAt(base, "1")) {
		t.Fatalf("expected first append to create the bucket")
	}
	if s.Append(key, eventAt(base, "2")) {
		t.Fatalf("expected second append to reuse the bucket")
	}
	if len(created) != 1 || created[0] != key {
		t.Fatalf("expected one create hook call for %v, got %v", key, created)
	}
	if s.Len(key) != 2 {
		t.Fatalf("expected 2 events, got %d", s.Len(key))
	}
}

func TestEvictOlderThanKeepsEventsInsideWindow(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "alice"}

	for i, m := range []int{0, 2, 5, 11} {
		s.Append(key, eventAt(base.Add(time.Duration(m)*time.Minute), string(rune('a'+i))))
	}
	latest := base.Add(11 * time.Minute)
	removed := s.EvictOlderThan(key, latest.Add(-10*time.Minute))
	if removed != 1 {
		t.Fatalf("expected 1 evicted event, got %d", removed)
	}

	for _, ev := range s.Snapshot(key) {
		if ev.Timestamp.Before(latest.Add(-10 * time.Minute)) {
			t.Fatalf("event %v outside window survived eviction", ev.Timestamp)
		}
	}
}

func TestEvictOlderThanKeepsCutoffBoundary(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "alice"}
	s.Append(key, eventAt(base, "edge"))

	if removed := s.EvictOlderThan(key, base); removed != 0 {
		t.Fatalf("expected event at cutoff to stay, removed %d", removed)
	}
}

func TestEvictOlderThanHandlesOutOfOrderBuckets(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "bob"}

	s.Append(key, eventAt(base.Add(8*time.Minute), "late"))
	s.Append(key, eventAt(base.Add(1*time.Minute), "backdated"))
	s.Append(key, eventAt(base.Add(9*time.Minute), "newest"))

	removed := s.EvictOlderThan(key, base.Add(5*time.Minute))
	if removed != 1 {
		t.Fatalf("expected backdated event to be evicted, removed %d", removed)
	}
	got := s.Snapshot(key)
	if len(got) != 2 || got[0].Details["id"] != "late" || got[1].Details["id"] != "newest" {
		t.Fatalf("unexpected bucket contents: %+v", got)
	}
}

func TestClearAndSnapshotIsolation(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "alice"}
	other := Key{RuleID: "r2", Group: "alice"}

	s.Append(key, eventAt(base, "1"))
	s.Append(other, eventAt(base, "2"))

	snap := s.Snapshot(key)
	snap[0].Source = "mutated"
	if s.Snapshot(key)[0].Source == "mutated" {
		t.Fatalf("expected snapshot to be a copy")
	}

	s.Clear(key)
	if s.Len(key) != 0 {
		t.Fatalf("expected cleared bucket to be empty")
	}
	if !s.Exists(key) {
		t.Fatalf("expected cleared bucket to still exist")
	}
	if s.Len(other) != 1 {
		t.Fatalf("expected other rule's bucket to be untouched, got %d", s.Len(other))
	}
	if s.Buckets() != 2 {
		t.Fatalf("expected 2 buckets, got %d", s.Buckets())
	}
}

func TestPartitionScopesByRule(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	p1 := s.Partition("r1")
	p2 := s.Partition("r2")
	p1.Append("alice", eventAt(base, "1"))
	p1.Append("alice", eventAt(base, "2"))
	p2.Append("alice", eventAt(base, "3"))

	if p1.Len("alice") != 2 || p2.Len("alice") != 1 {
		t.Fatalf("expected partitions to be independent, got %d and %d", p1.Len("alice"), p2.Len("alice"))
	}
	if !s.Exists(Key{RuleID: "r1", Group: "alice"}) {
		t.Fatalf("expected partition append to create store bucket")
	}
}

func TestSlidingEvictionDoesNotCopyBucket(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "alice"}
	ev := eventAt(base, "x")

	const size = 10000
	for i := 0; i < size; i++ {
		ev.Timestamp = base.Add(time.Duration(i) * time.Second)
		s.Append(key, ev)
	}

	step := 0
	allocs := testing.AllocsPerRun(1000, func() {
		ev.Timestamp = base.Add(time.Duration(size+step) * time.Second)
		s.Append(key, ev)
		step++
		if n := s.EvictOlderThan(key, base.Add(time.Duration(step)*time.Second)); n != 1 {
			t.Fatalf("expected one eviction per step, got %d", n)
		}
	})
	if allocs >= 1 {
		t.Fatalf("expected amortized allocation-free eviction, got %.2f allocs per step", allocs)
	}
	if s.Len(key) != size {
		t.Fatalf("expected bucket to stay at %d events, got %d", size, s.Len(key))
	}
	if first := s.Snapshot(key)[0].Timestamp; !first.Equal(base.Add(time.Duration(step) * time.Second)) {
		t.Fatalf("expected oldest event at step %d, got %v", step, first)
	}
}

func TestEvictionCompactsShrunkBucket(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	key := Key{RuleID: "r1", Group: "alice"}

	for i := 0; i < 1024; i++ {
		s.Append(key, eventAt(base.Add(time.Duration(i)*time.Second), "x"))
	}
	s.EvictOlderThan(key, base.Add(1000*time.Second))

	b := s.buckets[key]
	if len(b.events) != 24 {
		t.Fatalf("expected 24 events left, got %d", len(b.events))
	}
	if cap(b.events) > 4*len(b.events) {
		t.Fatalf("expected compacted backing array, got cap %d for %d events", cap(b.events), len(b.events))
	}
	if !b.events[0].Timestamp.Equal(base.Add(1000 * time.Second)) {
		t.Fatalf("unexpected oldest event %v", b.events[0].Timestamp)
	}
}
