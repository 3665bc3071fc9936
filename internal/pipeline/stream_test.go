package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"logsentry/internal/detectors"
	"logsentry/internal/engine"
	"logsentry/pkg/models"
)

type sliceSource struct {
	mu      sync.Mutex
	records [][]byte
	closed  bool
}

func (s *sliceSource) Pop(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if len(s.records) > 0 {
		rec := s.records[0]
		s.records = s.records[1:]
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (s *sliceSource) Name() string { return "test" }

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type chanWriter struct {
	got      chan []*models.Alert
	failures int
	mu       sync.Mutex
	closed   bool
}

func (w *chanWriter) WriteAlerts(alerts []*models.Alert) error {
	w.mu.Lock()
	if w.failures > 0 {
		w.failures--
		w.mu.Unlock()
		return errors.New("sink unavailable")
	}
	w.mu.Unlock()
	cp := append([]*models.Alert(nil), alerts...)
	w.got <- cp
	return nil
}

func (w *chanWriter) Close() error {
	w.closed = true
	return nil
}

type countingStats struct {
	mu          sync.Mutex
	invalid     int
	writeErrors int
	written     int
}

func (c *countingStats) IncrementEventsInvalid() {
	c.mu.Lock()
	c.invalid++
	c.mu.Unlock()
}

func (c *countingStats) IncrementAlertWriteErrors() {
	c.mu.Lock()
	c.writeErrors++
	c.mu.Unlock()
}

func (c *countingStats) AddAlertsWritten(n int) {
	c.mu.Lock()
	c.written += n
	c.mu.Unlock()
}

func bruteForceEngine() *engine.Engine {
	return engine.New([]models.DetectionRule{{
		ID:       "auth-001",
		Name:     "Brute force",
		RuleType: detectors.TypeFailedLoginThreshold,
		Severity: "high",
		Enabled:  true,
		Parameters: models.Params{
			"threshold":      models.IntParam(2),
			"window_minutes": models.IntParam(10),
		},
	}})
}

func TestStreamPipelineDetectsAndWrites(t *testing.T) {
	src := &sliceSource{records: [][]byte{
		[]byte(`{"timestamp":"2026-01-02T03:04:05","category":"auth","username":"alice","result":"failed"}`),
		[]byte(`not json`),
		[]byte(`{"timestamp":"2026-01-02T03:05:05","category":"auth","username":"alice","result":"failed"}`),
	}}
	w := &chanWriter{got: make(chan []*models.Alert, 4), failures: 1}
	stats := &countingStats{}

	p := NewStreamPipeline(src, bruteForceEngine(), w, Options{
		BatchSize:     1,
		FlushInterval: 10 * time.Millisecond,
		RetryDelay:    5 * time.Millisecond,
		Stats:         stats,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case batch := <-w.got:
		if len(batch) != 1 || batch[0].GroupKey != "alice" || len(batch[0].Events) != 2 {
			t.Fatalf("unexpected batch: %+v", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for alert")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("pipeline did not stop")
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()
	if stats.invalid != 1 || stats.writeErrors != 1 || stats.written != 1 {
		t.Fatalf("unexpected stats: invalid=%d writeErrors=%d written=%d", stats.invalid, stats.writeErrors, stats.written)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed || !src.closed {
		t.Fatalf("expected writer and source to be closed")
	}
}
