// Package output combines alert sinks.
package output

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"logsentry/pkg/models"
)

// Writer is an alert sink.
type Writer interface {
	WriteAlerts(alerts []*models.Alert) error
	Close() error
}

type named struct {
	name string
	w    Writer
}

// Multi writes every batch to all of its sinks.
type Multi struct {
	sinks []named
}

// NewMulti creates an empty fan-out writer.
func NewMulti() *Multi {
	return &Multi{}
}

// Add appends a named sink. Sinks are written in the order they were added.
func (m *Multi) Add(name string, w Writer) {
	m.sinks = append(m.sinks, named{name: name, w: w})
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// WriteAlerts writes to every sink even if earlier ones fail.
func (m *Multi) WriteAlerts(alerts []*models.Alert) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.w.WriteAlerts(alerts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Dedupe drops alerts whose id was already delivered. Ids are remembered in a
// bounded LRU, so a very old id may be delivered again.
type Dedupe struct {
	next Writer
	mu   sync.Mutex
	seen *lru.Cache[string, struct{}]
}

// NewDedupe wraps next, remembering up to size ids.
func NewDedupe(next Writer, size int) (*Dedupe, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Dedupe{next: next, seen: cache}, nil
}

// WriteAlerts forwards the unseen alerts. Ids are only remembered after a
// successful write so a failed batch can be retried.
func (d *Dedupe) WriteAlerts(alerts []*models.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fresh := make([]*models.Alert, 0, len(alerts))
	batch := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		if d.seen.Contains(a.ID) {
			continue
		}
		if _, dup := batch[a.ID]; dup {
			continue
		}
		batch[a.ID] = struct{}{}
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := d.next.WriteAlerts(fresh); err != nil {
		return err
	}
	for _, a := range fresh {
		d.seen.Add(a.ID, struct{}{})
	}
	return nil
}

// Close closes the wrapped writer.
func (d *Dedupe) Close() error {
	return d.next.Close()
}
