// Package engine drives detection rules over a time-ordered event stream.
//
// The engine is single-threaded and pull-based: each event is fanned out to
// every enabled rule in configuration order and the resulting alerts are
// yielded before the next rule runs. The only state is the window store,
// which the engine owns and never exposes.
//
// A rule whose parameters cannot be coerced is reported once, through the
// error half of Process or the error of ProcessEvent, and is then skipped for
// the rest of the engine's lifetime. Other rules keep running.
package engine

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"logsentry/internal/detectors"
	"logsentry/internal/logger"
	"logsentry/internal/window"
	"logsentry/pkg/models"
)

// Observer receives engine activity, typically for metrics.
type Observer interface {
	EventProcessed()
	AlertEmitted(rule *models.DetectionRule)
	RuleFaulted(rule *models.DetectionRule)
	BucketCreated(ruleID string)
}

type noopObserver struct{}

func (noopObserver) EventProcessed()                    {}
func (noopObserver) AlertEmitted(*models.DetectionRule) {}
func (noopObserver) RuleFaulted(*models.DetectionRule)  {}
func (noopObserver) BucketCreated(string)               {}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the built-in detector registry.
func WithRegistry(r *detectors.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithClock sets the wall clock used for alert creation times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithObserver attaches an activity observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

type activeRule struct {
	rule     models.DetectionRule
	detector detectors.Detector
	win      *window.Partition
}

// Engine evaluates events against enabled rules.
type Engine struct {
	rules    []*activeRule
	store    *window.Store
	registry *detectors.Registry
	observer Observer
	now      func() time.Time
	faults   map[string]error
}

// New keeps the enabled rules, in input order, and resolves their detectors.
// Rules whose type has no detector stay inert.
func New(rules []models.DetectionRule, opts ...Option) *Engine {
	e := &Engine{
		registry: detectors.Builtin(nil),
		observer: noopObserver{},
		now:      time.Now,
		faults:   make(map[string]error),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = window.NewStore(window.WithCreateHook(func(k window.Key) {
		e.observer.BucketCreated(k.RuleID)
	}))

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		ar := &activeRule{rule: rule, win: e.store.Partition(rule.ID)}
		if d, ok := e.registry.Lookup(rule.RuleType); ok {
			ar.detector = d
		} else {
			logger.Debugf("Rule %s has unrecognized type %q; it will not produce alerts", rule.ID, rule.RuleType)
		}
		e.rules = append(e.rules, ar)
	}
	return e
}

// Rules returns the enabled rules in evaluation order.
func (e *Engine) Rules() []models.DetectionRule {
	out := make([]models.DetectionRule, 0, len(e.rules))
	for _, ar := range e.rules {
		out = append(out, ar.rule)
	}
	return out
}

// Faults returns the rules disabled by configuration errors.
func (e *Engine) Faults() map[string]error {
	out := make(map[string]error, len(e.faults))
	for id, err := range e.faults {
		out[id] = err
	}
	return out
}

// Process lazily evaluates events and yields alerts in emission order.
// A non-nil error is yielded once for each rule that faults; the alert is
// nil in that case. The caller may stop ranging at any point.
func (e *Engine) Process(events iter.Seq[models.Event]) iter.Seq2[*models.Alert, error] {
	return func(yield func(*models.Alert, error) bool) {
		for event := range events {
			if !e.step(event, yield) {
				return
			}
		}
	}
}

// ProcessEvent evaluates a single event and returns its alerts. Fault errors
// of individual rules are joined; alerts from healthy rules are still returned.
func (e *Engine) ProcessEvent(event models.Event) ([]*models.Alert, error) {
	var (
		alerts []*models.Alert
		errs   []error
	)
	e.step(event, func(a *models.Alert, err error) bool {
		if err != nil {
			errs = append(errs, err)
		} else {
			alerts = append(alerts, a)
		}
		return true
	})
	return alerts, errors.Join(errs...)
}

func (e *Engine) step(event models.Event, yield func(*models.Alert, error) bool) bool {
	e.observer.EventProcessed()
	for _, ar := range e.rules {
		if ar.detector == nil {
			continue
		}
		if _, faulted := e.faults[ar.rule.ID]; faulted {
			continue
		}

		ev := event
		alerts, err := ar.detector.Detect(ar.win, &ar.rule, &ev, e.now())
		if err != nil {
			err = fmt.Errorf("detect: %w", err)
			e.faults[ar.rule.ID] = err
			e.observer.RuleFaulted(&ar.rule)
			logger.Errorf("Rule %s disabled: %v", ar.rule.ID, err)
			if !yield(nil, err) {
				return false
			}
			continue
		}
		for _, alert := range alerts {
			e.observer.AlertEmitted(&ar.rule)
			if !yield(alert, nil) {
				return false
			}
		}
	}
	return true
}
