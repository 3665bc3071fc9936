package detectors

import (
	"errors"
	"fmt"
	"math"
	"time"

	"logsentry/pkg/models"
)

const fallbackGroupKey = "unknown"

// maxWindowMinutes is the largest window a time.Duration can hold.
var maxWindowMinutes = math.Floor(float64(math.MaxInt64) / float64(time.Minute))

// params reads one rule's parameters and wraps every failure in a ConfigError.
type params struct {
	rule *models.DetectionRule
}

func paramsOf(rule *models.DetectionRule) params {
	return params{rule: rule}
}

func (p params) fail(name string, err error) error {
	return &ConfigError{RuleID: p.rule.ID, RuleType: p.rule.RuleType, Param: name, Err: err}
}

func (p params) str(name, def string) (string, error) {
	v, ok := p.rule.Parameters.Lookup(name)
	if !ok {
		return def, nil
	}
	s, err := v.AsString()
	if err != nil {
		return "", p.fail(name, err)
	}
	return s, nil
}

func (p params) positiveInt(name string, def int64) (int, error) {
	n := def
	if v, ok := p.rule.Parameters.Lookup(name); ok {
		parsed, err := v.AsInt()
		if err != nil {
			return 0, p.fail(name, err)
		}
		n = parsed
	}
	if n < 1 {
		return 0, p.fail(name, errors.New("must be at least 1"))
	}
	return int(n), nil
}

func (p params) float(name string, def float64) (float64, error) {
	v, ok := p.rule.Parameters.Lookup(name)
	if !ok {
		return def, nil
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, p.fail(name, err)
	}
	return f, nil
}

// minutes reads a non-negative duration expressed in minutes.
func (p params) minutes(name string, def float64) (float64, time.Duration, error) {
	m, err := p.float(name, def)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(m) {
		return 0, 0, p.fail(name, errors.New("must be a number"))
	}
	if m < 0 {
		return 0, 0, p.fail(name, errors.New("must not be negative"))
	}
	if m > maxWindowMinutes {
		return 0, 0, p.fail(name, fmt.Errorf("must not exceed %.0f", maxWindowMinutes))
	}
	return m, time.Duration(m * float64(time.Minute)), nil
}

// windowSettings are shared by the windowed detectors.
type windowSettings struct {
	category      string
	groupBy       string
	matchField    string
	matchValue    string
	threshold     int
	windowMinutes float64
	window        time.Duration
}

func (w windowSettings) matches(ev *models.Event) bool {
	if ev.Category != w.category {
		return false
	}
	if w.matchField == "" {
		return true
	}
	v, ok := ev.Field(w.matchField)
	return ok && v == w.matchValue
}

func (w windowSettings) groupKey(ev *models.Event) string {
	return ev.FieldOr(w.groupBy, fallbackGroupKey)
}

type windowDefaults struct {
	category      string
	groupBy       string
	matchField    string
	matchValue    string
	threshold     int64
	windowMinutes float64
}

func readWindowSettings(p params, def windowDefaults) (windowSettings, error) {
	var (
		s   windowSettings
		err error
	)
	if s.category, err = p.str("event_category", def.category); err != nil {
		return s, err
	}
	if s.groupBy, err = p.str("group_by", def.groupBy); err != nil {
		return s, err
	}
	if s.matchField, err = p.str("match_field", def.matchField); err != nil {
		return s, err
	}
	if s.matchValue, err = p.str("match_value", def.matchValue); err != nil {
		return s, err
	}
	if s.threshold, err = p.positiveInt("threshold", def.threshold); err != nil {
		return s, err
	}
	if s.windowMinutes, s.window, err = p.minutes("window_minutes", def.windowMinutes); err != nil {
		return s, err
	}
	return s, nil
}
