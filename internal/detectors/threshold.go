package detectors

import (
	"fmt"
	"time"

	"logsentry/internal/window"
	"logsentry/pkg/models"
)

var thresholdDefaults = windowDefaults{
	category:      "auth",
	groupBy:       "username",
	matchField:    "result",
	matchValue:    "failed",
	threshold:     5,
	windowMinutes: 10,
}

// ThresholdDetector alerts when a group accumulates threshold matching
// events inside the window, then resets the group.
type ThresholdDetector struct{}

// Type implements Detector.
func (d *ThresholdDetector) Type() string { return TypeFailedLoginThreshold }

// Validate implements Detector.
func (d *ThresholdDetector) Validate(rule *models.DetectionRule) error {
	_, err := readWindowSettings(paramsOf(rule), thresholdDefaults)
	return err
}

// Detect implements Detector.
func (d *ThresholdDetector) Detect(win *window.Partition, rule *models.DetectionRule, event *models.Event, now time.Time) ([]*models.Alert, error) {
	cfg, err := readWindowSettings(paramsOf(rule), thresholdDefaults)
	if err != nil {
		return nil, err
	}
	if !cfg.matches(event) {
		return nil, nil
	}

	key := cfg.groupKey(event)
	win.Append(key, *event)
	win.EvictOlderThan(key, event.Timestamp.Add(-cfg.window))

	count := win.Len(key)
	if count < cfg.threshold {
		return nil, nil
	}

	alert := newAlert(rule, key, event, now, win.Snapshot(key))
	alert.Title = fmt.Sprintf("%s for %s", rule.Name, key)
	alert.Description = fmt.Sprintf("Detected %d matching events for %s within %s minutes.", count, key, formatNumber(cfg.windowMinutes))
	win.Clear(key)
	return []*models.Alert{alert}, nil
}
