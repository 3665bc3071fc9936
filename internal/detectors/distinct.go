package detectors

import (
	"fmt"
	"time"

	"logsentry/internal/window"
	"logsentry/pkg/models"
)

var distinctDefaults = windowDefaults{
	category:      "network",
	groupBy:       "src_ip",
	threshold:     15,
	windowMinutes: 5,
}

// DistinctDetector alerts when a group's window holds threshold distinct
// values of distinct_field, then resets the group.
type DistinctDetector struct{}

type distinctSettings struct {
	windowSettings
	distinctField string
}

func readDistinctSettings(rule *models.DetectionRule) (distinctSettings, error) {
	p := paramsOf(rule)
	ws, err := readWindowSettings(p, distinctDefaults)
	if err != nil {
		return distinctSettings{}, err
	}
	field, err := p.str("distinct_field", "dest_port")
	if err != nil {
		return distinctSettings{}, err
	}
	return distinctSettings{windowSettings: ws, distinctField: field}, nil
}

// Type implements Detector.
func (d *DistinctDetector) Type() string { return TypePortScan }

// Validate implements Detector.
func (d *DistinctDetector) Validate(rule *models.DetectionRule) error {
	_, err := readDistinctSettings(rule)
	return err
}

// Detect implements Detector.
func (d *DistinctDetector) Detect(win *window.Partition, rule *models.DetectionRule, event *models.Event, now time.Time) ([]*models.Alert, error) {
	cfg, err := readDistinctSettings(rule)
	if err != nil {
		return nil, err
	}
	if !cfg.matches(event) {
		return nil, nil
	}
	if _, ok := event.Field(cfg.distinctField); !ok {
		return nil, nil
	}

	key := cfg.groupKey(event)
	win.Append(key, *event)
	win.EvictOlderThan(key, event.Timestamp.Add(-cfg.window))

	events := win.Snapshot(key)
	distinct := countDistinct(events, cfg.distinctField)
	if distinct < cfg.threshold {
		return nil, nil
	}

	alert := newAlert(rule, key, event, now, events)
	alert.Title = fmt.Sprintf("%s from %s", rule.Name, key)
	alert.Description = fmt.Sprintf("Observed %d unique %s values from %s within %s minutes.", distinct, cfg.distinctField, key, formatNumber(cfg.windowMinutes))
	win.Clear(key)
	return []*models.Alert{alert}, nil
}

func countDistinct(events []models.Event, field string) int {
	seen := make(map[string]struct{}, len(events))
	for i := range events {
		if v, ok := events[i].Field(field); ok {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
