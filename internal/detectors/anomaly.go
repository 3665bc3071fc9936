package detectors

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"logsentry/internal/window"
	"logsentry/pkg/models"
)

// AnomalyDetector scores a single field of each event. It keeps no state.
type AnomalyDetector struct{}

type anomalySettings struct {
	category         string
	targetField      string
	lengthThreshold  float64
	entropyThreshold float64
}

func readAnomalySettings(rule *models.DetectionRule) (anomalySettings, error) {
	p := paramsOf(rule)
	var (
		s   anomalySettings
		err error
	)
	if s.category, err = p.str("event_category", "dns"); err != nil {
		return s, err
	}
	if s.targetField, err = p.str("target_field", "query"); err != nil {
		return s, err
	}
	if s.lengthThreshold, err = p.float("length_threshold", 45); err != nil {
		return s, err
	}
	if s.entropyThreshold, err = p.float("entropy_threshold", 3.5); err != nil {
		return s, err
	}
	return s, nil
}

// Type implements Detector.
func (d *AnomalyDetector) Type() string { return TypeDNSAnomaly }

// Validate implements Detector.
func (d *AnomalyDetector) Validate(rule *models.DetectionRule) error {
	_, err := readAnomalySettings(rule)
	return err
}

// Detect implements Detector. The window partition is not used.
func (d *AnomalyDetector) Detect(_ *window.Partition, rule *models.DetectionRule, event *models.Event, now time.Time) ([]*models.Alert, error) {
	cfg, err := readAnomalySettings(rule)
	if err != nil {
		return nil, err
	}
	if event.Category != cfg.category {
		return nil, nil
	}
	value, ok := event.Field(cfg.targetField)
	if !ok || value == "" {
		return nil, nil
	}

	length := float64(utf8.RuneCountInString(value))
	entropy := ShannonEntropy(value)
	if length <= cfg.lengthThreshold && entropy <= cfg.entropyThreshold {
		return nil, nil
	}

	alert := newAlert(rule, value, event, now, []models.Event{*event})
	alert.Title = fmt.Sprintf("%s - suspicious %s %s", rule.Name, cfg.targetField, value)
	alert.Description = fmt.Sprintf(
		"Value of %s may indicate tunneling activity: length %d (threshold %s), entropy %.2f bits (threshold %s).",
		cfg.targetField, int(length), formatNumber(cfg.lengthThreshold), entropy, formatNumber(cfg.entropyThreshold),
	)
	return []*models.Alert{alert}, nil
}

// ShannonEntropy returns the character-level entropy of s in bits.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int, len(s))
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
