package logline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"logsentry/pkg/models"
)

var (
	// ErrInvalidJSON is returned for lines that are not a JSON object.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrNoTimestamp is returned for records without a usable timestamp.
	// Readers skip such records.
	ErrNoTimestamp = errors.New("missing or unparseable timestamp")
)

const (
	defaultCategory = "unknown"
	defaultSeverity = "info"
)

var reservedKeys = map[string]struct{}{
	"timestamp": {},
	"category":  {},
	"severity":  {},
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Parse converts one NDJSON log record into a normalized Event. Timestamps
// without a zone are read as UTC.
func Parse(data []byte, source string) (*models.Event, error) {
	return ParseInLocation(data, source, time.UTC)
}

// ParseInLocation is Parse with naive timestamps read in loc.
func ParseInLocation(data []byte, source string, loc *time.Location) (*models.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidJSON)
	}

	ts, ok := parseTimestamp(raw["timestamp"], loc)
	if !ok {
		return nil, ErrNoTimestamp
	}

	event := &models.Event{
		Timestamp: ts,
		Source:    source,
		Category:  getString(raw, "category"),
		Severity:  getString(raw, "severity"),
		Details:   make(map[string]string, len(raw)),
	}
	if event.Category == "" {
		event.Category = defaultCategory
	}
	if event.Severity == "" {
		event.Severity = defaultSeverity
	}

	for k, v := range raw {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		event.Details[k] = stringify(v)
	}
	return event, nil
}

func parseTimestamp(v interface{}, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, false
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case string:
		value := strings.TrimSpace(val)
		if value == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, value); err == nil {
				return t, true
			}
		}
		for _, layout := range naiveLayouts {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok && v != nil {
			return stringify(v)
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
