package models

import "time"

// Event is a normalized security-relevant log record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Category  string            `json:"category"`
	Severity  string            `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
}

// Field returns a details value and whether it was present.
func (e *Event) Field(name string) (string, bool) {
	if e == nil || e.Details == nil || name == "" {
		return "", false
	}
	v, ok := e.Details[name]
	return v, ok
}

// FieldOr returns a details value, or fallback when the field is absent.
func (e *Event) FieldOr(name, fallback string) string {
	if v, ok := e.Field(name); ok {
		return v
	}
	return fallback
}
