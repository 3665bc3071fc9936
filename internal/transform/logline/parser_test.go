package logline

import (
	"errors"
	"testing"
	"time"
)

func TestParseDefaultsAndDetails(t *testing.T) {
	line := []byte(`{"timestamp":"2026-03-04T05:06:07","username":"alice","result":"failed","attempt":3,"mfa":false,"geo":{"cc":"DE"}}`)

	ev, err := Parse(line, "auth.log")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("expected %s, got %s", want, ev.Timestamp)
	}
	if ev.Category != "unknown" || ev.Severity != "info" || ev.Source != "auth.log" {
		t.Fatalf("unexpected defaults: %+v", ev)
	}
	checks := map[string]string{
		"username": "alice",
		"attempt":  "3",
		"mfa":      "false",
		"geo":      `{"cc":"DE"}`,
	}
	for k, v := range checks {
		if ev.Details[k] != v {
			t.Fatalf("expected details[%s]=%q, got %q", k, v, ev.Details[k])
		}
	}
	if _, ok := ev.Details["timestamp"]; ok {
		t.Fatalf("timestamp must not be copied into details")
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := map[string]string{
		"iso":     `{"timestamp":"2026-01-02T03:04:05"}`,
		"space":   `{"timestamp":"2026-01-02 03:04:05"}`,
		"rfc3339": `{"timestamp":"2026-01-02T04:04:05+01:00"}`,
		"unix":    `{"timestamp":` + "1767323045" + `}`,
	}
	for name, line := range cases {
		ev, err := Parse([]byte(line), "x")
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if !ev.Timestamp.Equal(base) {
			t.Fatalf("%s: expected %s, got %s", name, base, ev.Timestamp)
		}
	}
}

func TestParseKeepsCategoryAndSeverity(t *testing.T) {
	ev, err := Parse([]byte(`{"timestamp":"2026-01-02 03:04:05","category":"dns","severity":"warning","query":"example.com"}`), "dns.log")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Category != "dns" || ev.Severity != "warning" {
		t.Fatalf("unexpected category/severity: %s/%s", ev.Category, ev.Severity)
	}
	if len(ev.Details) != 1 || ev.Details["query"] != "example.com" {
		t.Fatalf("unexpected details: %v", ev.Details)
	}
}

func TestParseWithoutTimestamp(t *testing.T) {
	for _, line := range []string{`{"user":"bob"}`, `{"timestamp":""}`, `{"timestamp":"yesterday"}`, `{"timestamp":0}`} {
		if _, err := Parse([]byte(line), "x"); !errors.Is(err, ErrNoTimestamp) {
			t.Fatalf("expected ErrNoTimestamp for %s, got %v", line, err)
		}
	}
}

func TestParseInvalidJSON(t *testing.T) {
	for _, line := range []string{`{"timestamp":`, `null`, `[1,2]`} {
		if _, err := Parse([]byte(line), "x"); !errors.Is(err, ErrInvalidJSON) {
			t.Fatalf("expected ErrInvalidJSON for %s, got %v", line, err)
		}
	}
}

func TestParseInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ev, err := ParseInLocation([]byte(`{"timestamp":"2026-01-02 03:04:05"}`), "x", loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2026, 1, 2, 1, 4, 5, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("expected %s, got %s", want, ev.Timestamp)
	}
}
