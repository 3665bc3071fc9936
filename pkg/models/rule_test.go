package models

import (
	"errors"
	"strings"
	"testing"
)

func TestParamAsIntAcceptsIntegralValues(t *testing.T) {
	cases := []Param{IntParam(3), FloatParam(3), StringParam("3"), StringParam(" 3.0 ")}
	for _, p := range cases {
		got, err := p.AsInt()
		if err != nil {
			t.Fatalf("expected %s param %q to coerce, got %v", p.Kind(), p.String(), err)
		}
		if got != 3 {
			t.Fatalf("expected 3, got %d", got)
		}
	}
}

func TestParamAsIntRejectsNonIntegral(t *testing.T) {
	cases := []Param{FloatParam(2.5), StringParam("five"), BoolParam(true), StringParam("")}
	for _, p := range cases {
		if _, err := p.AsInt(); !errors.Is(err, ErrNotCoercible) {
			t.Fatalf("expected ErrNotCoercible for %s %q, got %v", p.Kind(), p.String(), err)
		}
	}
}

func TestParamAsFloat(t *testing.T) {
	if f, err := StringParam("3.5").AsFloat(); err != nil || f != 3.5 {
		t.Fatalf("expected 3.5, got %v (%v)", f, err)
	}
	if f, err := IntParam(45).AsFloat(); err != nil || f != 45 {
		t.Fatalf("expected 45, got %v (%v)", f, err)
	}
	if _, err := StringParam("NaN").AsFloat(); !errors.Is(err, ErrNotCoercible) {
		t.Fatalf("expected NaN to be rejected, got %v", err)
	}
	if _, err := BoolParam(false).AsFloat(); !errors.Is(err, ErrNotCoercible) {
		t.Fatalf("expected bool to be rejected, got %v", err)
	}
}

func TestParamFromValue(t *testing.T) {
	p, err := ParamFromValue(10)
	if err != nil || p.Kind() != ParamInt {
		t.Fatalf("expected int param, got %s (%v)", p.Kind(), err)
	}
	p, err = ParamFromValue(3.5)
	if err != nil || p.Kind() != ParamFloat {
		t.Fatalf("expected float param, got %s (%v)", p.Kind(), err)
	}
	if s, _ := BoolParam(true).AsString(); s != "true" {
		t.Fatalf("expected true, got %s", s)
	}
	if _, err := ParamFromValue([]string{"a"}); !errors.Is(err, ErrNotCoercible) {
		t.Fatalf("expected list to be rejected, got %v", err)
	}
}

func TestEventFieldDistinguishesMissing(t *testing.T) {
	ev := &Event{Details: map[string]string{"user": ""}}
	if _, ok := ev.Field("user"); !ok {
		t.Fatalf("expected empty field to be present")
	}
	if _, ok := ev.Field("host"); ok {
		t.Fatalf("expected missing field to be absent")
	}
	if got := ev.FieldOr("host", "unknown"); got != "unknown" {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestAlertFileName(t *testing.T) {
	a := &Alert{ID: "r1:alice:1700000000"}
	if got := a.FileName(); got != "r1_alice_1700000000.json" {
		t.Fatalf("unexpected file name %s", got)
	}
}

func TestAlertFileNameStaysInsideDirectory(t *testing.T) {
	cases := map[string]string{
		"auth-001:a/b:1":                     "auth-001_a_b_1.json",
		"auth-001:x/../../../escaped/pwn:1":  "auth-001_x_.._.._.._escaped_pwn_1.json",
		`net-001:C:\Windows\win.ini:1`:       "net-001_C__Windows_win.ini_1.json",
		"dns-001:abc.example.com:1700000000": "dns-001_abc.example.com_1700000000.json",
		"..":                                 "alert...json",
	}
	for id, want := range cases {
		got := (&Alert{ID: id}).FileName()
		if got != want {
			t.Fatalf("expected %s for %q, got %s", want, id, got)
		}
		if strings.ContainsAny(got, `/\`) {
			t.Fatalf("file name %q contains a path separator", got)
		}
	}

	long := &Alert{ID: "dns-001:" + strings.Repeat("a", 300) + ":1700000000"}
	name := long.FileName()
	if len(name) > 255 {
		t.Fatalf("expected file name within 255 bytes, got %d", len(name))
	}
	other := &Alert{ID: "dns-001:" + strings.Repeat("a", 300) + ":1700000001"}
	if other.FileName() == name {
		t.Fatalf("expected distinct names for distinct long ids")
	}
}
