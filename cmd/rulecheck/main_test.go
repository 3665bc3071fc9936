package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mixedRules = `
- id: auth-001
  name: Brute force
  rule_type: failed_login_threshold
  description: ok
  severity: high
  enabled: true
  parameters: {threshold: 5}
- id: net-001
  name: Port scan
  rule_type: port_scan
  description: bad threshold
  severity: medium
  enabled: true
  parameters: {threshold: 0}
- id: geo-001
  name: Impossible travel
  rule_type: impossible_travel
  description: not implemented
  severity: low
  enabled: true
  parameters: {}
- id: sig-001
  name: Sigma
  rule_type: sigma_match
  description: no catalog
  severity: high
  enabled: true
  parameters: {sigma_id: missing}
- id: old-001
  name: Old
  rule_type: port_scan
  description: disabled
  severity: low
  enabled: false
  parameters: {threshold: nope}
`

func TestCheckReportsProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(mixedRules), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	if n := check([]string{path}, "", false, &out); n != 2 {
		t.Fatalf("expected 2 problems, got %d:\n%s", n, out.String())
	}
	report := out.String()
	for _, want := range []string{"OK   auth-001", "FAIL net-001", "WARN geo-001", "FAIL sig-001", "SKIP old-001"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}

	out.Reset()
	if n := check([]string{path}, "", true, &out); n != 3 {
		t.Fatalf("expected 3 problems in strict mode, got %d", n)
	}
}

func TestCheckLoadFailure(t *testing.T) {
	var out bytes.Buffer
	if n := check([]string{filepath.Join(t.TempDir(), "absent.yaml")}, "", false, &out); n != -1 {
		t.Fatalf("expected -1 for unreadable rules, got %d", n)
	}
}
