package rules

import (
	"os"
	"path/filepath"
	"testing"
)

const simpleSigma = `
title: Netcat listener
id: 2b7a0c1e-1111-4d1b-8c7a-000000000001
level: high
tags:
  - attack.command_and_control
logsource:
  product: linux
detection:
  selection:
    process: nc
    args|contains: '-l'
  condition: selection
`

const aggregatedSigma = `
title: Many failures
id: 2b7a0c1e-1111-4d1b-8c7a-000000000002
logsource:
  product: linux
detection:
  selection:
    result: failed
  timeframe: 5m
  condition: selection | count() > 10
`

func TestLoadSigmaCatalogDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nc.yml", simpleSigma)
	writeFile(t, dir, "agg.yaml", aggregatedSigma)
	writeFile(t, dir, "broken.yml", "detection: [")
	writeFile(t, dir, "README.md", "ignored")

	catalog, stats, err := LoadSigmaCatalog(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.TotalFiles != 3 {
		t.Fatalf("expected 3 yaml files, got %d", stats.TotalFiles)
	}
	if stats.Loaded != 1 || stats.SkippedComplex != 1 || stats.SkippedInvalid != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if ids := catalog.IDs(); len(ids) != 1 || ids[0] != "2b7a0c1e-1111-4d1b-8c7a-000000000001" {
		t.Fatalf("unexpected catalog ids: %v", ids)
	}
}

func TestLoadSigmaCatalogSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nc.yaml", simpleSigma)
	catalog, stats, err := LoadSigmaCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if catalog.Len() != 1 || stats.Loaded != 1 {
		t.Fatalf("expected one compiled rule, got %d (%+v)", catalog.Len(), stats)
	}
}

func TestLoadSigmaCatalogRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.txt")
	if err := os.WriteFile(path, []byte(simpleSigma), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := LoadSigmaCatalog(path); err == nil {
		t.Fatalf("expected error for non-yaml rule file")
	}
}
