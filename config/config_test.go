package config_test

import (
	"testing"

	"github.com/forgeline/forgeline/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := config.Default()
	if p.MinFontScale != 0.70 {
		t.Errorf("Expected min font scale 0.70, got %v", p.MinFontScale)
	}
	if p.MaxBBoxExpand != 1.5 {
		t.Errorf("Expected max bbox expand 1.5, got %v", p.MaxBBoxExpand)
	}
	if p.CellSizePt != 96.0 {
		t.Errorf("Expected cell size 96, got %v", p.CellSizePt)
	}
	if p.DriftTolerancePt != 5.0 {
		t.Errorf("Expected drift tolerance 5, got %v", p.DriftTolerancePt)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	p, err := config.Load([]byte("cell_size_pt: 48\nfuzzy_match_threshold: 0.5\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.CellSizePt != 48 {
		t.Errorf("Expected overridden cell size 48, got %v", p.CellSizePt)
	}
	if p.FuzzyMatchThreshold != 0.5 {
		t.Errorf("Expected overridden threshold 0.5, got %v", p.FuzzyMatchThreshold)
	}
	if p.MinFontScale != 0.70 {
		t.Errorf("Expected default min font scale, got %v", p.MinFontScale)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := config.Load([]byte(": not yaml")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
