// Package config carries the tunable policy knobs used across the patch
// engine. Every entry point takes a Policy value explicitly; there is no
// process-wide configuration state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy groups the numeric limits applied during normalization, hit
// testing, text fitting and conflict resolution. The zero value is not
// usable; start from Default.
type Policy struct {
	// MinFontScale is the lowest fraction of the original font size the
	// fit engine may shrink replacement text to.
	MinFontScale float64 `yaml:"min_font_scale"`
	// FontStepPt is the shrink step in points.
	FontStepPt float64 `yaml:"font_step_pt"`
	// MaxBBoxExpand caps horizontal box growth as a multiple of the
	// original box width.
	MaxBBoxExpand float64 `yaml:"max_bbox_expand"`
	// CollisionMarginPt pads an expanded box before overlap checks.
	CollisionMarginPt float64 `yaml:"collision_margin_pt"`
	// FuzzyMatchThreshold is the minimum combined IoU/text score that an
	// overlay selection may re-bind at.
	FuzzyMatchThreshold float64 `yaml:"fuzzy_match_threshold"`
	// CellSizePt is the spatial index grid cell size.
	CellSizePt float64 `yaml:"cell_size_pt"`
	// DriftTolerancePt is the per-axis bbox movement allowed between a
	// client read and its commit.
	DriftTolerancePt float64 `yaml:"drift_tolerance_pt"`
	// MaskPaddingNorm pads export masks, in normalized page units.
	MaskPaddingNorm float64 `yaml:"mask_padding_norm"`
	// RoundDigits is the decimal precision primitives are normalized to.
	RoundDigits int `yaml:"round_digits"`
}

// Default returns the policy the system has always shipped with.
func Default() Policy {
	return Policy{
		MinFontScale:        0.70,
		FontStepPt:          0.5,
		MaxBBoxExpand:       1.5,
		CollisionMarginPt:   2.0,
		FuzzyMatchThreshold: 0.25,
		CellSizePt:          96.0,
		DriftTolerancePt:    5.0,
		MaskPaddingNorm:     0.01,
		RoundDigits:         3,
	}
}

// Load parses a YAML policy document. Fields left at their zero value fall
// back to the defaults, so a partial file only overrides what it names.
func Load(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	return p.withDefaults(), nil
}

// LoadFile reads and parses a YAML policy file.
func LoadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return Load(data)
}

func (p Policy) withDefaults() Policy {
	def := Default()
	if p.MinFontScale <= 0 {
		p.MinFontScale = def.MinFontScale
	}
	if p.FontStepPt <= 0 {
		p.FontStepPt = def.FontStepPt
	}
	if p.MaxBBoxExpand <= 0 {
		p.MaxBBoxExpand = def.MaxBBoxExpand
	}
	if p.CollisionMarginPt <= 0 {
		p.CollisionMarginPt = def.CollisionMarginPt
	}
	if p.FuzzyMatchThreshold <= 0 {
		p.FuzzyMatchThreshold = def.FuzzyMatchThreshold
	}
	if p.CellSizePt <= 0 {
		p.CellSizePt = def.CellSizePt
	}
	if p.DriftTolerancePt <= 0 {
		p.DriftTolerancePt = def.DriftTolerancePt
	}
	if p.MaskPaddingNorm <= 0 {
		p.MaskPaddingNorm = def.MaskPaddingNorm
	}
	if p.RoundDigits <= 0 {
		p.RoundDigits = def.RoundDigits
	}
	return p
}
