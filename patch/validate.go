package patch

import (
	"fmt"
	"strings"

	"github.com/forgeline/forgeline/ir"
)

// ValidationResult itemizes everything wrong with an op batch. It is a
// value, not an error: an invalid batch is an expected outcome.
type ValidationResult struct {
	OK          bool        `json:"ok"`
	Errors      []string    `json:"errors"`
	DiffSummary []DiffEntry `json:"diff_summary"`
}

// Validate checks each op against the snapshot and the caller's selection.
// When selectedIDs is nil the selection check is skipped. All problems are
// reported in one pass; the apply stage assumes a validated batch and
// silently drops anything that still misses.
func Validate(page *ir.PageIR, ops []Op, selectedIDs []string) ValidationResult {
	var errs []string
	var diff []DiffEntry

	byID := make(map[string]*ir.Primitive, len(page.Primitives))
	for i := range page.Primitives {
		byID[page.Primitives[i].ID] = &page.Primitives[i]
	}
	var allowed map[string]bool
	if selectedIDs != nil {
		allowed = make(map[string]bool, len(selectedIDs))
		for _, id := range selectedIDs {
			allowed[id] = true
		}
	}

	for _, op := range ops {
		id := op.Target()
		if strings.TrimSpace(id) == "" {
			errs = append(errs, "Missing target id")
			continue
		}
		target, ok := byID[id]
		if !ok {
			errs = append(errs, fmt.Sprintf("Unknown target id %s", id))
			continue
		}
		if allowed != nil && !allowed[id] {
			errs = append(errs, fmt.Sprintf("Target id %s not in selection", id))
			continue
		}

		switch o := op.(type) {
		case SetStyle:
			if entry, problem := validateSetStyle(target, o); problem != "" {
				errs = append(errs, problem)
			} else {
				diff = append(diff, entry)
			}
		case ReplaceText:
			if target.Kind != ir.KindText {
				errs = append(errs, fmt.Sprintf("replace_text not allowed for kind %s on %s", target.Kind, id))
				continue
			}
			if o.Policy != PolicyFitInBox && o.Policy != PolicyOverflowNotice {
				errs = append(errs, fmt.Sprintf("Unsupported policy %q for %s", o.Policy, id))
				continue
			}
			diff = append(diff, DiffEntry{TargetID: id, ChangedFields: []string{"text", "policy"}})
		}
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs, DiffSummary: diff}
}

func validateSetStyle(target *ir.Primitive, op SetStyle) (DiffEntry, string) {
	id := op.TargetID
	if target.Kind != ir.KindPath {
		return DiffEntry{}, fmt.Sprintf("set_style not allowed for kind %s on %s", target.Kind, id)
	}
	if !validColor(op.StrokeColor) {
		return DiffEntry{}, fmt.Sprintf("Invalid stroke_color for %s", id)
	}
	if !validColor(op.FillColor) {
		return DiffEntry{}, fmt.Sprintf("Invalid fill_color for %s", id)
	}
	if op.StrokeWidthPt != nil && *op.StrokeWidthPt < 0 {
		return DiffEntry{}, fmt.Sprintf("stroke_width_pt must be non-negative for %s", id)
	}
	if op.Opacity != nil && (*op.Opacity < 0 || *op.Opacity > 1) {
		return DiffEntry{}, fmt.Sprintf("opacity out of range for %s", id)
	}

	var changed []string
	if op.StrokeColor != nil {
		changed = append(changed, "stroke_color")
	}
	if op.StrokeWidthPt != nil {
		changed = append(changed, "stroke_width_pt")
	}
	if op.FillColor != nil {
		changed = append(changed, "fill_color")
	}
	if op.Opacity != nil {
		changed = append(changed, "opacity")
	}
	if len(changed) == 0 {
		return DiffEntry{}, fmt.Sprintf("set_style with no fields for %s", id)
	}
	return DiffEntry{TargetID: id, ChangedFields: changed}, ""
}

// validColor accepts nil (unset) or a 3/4-channel slice with channels in
// [0, 1].
func validColor(color []float64) bool {
	if color == nil {
		return true
	}
	if len(color) != 3 && len(color) != 4 {
		return false
	}
	for _, c := range color {
		if c < 0 || c > 1 {
			return false
		}
	}
	return true
}
