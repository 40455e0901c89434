package extensions

import (
	"context"
	"fmt"
	"sort"

	"github.com/forgeline/forgeline/ir"
)

// BasicInspector implements a simple page inspector.
type BasicInspector struct{}

func (i *BasicInspector) Name() string  { return "BasicInspector" }
func (i *BasicInspector) Phase() Phase  { return PhaseInspect }
func (i *BasicInspector) Priority() int { return 100 }
func (i *BasicInspector) Execute(ctx context.Context, page *ir.PageIR) error {
	_, err := i.Inspect(ctx, page)
	return err
}

func (i *BasicInspector) Inspect(_ context.Context, page *ir.PageIR) (*InspectionReport, error) {
	report := &InspectionReport{PrimitiveCount: len(page.Primitives)}

	fonts := make(map[string]bool)
	for _, prim := range page.Primitives {
		switch prim.Kind {
		case ir.KindText:
			report.TextCount++
			if prim.TextStyle != nil && prim.TextStyle.Font != "" {
				fonts[prim.TextStyle.Font] = true
			}
		case ir.KindPath:
			report.PathCount++
		}
	}
	for font := range fonts {
		report.Fonts = append(report.Fonts, font)
	}
	sort.Strings(report.Fonts)

	return report, nil
}

// ContractValidator checks the invariants normalization guarantees:
// unique ids, z-indexes matching slice order, well-formed boxes, style
// matching kind.
type ContractValidator struct{}

func (v *ContractValidator) Name() string  { return "ContractValidator" }
func (v *ContractValidator) Phase() Phase  { return PhaseValidate }
func (v *ContractValidator) Priority() int { return 100 }
func (v *ContractValidator) Execute(ctx context.Context, page *ir.PageIR) error {
	report, err := v.Validate(ctx, page)
	if err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("extensions: page %d violates IR contract: %s",
			page.PageIndex, report.Errors[0].Message)
	}
	return nil
}

func (v *ContractValidator) Validate(_ context.Context, page *ir.PageIR) (*ValidationReport, error) {
	report := &ValidationReport{Valid: true}
	fail := func(code, id, format string, args ...interface{}) {
		report.Valid = false
		report.Errors = append(report.Errors, ValidationError{
			Code:    code,
			Message: fmt.Sprintf(format, args...),
			ID:      id,
		})
	}

	seen := make(map[string]bool, len(page.Primitives))
	for i, prim := range page.Primitives {
		if prim.ID == "" {
			fail("missing_id", "", "primitive %d has no id", i)
			continue
		}
		if seen[prim.ID] {
			fail("duplicate_id", prim.ID, "id %s appears more than once", prim.ID)
		}
		seen[prim.ID] = true

		if prim.ZIndex != i {
			fail("z_order", prim.ID, "z-index %d does not match position %d", prim.ZIndex, i)
		}
		if prim.BBox[2] < prim.BBox[0] || prim.BBox[3] < prim.BBox[1] {
			fail("bad_bbox", prim.ID, "inverted bbox %v", prim.BBox)
		}
		switch prim.Kind {
		case ir.KindText:
			if prim.TextStyle == nil {
				fail("missing_style", prim.ID, "text primitive without text style")
			}
		case ir.KindPath:
			if prim.PathStyle == nil {
				fail("missing_style", prim.ID, "path primitive without path style")
			}
		default:
			fail("bad_kind", prim.ID, "unknown kind %q", prim.Kind)
		}
	}
	return report, nil
}
