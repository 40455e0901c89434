package patch

import (
	"context"
	"fmt"
	"math"

	"github.com/forgeline/forgeline/config"
	"github.com/forgeline/forgeline/fonts"
	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/observability"
)

// Applier applies validated op batches to page snapshots. It never mutates
// its input: Apply works on a deep copy, so a caller may reuse one base
// snapshot across concurrent composite computations.
type Applier struct {
	measurer fonts.Measurer
	policy   config.Policy
	logger   observability.Logger
	tracer   observability.Tracer
}

// NewApplier builds an applier. logger may be nil.
func NewApplier(measurer fonts.Measurer, policy config.Policy, logger observability.Logger) *Applier {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Applier{
		measurer: measurer,
		policy:   policy,
		logger:   logger,
		tracer:   observability.NopTracer(),
	}
}

// WithTracer makes Apply open a span per batch.
func (a *Applier) WithTracer(tracer observability.Tracer) *Applier {
	a.tracer = tracer
	return a
}

// Apply replays ops in order against a clone of page. Ops addressing
// unknown ids or mismatched kinds produce no result; rejecting those is the
// validator's job, upstream. An empty op list returns a snapshot
// structurally equal to the input.
func (a *Applier) Apply(page *ir.PageIR, ops []Op) (*ir.PageIR, []OpResult) {
	_, span := a.tracer.StartSpan(context.Background(), observability.SpanApply)
	defer span.Finish()
	span.SetTag("doc_id", page.DocID)
	span.SetTag("ops", len(ops))

	patched := page.Clone()
	byID := make(map[string]*ir.Primitive, len(patched.Primitives))
	for i := range patched.Primitives {
		byID[patched.Primitives[i].ID] = &patched.Primitives[i]
	}

	var results []OpResult
	for _, op := range ops {
		target, ok := byID[op.Target()]
		if !ok {
			continue
		}
		switch o := op.(type) {
		case SetStyle:
			if target.Kind != ir.KindPath {
				continue
			}
			mergeStyle(target.PathStyle, o)
			results = append(results, OpResult{TargetID: target.ID, OK: true})
		case ReplaceText:
			if target.Kind != ir.KindText {
				continue
			}
			results = append(results, a.replaceText(patched, target, o))
		}
	}
	return patched, results
}

// mergeStyle copies only the op's non-nil fields into the style.
func mergeStyle(style *ir.PathStyle, op SetStyle) {
	if op.StrokeColor != nil {
		style.StrokeColor = append([]float64(nil), op.StrokeColor...)
	}
	if op.StrokeWidthPt != nil {
		style.StrokeWidth = *op.StrokeWidthPt
	}
	if op.FillColor != nil {
		style.FillColor = append([]float64(nil), op.FillColor...)
	}
	if op.Opacity != nil {
		opacity := *op.Opacity
		style.Opacity = &opacity
	}
}

func (a *Applier) replaceText(page *ir.PageIR, target *ir.Primitive, op ReplaceText) OpResult {
	size := target.TextStyle.Size
	res := fonts.Resolve(target.TextStyle.Font)

	var warnings []string
	if res.Reason == "unknown_fallback" || res.Reason == "missing_font" {
		warnings = append(warnings, fmt.Sprintf("font_fallback:%s", res.Builtin))
	}

	if op.Policy == PolicyOverflowNotice {
		fits, _ := a.fits(op.NewText, res.Builtin, size, target.BBox, &warnings)
		target.Text = op.NewText
		return OpResult{
			TargetID:        target.ID,
			OK:              true,
			AppliedFontSize: size,
			Overflow:        !fits,
			Warnings:        warnings,
		}
	}

	// Fit at the current size.
	if fits, _ := a.fits(op.NewText, res.Builtin, size, target.BBox, &warnings); fits {
		target.Text = op.NewText
		return OpResult{
			TargetID:        target.ID,
			OK:              true,
			AppliedFontSize: size,
			Warnings:        warnings,
		}
	}

	// Shrink in fixed steps down to the scale floor, taking the largest
	// size that fits.
	floor := round2(size * a.policy.MinFontScale)
	next := size
	for round2(next-a.policy.FontStepPt) >= floor {
		next = round2(next - a.policy.FontStepPt)
		if fits, _ := a.fits(op.NewText, res.Builtin, next, target.BBox, &warnings); fits {
			target.Text = op.NewText
			target.TextStyle.Size = next
			return OpResult{
				TargetID:        target.ID,
				OK:              true,
				AppliedFontSize: next,
				FontAdjusted:    true,
				Warnings:        warnings,
			}
		}
	}

	// The fixed steps can overshoot the floor (12pt steps to 8.5, not
	// 8.4); the floor itself is still a legal size for the original box.
	if next != floor {
		if fits, _ := a.fits(op.NewText, res.Builtin, floor, target.BBox, &warnings); fits {
			target.Text = op.NewText
			target.TextStyle.Size = floor
			return OpResult{
				TargetID:        target.ID,
				OK:              true,
				AppliedFontSize: floor,
				FontAdjusted:    true,
				Warnings:        warnings,
			}
		}
	}

	// Last resort: widen the box, as long as the expansion collides with
	// nothing else on the page.
	if expanded, ok := a.expandBBox(page, target); ok {
		if fits, _ := a.fits(op.NewText, res.Builtin, floor, expanded, &warnings); fits {
			target.Text = op.NewText
			target.TextStyle.Size = floor
			target.BBox = expanded
			return OpResult{
				TargetID:        target.ID,
				OK:              true,
				AppliedFontSize: floor,
				FontAdjusted:    true,
				BBoxAdjusted:    true,
				Warnings:        warnings,
			}
		}
	}

	// The primitive is left untouched in the output snapshot.
	return OpResult{
		TargetID: target.ID,
		OK:       false,
		Code:     CodeTextTooLong,
		Overflow: true,
		Details: map[string]float64{
			"min_scale":  a.policy.MinFontScale,
			"max_expand": a.policy.MaxBBoxExpand,
		},
		Warnings: warnings,
	}
}

// fits reports whether text set in the builtin at the given size stays
// inside bbox. A measurement failure is retried once with the default
// substitute, recording a fallback warning.
func (a *Applier) fits(text, builtin string, size float64, bbox ir.BBox, warnings *[]string) (bool, float64) {
	width, err := a.measurer.MeasureTextWidth(text, builtin, size)
	if err != nil && builtin != fonts.DefaultFont {
		a.logger.Warn("text measurement fell back to default font",
			observability.String("font", builtin),
			observability.Error("error", err))
		*warnings = appendOnce(*warnings, fmt.Sprintf("font_fallback:%s", fonts.DefaultFont))
		width, err = a.measurer.MeasureTextWidth(text, fonts.DefaultFont, size)
	}
	if err != nil {
		// Unmeasurable even in the default substitute; treat as not
		// fitting rather than aborting the batch.
		return false, 0
	}
	return width <= bbox.Width() && size <= bbox.Height(), width
}

// expandBBox grows the target's box to the right, capped by the page edge
// and the expansion factor. The grown box, padded by the collision margin,
// must not overlap any other primitive.
func (a *Applier) expandBBox(page *ir.PageIR, target *ir.Primitive) (ir.BBox, bool) {
	origWidth := target.BBox.Width()
	maxX1 := math.Min(page.WidthPt, target.BBox[0]+a.policy.MaxBBoxExpand*origWidth)
	if maxX1 <= target.BBox[2] {
		return ir.BBox{}, false
	}
	expanded := ir.BBox{target.BBox[0], target.BBox[1], maxX1, target.BBox[3]}

	margin := a.policy.CollisionMarginPt
	padded := ir.BBox{expanded[0] - margin, expanded[1] - margin, expanded[2] + margin, expanded[3] + margin}
	for i := range page.Primitives {
		other := &page.Primitives[i]
		if other.ID == target.ID {
			continue
		}
		if padded.Intersects(other.BBox) {
			return ir.BBox{}, false
		}
	}
	return expanded, true
}

func appendOnce(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
