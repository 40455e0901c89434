package extensions

import (
	"context"
	"fmt"

	"github.com/forgeline/forgeline/config"
	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/ir/spatial"
	"github.com/forgeline/forgeline/observability"
	"github.com/forgeline/forgeline/patch"
	"github.com/forgeline/forgeline/scripting"
)

// EditScriptRunner executes a user edit script against a page and
// collects the patch ops it emits. Scripts read the page through the
// DOM (page, getPrimitive, hitTest) and emit edits through replaceText
// and setStyle; they never mutate the page directly. The collected ops
// go through the normal validate/apply path afterwards.
type EditScriptRunner struct {
	policy config.Policy
	logger observability.Logger

	script string
	ops    []patch.Op
}

// NewEditScriptRunner builds a runner. logger may be nil.
func NewEditScriptRunner(policy config.Policy, logger observability.Logger) *EditScriptRunner {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &EditScriptRunner{policy: policy, logger: logger}
}

func (r *EditScriptRunner) Name() string  { return "EditScriptRunner" }
func (r *EditScriptRunner) Phase() Phase  { return PhaseTransform }
func (r *EditScriptRunner) Priority() int { return 100 }

// Execute satisfies Extension for runners registered with a hub; the
// script must have been staged with SetScript first.
func (r *EditScriptRunner) Execute(ctx context.Context, page *ir.PageIR) error {
	if r.script == "" {
		return nil
	}
	ops, err := r.Run(ctx, page, r.script)
	if err != nil {
		return err
	}
	r.ops = ops
	return nil
}

// SetScript stages a script for hub execution.
func (r *EditScriptRunner) SetScript(script string) { r.script = script }

// Ops returns the ops collected by the last Execute.
func (r *EditScriptRunner) Ops() []patch.Op { return r.ops }

// Run executes one script against one page and returns the emitted ops
// in emission order.
func (r *EditScriptRunner) Run(ctx context.Context, page *ir.PageIR, script string) ([]patch.Op, error) {
	engine := scripting.NewEngine()
	index := spatial.Build(page, r.policy.CellSizePt)
	if err := engine.RegisterDOM(NewPageDOM(page, index, r.logger)); err != nil {
		return nil, fmt.Errorf("extensions: register dom: %w", err)
	}

	var ops []patch.Op

	if err := engine.Bind("replaceText", func(targetID, newText string) {
		ops = append(ops, patch.ReplaceText{
			TargetID: targetID,
			NewText:  newText,
			Policy:   patch.PolicyFitInBox,
		})
	}); err != nil {
		return nil, err
	}

	if err := engine.Bind("setStyle", func(targetID string, style map[string]interface{}) {
		op := patch.SetStyle{TargetID: targetID}
		if v, ok := toFloats(style["strokeColor"]); ok {
			op.StrokeColor = v
		}
		if v, ok := toFloat(style["strokeWidthPt"]); ok {
			op.StrokeWidthPt = &v
		}
		if v, ok := toFloats(style["fillColor"]); ok {
			op.FillColor = v
		}
		if v, ok := toFloat(style["opacity"]); ok {
			op.Opacity = &v
		}
		ops = append(ops, op)
	}); err != nil {
		return nil, err
	}

	if _, err := engine.Execute(ctx, script); err != nil {
		return nil, fmt.Errorf("extensions: run script: %w", err)
	}

	r.logger.Debug("edit script finished",
		observability.String("doc_id", page.DocID),
		observability.Int("ops", len(ops)),
	)
	return ops, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toFloats(v interface{}) ([]float64, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
