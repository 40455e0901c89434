// Package extensions is the plugin surface over normalized pages:
// inspectors report on content, transformers derive edits (including
// user scripts), validators check page invariants. Extensions run per
// phase in priority order.
package extensions

import (
	"context"
	"sort"

	"github.com/forgeline/forgeline/ir"
)

type Phase int

const (
	PhaseInspect Phase = iota
	PhaseTransform
	PhaseValidate
)

func (p Phase) String() string { return []string{"Inspect", "Transform", "Validate"}[p] }

type Extension interface {
	Name() string
	Phase() Phase
	Priority() int
	Execute(ctx context.Context, page *ir.PageIR) error
}

// Inspector is an extension that inspects a page and produces a report.
type Inspector interface {
	Extension
	Inspect(ctx context.Context, page *ir.PageIR) (*InspectionReport, error)
}

// Validator is an extension that checks a page against the IR contract.
type Validator interface {
	Extension
	Validate(ctx context.Context, page *ir.PageIR) (*ValidationReport, error)
}

type InspectionReport struct {
	PrimitiveCount int
	TextCount      int
	PathCount      int
	Fonts          []string
}

type ValidationReport struct {
	Valid  bool
	Errors []ValidationError
}

type ValidationError struct {
	Code    string
	Message string
	ID      string
}

type Hub interface {
	Register(ext Extension) error
	Execute(ctx context.Context, page *ir.PageIR) error
	Extensions(phase Phase) []Extension
}

type HubImpl struct {
	exts map[Phase][]Extension
}

func NewHub() *HubImpl { return &HubImpl{exts: make(map[Phase][]Extension)} }

func (h *HubImpl) Register(ext Extension) error {
	ph := ext.Phase()
	h.exts[ph] = append(h.exts[ph], ext)
	sort.SliceStable(h.exts[ph], func(i, j int) bool { return h.exts[ph][i].Priority() < h.exts[ph][j].Priority() })
	return nil
}

func (h *HubImpl) Execute(ctx context.Context, page *ir.PageIR) error {
	phases := []Phase{PhaseInspect, PhaseTransform, PhaseValidate}
	for _, ph := range phases {
		for _, e := range h.exts[ph] {
			if err := e.Execute(ctx, page); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *HubImpl) Extensions(phase Phase) []Extension {
	return append([]Extension(nil), h.exts[phase]...)
}
