package extensions

import (
	"fmt"

	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/ir/spatial"
	"github.com/forgeline/forgeline/observability"
	"github.com/forgeline/forgeline/scripting"
)

// PageDOM adapts a normalized page to the scripting DOM. Lookups go
// through the page's spatial index; primitives are exposed read-only.
type PageDOM struct {
	page   *ir.PageIR
	index  *spatial.Index
	logger observability.Logger
}

// NewPageDOM builds a DOM over a page. logger may be nil.
func NewPageDOM(page *ir.PageIR, index *spatial.Index, logger observability.Logger) *PageDOM {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &PageDOM{page: page, index: index, logger: logger}
}

func (d *PageDOM) GetPrimitive(id string) (scripting.PrimitiveProxy, error) {
	prim := d.page.FindPrimitive(id)
	if prim == nil {
		return nil, fmt.Errorf("primitive not found: %s", id)
	}
	return primitiveProxy{prim: prim}, nil
}

func (d *PageDOM) HitTestPoint(x, y float64) []string {
	candidates := d.index.HitTestPoint(x, y)
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func (d *PageDOM) PageMeta() scripting.PageMeta {
	return scripting.PageMeta{
		DocID:     d.page.DocID,
		PageIndex: d.page.PageIndex,
		WidthPt:   d.page.WidthPt,
		HeightPt:  d.page.HeightPt,
		Rotation:  d.page.Rotation,
	}
}

func (d *PageDOM) Log(message string) {
	d.logger.Info("script log",
		observability.String("doc_id", d.page.DocID),
		observability.Int("page_index", d.page.PageIndex),
		observability.String("message", message),
	)
}

type primitiveProxy struct {
	prim *ir.Primitive
}

func (p primitiveProxy) ID() string   { return p.prim.ID }
func (p primitiveProxy) Kind() string { return string(p.prim.Kind) }
func (p primitiveProxy) Text() string { return p.prim.Text }
func (p primitiveProxy) BBox() [4]float64 {
	return [4]float64(p.prim.BBox)
}
