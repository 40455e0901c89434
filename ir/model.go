// Package ir defines the canonical intermediate representation for a
// rendered document page: content-addressed primitives with deterministic
// ordering, derived from the raw spans and drawings an external document
// engine extracts.
package ir

import (
	"encoding/json"
	"fmt"
)

// BBox is an axis-aligned box (x0, y0, x1, y1) in page-point space.
type BBox [4]float64

// Width returns x1-x0.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns y1-y0.
func (b BBox) Height() float64 { return b[3] - b[1] }

// Intersects reports whether the boxes overlap with positive area.
func (b BBox) Intersects(o BBox) bool {
	return b[0] < o[2] && o[0] < b[2] && b[1] < o[3] && o[1] < b[3]
}

// Kind discriminates the closed set of primitive variants.
type Kind string

const (
	KindText Kind = "text"
	KindPath Kind = "path"
)

// TextStyle describes a text run's appearance. Color is the engine's packed
// sRGB integer; nil when the engine reported none.
type TextStyle struct {
	Font  string  `json:"font,omitempty"`
	Size  float64 `json:"size"`
	Color *int    `json:"color,omitempty"`
}

// PathStyle describes a vector path's appearance. Colors are channel slices
// in [0,1] (3 or 4 entries); nil means unset.
type PathStyle struct {
	StrokeColor []float64 `json:"stroke_color"`
	FillColor   []float64 `json:"fill_color"`
	StrokeWidth float64   `json:"stroke_width"`
	Opacity     *float64  `json:"opacity,omitempty"`
}

// Primitive is one visual element on one page. ID is a pure function of the
// signature fields; once assigned it never changes.
type Primitive struct {
	ID              string
	Kind            Kind
	BBox            BBox
	ZIndex          int
	Text            string
	TextStyle       *TextStyle
	PathStyle       *PathStyle
	SignatureFields map[string]string
}

type primitiveJSON struct {
	ID              string            `json:"id"`
	Kind            Kind              `json:"kind"`
	BBox            BBox              `json:"bbox"`
	ZIndex          int               `json:"z_index"`
	Style           json.RawMessage   `json:"style"`
	Text            *string           `json:"text,omitempty"`
	SignatureFields map[string]string `json:"signature_fields"`
}

// MarshalJSON emits the per-kind style under a single "style" key, matching
// the persisted wire format.
func (p Primitive) MarshalJSON() ([]byte, error) {
	var style interface{}
	switch p.Kind {
	case KindText:
		style = p.TextStyle
	case KindPath:
		style = p.PathStyle
	default:
		return nil, fmt.Errorf("ir: cannot marshal primitive of kind %q", p.Kind)
	}
	styleRaw, err := json.Marshal(style)
	if err != nil {
		return nil, err
	}
	out := primitiveJSON{
		ID:              p.ID,
		Kind:            p.Kind,
		BBox:            p.BBox,
		ZIndex:          p.ZIndex,
		Style:           styleRaw,
		SignatureFields: p.SignatureFields,
	}
	if p.Kind == KindText {
		text := p.Text
		out.Text = &text
	}
	return json.Marshal(out)
}

func (p *Primitive) UnmarshalJSON(data []byte) error {
	var in primitiveJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.ID = in.ID
	p.Kind = in.Kind
	p.BBox = in.BBox
	p.ZIndex = in.ZIndex
	p.SignatureFields = in.SignatureFields
	p.Text = ""
	p.TextStyle = nil
	p.PathStyle = nil
	if in.Text != nil {
		p.Text = *in.Text
	}
	switch in.Kind {
	case KindText:
		var style TextStyle
		if len(in.Style) > 0 {
			if err := json.Unmarshal(in.Style, &style); err != nil {
				return err
			}
		}
		p.TextStyle = &style
	case KindPath:
		var style PathStyle
		if len(in.Style) > 0 {
			if err := json.Unmarshal(in.Style, &style); err != nil {
				return err
			}
		}
		p.PathStyle = &style
	default:
		return fmt.Errorf("ir: unknown primitive kind %q", in.Kind)
	}
	return nil
}

// Clone deep-copies the primitive.
func (p Primitive) Clone() Primitive {
	out := p
	if p.TextStyle != nil {
		style := *p.TextStyle
		if p.TextStyle.Color != nil {
			c := *p.TextStyle.Color
			style.Color = &c
		}
		out.TextStyle = &style
	}
	if p.PathStyle != nil {
		style := *p.PathStyle
		style.StrokeColor = append([]float64(nil), p.PathStyle.StrokeColor...)
		style.FillColor = append([]float64(nil), p.PathStyle.FillColor...)
		if p.PathStyle.Opacity != nil {
			o := *p.PathStyle.Opacity
			style.Opacity = &o
		}
		out.PathStyle = &style
	}
	if p.SignatureFields != nil {
		fields := make(map[string]string, len(p.SignatureFields))
		for k, v := range p.SignatureFields {
			fields[k] = v
		}
		out.SignatureFields = fields
	}
	return out
}

// PageIR is the normalized form of one page. Primitive order equals draw
// order (z_index ascending).
type PageIR struct {
	DocID      string      `json:"doc_id"`
	PageIndex  int         `json:"page_index"`
	WidthPt    float64     `json:"width_pt"`
	HeightPt   float64     `json:"height_pt"`
	Rotation   int         `json:"rotation"`
	Primitives []Primitive `json:"primitives"`
}

// Clone deep-copies the page so callers can mutate the result freely.
func (p *PageIR) Clone() *PageIR {
	out := *p
	out.Primitives = make([]Primitive, len(p.Primitives))
	for i, prim := range p.Primitives {
		out.Primitives[i] = prim.Clone()
	}
	return &out
}

// FindPrimitive returns the primitive with the given id, or nil.
func (p *PageIR) FindPrimitive(id string) *Primitive {
	for i := range p.Primitives {
		if p.Primitives[i].ID == id {
			return &p.Primitives[i]
		}
	}
	return nil
}
