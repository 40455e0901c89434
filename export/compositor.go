// Package export flattens overlay edits into a rendered document: white
// masks over the original pixels of every edited element, replacement
// text drawn on top. Visual perfection is not the goal; the output is a
// faithful record of the committed edits.
package export

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/forgeline/forgeline/config"
	"github.com/forgeline/forgeline/fonts"
	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/observability"
	"github.com/forgeline/forgeline/overlay"
)

// ascentRatio places the text baseline inside its box.
const ascentRatio = 0.8

// TextBox is one replacement text run in normalized display coordinates.
type TextBox struct {
	Text   string  `json:"text"`
	BBox   ir.BBox `json:"bbox"`
	Font   string  `json:"font"`
	SizePt float64 `json:"size_pt"`
	Color  string  `json:"color"`
}

// Page is everything the compositor draws for one output page.
type Page struct {
	WidthPt  float64        `json:"width_pt"`
	HeightPt float64        `json:"height_pt"`
	Rotation int            `json:"rotation"`
	Masks    []overlay.Mask `json:"masks"`
	Texts    []TextBox      `json:"texts"`
}

// PageFromState derives a compositor page from a manifest page and its
// reconstructed overlay state: the state's masks, plus a text box for
// every element whose text differs from its baseline.
func PageFromState(page overlay.ManifestPage, state overlay.PageState) Page {
	out := Page{
		WidthPt:  page.WidthPt,
		HeightPt: page.HeightPt,
		Rotation: page.Rotation,
		Masks:    state.Masks,
	}
	seen := make(map[string]bool, len(page.Elements))
	for _, el := range page.Elements {
		seen[el.ElementID] = true
		entry, ok := state.Primitives[el.ElementID]
		if !ok || entry.Text == entry.BaseText {
			continue
		}
		out.Texts = append(out.Texts, textBoxFromEntry(entry))
	}

	// Custom entries have no manifest counterpart; take them in sorted
	// order so output is deterministic.
	customIDs := make([]string, 0)
	for id, entry := range state.Primitives {
		if !seen[id] && entry.Text != entry.BaseText {
			customIDs = append(customIDs, id)
		}
	}
	sort.Strings(customIDs)
	for _, id := range customIDs {
		out.Texts = append(out.Texts, textBoxFromEntry(state.Primitives[id]))
	}
	return out
}

func textBoxFromEntry(entry overlay.StateEntry) TextBox {
	box := TextBox{
		Text:   entry.Text,
		BBox:   entry.BBox,
		SizePt: 11,
		Color:  "#000000",
	}
	if font, ok := entry.Style["font"].(string); ok {
		box.Font = font
	}
	if size, ok := entry.Style["size_pt"].(float64); ok && size > 0 {
		box.SizePt = size
	}
	if color, ok := entry.Style["color"].(string); ok && color != "" {
		box.Color = color
	}
	return box
}

// Compositor renders mask-and-text pages.
type Compositor struct {
	policy config.Policy
	logger observability.Logger
	tracer observability.Tracer
}

// NewCompositor builds a compositor. logger may be nil.
func NewCompositor(policy config.Policy, logger observability.Logger) *Compositor {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Compositor{
		policy: policy,
		logger: logger,
		tracer: observability.NopTracer(),
	}
}

// WithTracer makes Compose open a span per document.
func (c *Compositor) WithTracer(tracer observability.Tracer) *Compositor {
	c.tracer = tracer
	return c
}

// Compose renders the pages into a single document.
func (c *Compositor) Compose(pages []Page) ([]byte, error) {
	start := time.Now()
	_, span := c.tracer.StartSpan(context.Background(), observability.SpanExport)
	defer span.Finish()
	span.SetTag("pages", len(pages))

	if len(pages) == 0 {
		err := fmt.Errorf("export: no pages")
		span.SetError(err)
		return nil, err
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	for _, page := range pages {
		w, h := page.WidthPt, page.HeightPt
		if page.Rotation == 90 || page.Rotation == 270 {
			w, h = h, w
		}
		orientation := "P"
		if w > h {
			orientation = "L"
		}
		pdf.AddPageFormat(orientation, fpdf.SizeType{Wd: w, Ht: h})

		for _, mask := range page.Masks {
			r, g, b := parseHexColor(mask.Color, 255, 255, 255)
			pdf.SetFillColor(r, g, b)
			x0 := mask.BBox[0] * w
			y0 := mask.BBox[1] * h
			pdf.Rect(x0, y0, (mask.BBox[2]-mask.BBox[0])*w, (mask.BBox[3]-mask.BBox[1])*h, "F")
		}

		for _, text := range page.Texts {
			if err := c.drawText(pdf, text, w, h); err != nil {
				span.SetError(err)
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		err = fmt.Errorf("export: render: %w", err)
		span.SetError(err)
		return nil, err
	}
	c.logger.Info("export composed",
		observability.Int("pages", len(pages)),
		observability.Float64("elapsed_ms", float64(time.Since(start).Milliseconds())),
	)
	return buf.Bytes(), nil
}

func (c *Compositor) drawText(pdf *fpdf.Fpdf, text TextBox, w, h float64) error {
	resolution := fonts.Resolve(text.Font)
	family, style, ok := fonts.CoreFont(resolution.Builtin)
	if !ok {
		return fmt.Errorf("export: no core font for %q", resolution.Builtin)
	}
	if resolution.Reason == "unknown_fallback" || resolution.Reason == "missing_font" {
		c.logger.Warn("export font fallback",
			observability.String("requested", text.Font),
			observability.String("builtin", resolution.Builtin),
			observability.String("reason", resolution.Reason),
		)
	}

	size := text.SizePt
	if size <= 0 {
		size = 11
	}
	pdf.SetFont(family, style, size)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("export: select font %s %s: %w", family, style, err)
	}

	r, g, b := parseHexColor(text.Color, 0, 0, 0)
	pdf.SetTextColor(r, g, b)

	// Latin-1 keeps core-font encoding happy; unmappable runes draw raw.
	latin1, err := charmap.ISO8859_1.NewEncoder().String(text.Text)
	if err != nil {
		latin1 = text.Text
	}

	x0 := text.BBox[0] * w
	y0 := text.BBox[1] * h
	boxWidth := (text.BBox[2] - text.BBox[0]) * w

	// Shrink to the box if the metric width overruns it.
	if strWidth := pdf.GetStringWidth(latin1); strWidth > boxWidth && strWidth > 0 && boxWidth > 0 {
		pdf.SetFontSize(size * boxWidth / strWidth)
	}
	fontSize, _ := pdf.GetFontSize()
	pdf.Text(x0, y0+fontSize*ascentRatio, latin1)
	pdf.SetFontSize(size)
	return nil
}

// parseHexColor decodes #rrggbb, falling back to the given default.
func parseHexColor(value string, dr, dg, db int) (int, int, int) {
	if len(value) != 7 || value[0] != '#' {
		return dr, dg, db
	}
	var r, g, b int
	if _, err := fmt.Sscanf(value[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return dr, dg, db
	}
	return r, g, b
}
