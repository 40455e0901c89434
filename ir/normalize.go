package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// RawSpan is one text span as reported by the external document engine.
type RawSpan struct {
	Text  string  `json:"text"`
	Font  string  `json:"font,omitempty"`
	Size  float64 `json:"size"`
	Color *int    `json:"color,omitempty"`
	BBox  BBox    `json:"bbox"`
}

// RawDrawing is one vector drawing as reported by the engine.
type RawDrawing struct {
	BBox        BBox      `json:"bbox"`
	StrokeWidth float64   `json:"stroke_width"`
	StrokeColor []float64 `json:"stroke_color"`
	FillColor   []float64 `json:"fill_color"`
}

// RawExtraction is the engine's full output for one page.
type RawExtraction struct {
	WidthPt  float64      `json:"width_pt"`
	HeightPt float64      `json:"height_pt"`
	Rotation int          `json:"rotation"`
	Spans    []RawSpan    `json:"spans"`
	Drawings []RawDrawing `json:"drawings"`
}

// Normalizer converts raw extraction output into canonical PageIR.
type Normalizer struct {
	// RoundDigits is the decimal precision applied to every numeric
	// field before sorting and signing.
	RoundDigits int
}

// NewNormalizer returns a normalizer with the standard 3-digit precision.
func NewNormalizer() *Normalizer {
	return &Normalizer{RoundDigits: 3}
}

// NormalizePage converts a raw extraction with the default precision.
func NormalizePage(docID string, pageIndex int, raw RawExtraction) *PageIR {
	return NewNormalizer().NormalizePage(docID, pageIndex, raw)
}

// rawItem is the pre-primitive staging record the sort runs over.
type rawItem struct {
	kind        Kind
	bbox        BBox
	text        string
	font        string
	size        float64
	color       *int
	strokeWidth float64
	strokeColor []float64
	fillColor   []float64
}

// NormalizePage drops whitespace-only spans, rounds every numeric field,
// orders items deterministically, assigns z-indexes by that order and
// derives each primitive's content-addressed id from its signature.
// Normalizing the same extraction twice yields byte-identical ids.
func (n *Normalizer) NormalizePage(docID string, pageIndex int, raw RawExtraction) *PageIR {
	items := make([]rawItem, 0, len(raw.Spans)+len(raw.Drawings))
	for _, span := range raw.Spans {
		text := strings.TrimSpace(span.Text)
		if text == "" {
			continue
		}
		items = append(items, rawItem{
			kind:  KindText,
			bbox:  n.roundBBox(span.BBox),
			text:  text,
			font:  span.Font,
			size:  n.round(span.Size),
			color: span.Color,
		})
	}
	for _, drawing := range raw.Drawings {
		items = append(items, rawItem{
			kind:        KindPath,
			bbox:        n.roundBBox(drawing.BBox),
			strokeWidth: n.round(drawing.StrokeWidth),
			strokeColor: n.roundChannels(drawing.StrokeColor),
			fillColor:   n.roundChannels(drawing.FillColor),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return lessRawItem(items[i], items[j])
	})

	primitives := make([]Primitive, 0, len(items))
	for z, item := range items {
		primitives = append(primitives, n.buildPrimitive(docID, pageIndex, z, item))
	}

	return &PageIR{
		DocID:      docID,
		PageIndex:  pageIndex,
		WidthPt:    n.round(raw.WidthPt),
		HeightPt:   n.round(raw.HeightPt),
		Rotation:   raw.Rotation,
		Primitives: primitives,
	}
}

func kindRank(k Kind) int {
	if k == KindText {
		return 0
	}
	return 1
}

func lessRawItem(a, b rawItem) bool {
	if ra, rb := kindRank(a.kind), kindRank(b.kind); ra != rb {
		return ra < rb
	}
	if a.bbox[1] != b.bbox[1] {
		return a.bbox[1] < b.bbox[1]
	}
	if a.bbox[0] != b.bbox[0] {
		return a.bbox[0] < b.bbox[0]
	}
	if a.bbox[3] != b.bbox[3] {
		return a.bbox[3] < b.bbox[3]
	}
	if a.bbox[2] != b.bbox[2] {
		return a.bbox[2] < b.bbox[2]
	}
	if a.text != b.text {
		return a.text < b.text
	}
	return a.strokeWidth < b.strokeWidth
}

func (n *Normalizer) buildPrimitive(docID string, pageIndex, zIndex int, item rawItem) Primitive {
	fields := map[string]string{
		"doc_id":     docID,
		"page_index": strconv.Itoa(pageIndex),
		"kind":       string(item.kind),
		"bbox":       n.formatBBox(item.bbox),
		"z_index":    strconv.Itoa(zIndex),
	}
	prim := Primitive{
		Kind:   item.kind,
		BBox:   item.bbox,
		ZIndex: zIndex,
	}
	if item.kind == KindText {
		fields["text"] = item.text
		fields["font"] = item.font
		fields["size"] = n.formatFloat(item.size)
		fields["color"] = formatOptionalInt(item.color)
		prim.Text = item.text
		prim.TextStyle = &TextStyle{Font: item.font, Size: item.size, Color: item.color}
	} else {
		fields["stroke_width"] = n.formatFloat(item.strokeWidth)
		fields["stroke_color"] = n.formatChannels(item.strokeColor)
		fields["fill_color"] = n.formatChannels(item.fillColor)
		prim.PathStyle = &PathStyle{
			StrokeColor: item.strokeColor,
			FillColor:   item.fillColor,
			StrokeWidth: item.strokeWidth,
		}
	}
	prim.SignatureFields = fields
	prim.ID = stableID(signature(fields))
	return prim
}

// signature joins the key-sorted field set as "k=v" pairs with '|'.
func signature(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, "|")
}

func stableID(sig string) string {
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:])
}

func (n *Normalizer) round(v float64) float64 {
	pow := math.Pow(10, float64(n.RoundDigits))
	return math.Round(v*pow) / pow
}

func (n *Normalizer) roundBBox(b BBox) BBox {
	return BBox{n.round(b[0]), n.round(b[1]), n.round(b[2]), n.round(b[3])}
}

func (n *Normalizer) roundChannels(channels []float64) []float64 {
	if channels == nil {
		return nil
	}
	out := make([]float64, len(channels))
	for i, c := range channels {
		out[i] = n.round(c)
	}
	return out
}

func (n *Normalizer) formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', n.RoundDigits, 64)
}

func (n *Normalizer) formatBBox(b BBox) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = n.formatFloat(v)
	}
	return strings.Join(parts, ",")
}

func (n *Normalizer) formatChannels(channels []float64) string {
	if channels == nil {
		return ""
	}
	parts := make([]string, len(channels))
	for i, c := range channels {
		parts[i] = n.formatFloat(c)
	}
	return strings.Join(parts, ",")
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
