package fonts

import (
	"fmt"
	"sync"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// Measurer measures rendered text width in points. Implementations may
// fail on builtin/text combinations they cannot represent; callers retry
// once with the default substitute and record a fallback warning.
type Measurer interface {
	MeasureTextWidth(text, builtin string, size float64) (float64, error)
}

// coreFont maps a builtin short name to an fpdf core family and style.
type coreFont struct {
	family string
	style  string
}

var coreFontTable = map[string]coreFont{
	"helv":   {"Helvetica", ""},
	"helvb":  {"Helvetica", "B"},
	"helvi":  {"Helvetica", "I"},
	"helvbi": {"Helvetica", "BI"},
	"tiro":   {"Times", ""},
	"tirob":  {"Times", "B"},
	"tiroi":  {"Times", "I"},
	"tirobi": {"Times", "BI"},
	"cour":   {"Courier", ""},
	"courb":  {"Courier", "B"},
	"couri":  {"Courier", "I"},
	"courbi": {"Courier", "BI"},
}

// CoreFont maps a builtin short name to the renderer family and style
// selectors used when drawing with it.
func CoreFont(builtin string) (family, style string, ok bool) {
	core, ok := coreFontTable[builtin]
	if !ok {
		return "", "", false
	}
	return core.family, core.style, true
}

// CoreMeasurer measures text using the AFM metrics of the 14 core fonts
// that every renderer carries. Safe for concurrent use.
type CoreMeasurer struct {
	mu  sync.Mutex
	pdf *fpdf.Fpdf
}

// NewCoreMeasurer builds a measurer backed by a point-unit document.
func NewCoreMeasurer() *CoreMeasurer {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	return &CoreMeasurer{pdf: pdf}
}

// MeasureTextWidth returns the width of text set in the given builtin at
// the given size. Text is transcoded to Latin-1 first; characters outside
// it measure as their raw bytes, which matches what the compositor draws.
func (m *CoreMeasurer) MeasureTextWidth(text, builtin string, size float64) (float64, error) {
	core, ok := coreFontTable[builtin]
	if !ok {
		return 0, fmt.Errorf("fonts: %q is not a builtin substitute", builtin)
	}
	if size <= 0 {
		return 0, fmt.Errorf("fonts: non-positive font size %v", size)
	}

	latin1, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil {
		latin1 = text
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFont(core.family, core.style, size)
	if err := m.pdf.Error(); err != nil {
		return 0, fmt.Errorf("fonts: select %s %s: %w", core.family, core.style, err)
	}
	return m.pdf.GetStringWidth(latin1), nil
}
