package fonts

import (
	"bytes"
	"fmt"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// FaceMeasurer measures text against a caller-supplied TrueType face
// instead of the core-font metrics. Used when the surrounding service has
// the original embedded font bytes and wants higher-fidelity fit checks.
type FaceMeasurer struct {
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
}

// NewFaceMeasurer parses TTF bytes into a measurer.
func NewFaceMeasurer(ttf []byte) (*FaceMeasurer, error) {
	face, err := gofont.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("fonts: parse ttf: %w", err)
	}
	return &FaceMeasurer{face: face}, nil
}

// MeasureTextWidth shapes the text at the requested size and sums the
// horizontal advances. The builtin argument is ignored; the face measures
// itself.
func (m *FaceMeasurer) MeasureTextWidth(text, _ string, size float64) (float64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("fonts: non-positive font size %v", size)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return 0, nil
	}

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      m.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    language.Latin,
		Language:  language.DefaultLanguage(),
	}
	output := m.shaper.Shape(input)

	var width fixed.Int26_6
	for _, g := range output.Glyphs {
		width += g.XAdvance
	}
	return float64(width) / 64.0, nil
}
