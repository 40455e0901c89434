package engine_test

import (
	"errors"
	"testing"

	"github.com/forgeline/forgeline/engine"
	"github.com/forgeline/forgeline/ir"
)

type stubExtractor struct {
	info     engine.PageInfo
	spans    []ir.RawSpan
	drawings []ir.RawDrawing
	err      error
}

func (s *stubExtractor) PageCount() int { return 1 }

func (s *stubExtractor) PageInfo(int) (engine.PageInfo, error) {
	return s.info, s.err
}

func (s *stubExtractor) ExtractTextSpans(int) ([]ir.RawSpan, error) {
	return s.spans, s.err
}

func (s *stubExtractor) ExtractDrawings(int) ([]ir.RawDrawing, error) {
	return s.drawings, s.err
}

func TestExtractionAssemblesPage(t *testing.T) {
	ex := &stubExtractor{
		info: engine.PageInfo{WidthPt: 612, HeightPt: 792, Rotation: 90},
		spans: []ir.RawSpan{
			{Text: "Invoice total", Font: "helv", Size: 12, BBox: ir.BBox{72, 100, 300, 114}},
		},
		drawings: []ir.RawDrawing{
			{BBox: ir.BBox{50, 400, 550, 402}, StrokeWidth: 1},
		},
	}

	raw, err := engine.Extraction(ex, 0)
	if err != nil {
		t.Fatalf("Extraction: %v", err)
	}
	if raw.WidthPt != 612 || raw.HeightPt != 792 || raw.Rotation != 90 {
		t.Errorf("Expected page geometry 612x792@90, got %+v", raw)
	}
	if len(raw.Spans) != 1 || raw.Spans[0].Text != "Invoice total" {
		t.Errorf("Expected one span, got %v", raw.Spans)
	}
	if len(raw.Drawings) != 1 {
		t.Errorf("Expected one drawing, got %v", raw.Drawings)
	}

	page := ir.NormalizePage("doc-1", 0, raw)
	if len(page.Primitives) != 2 {
		t.Errorf("Expected 2 primitives after normalization, got %d", len(page.Primitives))
	}
}

func TestExtractionPropagatesErrors(t *testing.T) {
	wantErr := errors.New("decode failed")
	if _, err := engine.Extraction(&stubExtractor{err: wantErr}, 0); !errors.Is(err, wantErr) {
		t.Errorf("Expected %v, got %v", wantErr, err)
	}
}
