package spatial_test

import (
	"testing"

	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/ir/spatial"
)

func pageWith(prims ...ir.Primitive) *ir.PageIR {
	return &ir.PageIR{
		DocID:      "doc-1",
		PageIndex:  0,
		WidthPt:    612,
		HeightPt:   792,
		Primitives: prims,
	}
}

func textPrim(id string, z int, bbox ir.BBox) ir.Primitive {
	return ir.Primitive{
		ID:        id,
		Kind:      ir.KindText,
		BBox:      bbox,
		ZIndex:    z,
		Text:      id,
		TextStyle: &ir.TextStyle{Size: 12},
	}
}

func TestHitTestPointClosestCenterFirst(t *testing.T) {
	a := textPrim("A", 0, ir.BBox{100, 100, 200, 200}) // center (150,150)
	b := textPrim("B", 1, ir.BBox{150, 150, 250, 250}) // center (200,200)
	idx := spatial.Build(pageWith(a, b), 96)

	got := idx.HitTestPoint(160, 160)
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "A" {
		t.Errorf("Expected A (closer center) first, got %s", got[0].ID)
	}
	if got[0].Score >= got[1].Score {
		t.Errorf("Expected ascending scores, got %v then %v", got[0].Score, got[1].Score)
	}
}

func TestHitTestPointTieFavorsHigherZ(t *testing.T) {
	// Identical boxes, identical centers: the one drawn later wins.
	a := textPrim("under", 0, ir.BBox{100, 100, 200, 200})
	b := textPrim("over", 1, ir.BBox{100, 100, 200, 200})
	idx := spatial.Build(pageWith(a, b), 96)

	got := idx.HitTestPoint(150, 150)
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "over" {
		t.Errorf("Expected higher z_index first on tied distance, got %s", got[0].ID)
	}
}

func TestHitTestRectTieFavorsLowerZ(t *testing.T) {
	a := textPrim("under", 0, ir.BBox{100, 100, 200, 200})
	b := textPrim("over", 1, ir.BBox{100, 100, 200, 200})
	idx := spatial.Build(pageWith(a, b), 96)

	got := idx.HitTestRect(90, 90, 210, 210)
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "under" {
		t.Errorf("Expected lower z_index first on tied area, got %s", got[0].ID)
	}
}

func TestHitTestRectOrdersByIntersectionArea(t *testing.T) {
	big := textPrim("big", 0, ir.BBox{0, 0, 300, 300})
	small := textPrim("small", 1, ir.BBox{100, 100, 150, 150})
	outside := textPrim("outside", 2, ir.BBox{500, 700, 600, 790})
	idx := spatial.Build(pageWith(big, small, outside), 96)

	got := idx.HitTestRect(50, 50, 250, 250)
	if len(got) != 2 {
		t.Fatalf("Expected outside box discarded, got %d candidates", len(got))
	}
	if got[0].ID != "big" || got[1].ID != "small" {
		t.Errorf("Expected [big small], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestHitTestRectSwappedCorners(t *testing.T) {
	a := textPrim("A", 0, ir.BBox{100, 100, 200, 200})
	idx := spatial.Build(pageWith(a), 96)

	got := idx.HitTestRect(200, 200, 100, 100)
	if len(got) != 1 || got[0].ID != "A" {
		t.Fatalf("Expected rect query to normalize corner order, got %v", got)
	}
}

func TestSpanningPrimitiveFoundFromEveryCell(t *testing.T) {
	// A rule line spanning the page width sits in several grid cells.
	line := ir.Primitive{
		ID:        "rule",
		Kind:      ir.KindPath,
		BBox:      ir.BBox{10, 400, 600, 402},
		ZIndex:    0,
		PathStyle: &ir.PathStyle{StrokeWidth: 1},
	}
	idx := spatial.Build(pageWith(line), 96)

	for _, x := range []float64{20, 300, 590} {
		got := idx.HitTestPoint(x, 401)
		if len(got) != 1 || got[0].ID != "rule" {
			t.Errorf("Expected rule line at x=%v, got %v", x, got)
		}
		if got[0].Kind != ir.KindPath {
			t.Errorf("Expected kind path, got %q", got[0].Kind)
		}
	}
}

func TestHitTestEmptyResult(t *testing.T) {
	a := textPrim("A", 0, ir.BBox{100, 100, 200, 200})
	idx := spatial.Build(pageWith(a), 96)

	if got := idx.HitTestPoint(600, 780); len(got) != 0 {
		t.Errorf("Expected no candidates far from the box, got %v", got)
	}
	if got := idx.HitTestRect(500, 700, 600, 780); len(got) != 0 {
		t.Errorf("Expected no rect candidates, got %v", got)
	}
}
