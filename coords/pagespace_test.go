package coords_test

import (
	"math"
	"testing"

	"github.com/forgeline/forgeline/coords"
	"github.com/forgeline/forgeline/ir"
)

func bboxNear(a, b ir.BBox, tol float64) bool {
	for i := 0; i < 4; i++ {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestNewPageSpaceRejectsOddRotation(t *testing.T) {
	if _, err := coords.NewPageSpace(612, 792, 45); err == nil {
		t.Error("Expected error for rotation 45")
	}
	if _, err := coords.NewPageSpace(612, 792, 450); err == nil {
		t.Error("Expected error for rotation 450")
	}
}

func TestNewPageSpaceNormalizesRotation(t *testing.T) {
	s, err := coords.NewPageSpace(612, 792, -90)
	if err != nil {
		t.Fatalf("NewPageSpace: %v", err)
	}
	if s.Rotation != 270 {
		t.Errorf("Expected rotation 270, got %d", s.Rotation)
	}
}

func TestRotatedSize(t *testing.T) {
	tests := []struct {
		rotation int
		wantW    float64
		wantH    float64
	}{
		{0, 612, 792},
		{90, 792, 612},
		{180, 612, 792},
		{270, 792, 612},
	}
	for _, tt := range tests {
		s, err := coords.NewPageSpace(612, 792, tt.rotation)
		if err != nil {
			t.Fatalf("NewPageSpace(%d): %v", tt.rotation, err)
		}
		w, h := s.RotatedSize()
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("Rotation %d: expected %gx%g, got %gx%g", tt.rotation, tt.wantW, tt.wantH, w, h)
		}
	}
}

func TestNormalizedToRectUnrotated(t *testing.T) {
	s, _ := coords.NewPageSpace(612, 792, 0)
	// Top strip of the displayed page lands at the top in bottom-up
	// page coordinates, so near y = height.
	got := s.NormalizedToRect(ir.BBox{0, 0, 1, 0.1})
	want := ir.BBox{0, 712.8, 612, 792}
	if !bboxNear(got, want, 1e-6) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestNormalizedFullPageAllRotations(t *testing.T) {
	for _, rotation := range []int{0, 90, 180, 270} {
		s, err := coords.NewPageSpace(612, 792, rotation)
		if err != nil {
			t.Fatalf("NewPageSpace(%d): %v", rotation, err)
		}
		got := s.NormalizedToRect(ir.BBox{0, 0, 1, 1})
		want := ir.BBox{0, 0, 612, 792}
		if !bboxNear(got, want, 1e-6) {
			t.Errorf("Rotation %d: expected full page %v, got %v", rotation, want, got)
		}
	}
}

func TestRoundTripAllRotations(t *testing.T) {
	boxes := []ir.BBox{
		{72, 100, 300, 114},
		{0, 0, 612, 792},
		{500, 700, 612, 792},
	}
	for _, rotation := range []int{0, 90, 180, 270} {
		s, err := coords.NewPageSpace(612, 792, rotation)
		if err != nil {
			t.Fatalf("NewPageSpace(%d): %v", rotation, err)
		}
		for _, box := range boxes {
			norm := s.RectToNormalized(box)
			back := s.NormalizedToRect(norm)
			if !bboxNear(back, box, 1e-3) {
				t.Errorf("Rotation %d: round trip of %v gave %v", rotation, box, back)
			}
		}
	}
}

func TestPixelMapping(t *testing.T) {
	norm := ir.BBox{0.25, 0.5, 0.75, 1}
	px := coords.NormalizedToPixels(norm, 800, 600)
	want := ir.BBox{200, 300, 600, 600}
	if !bboxNear(px, want, 1e-9) {
		t.Errorf("Expected %v, got %v", want, px)
	}
	back := coords.PixelsToNormalized(px, 800, 600)
	if !bboxNear(back, norm, 1e-9) {
		t.Errorf("Expected round trip %v, got %v", norm, back)
	}
}

func TestPixelsToNormalizedClamps(t *testing.T) {
	got := coords.PixelsToNormalized(ir.BBox{-10, 0, 900, 600}, 800, 600)
	if got[0] != 0 || got[2] != 1 {
		t.Errorf("Expected clamped x to [0,1], got %v", got)
	}
}

func TestMatrixInverseRoundTrip(t *testing.T) {
	m := coords.Translate(10, 20).Multiply(coords.Scale(2, 3)).Multiply(coords.Rotate(math.Pi / 2))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	p := coords.Point{X: 7, Y: -3}
	back := inv.Transform(m.Transform(p))
	if math.Abs(back.X-p.X) > 1e-9 || math.Abs(back.Y-p.Y) > 1e-9 {
		t.Errorf("Expected %v, got %v", p, back)
	}
}

func TestSingularMatrixInverse(t *testing.T) {
	if _, err := coords.Scale(0, 1).Inverse(); err == nil {
		t.Error("Expected error for singular matrix")
	}
}
