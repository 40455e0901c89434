package overlay

import (
	"math"
	"testing"

	"github.com/forgeline/forgeline/ir"
)

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "Invoice total", "Invoice total", 1},
		{"both empty", "", "", 1},
		{"one empty", "Invoice", "", 0},
		{"disjoint", "abc", "xyz", 0},
		{"partial", "abcd", "bcde", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTextSimilaritySymmetricRange(t *testing.T) {
	pairs := [][2]string{
		{"Invoice total", "Invoice totals"},
		{"Grand Total", "total"},
		{"abc", "cab"},
	}
	for _, pair := range pairs {
		ab := textSimilarity(pair[0], pair[1])
		if ab < 0 || ab > 1 {
			t.Errorf("Similarity of %q/%q out of range: %v", pair[0], pair[1], ab)
		}
	}
}

func TestBBoxIoU(t *testing.T) {
	a := ir.BBox{0, 0, 0.5, 0.5}
	if got := bboxIoU(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected self IoU 1, got %v", got)
	}
	if got := bboxIoU(a, ir.BBox{0.6, 0.6, 1, 1}); got != 0 {
		t.Errorf("Expected disjoint IoU 0, got %v", got)
	}
	// Half-overlapping equal squares: inter 0.125, union 0.375.
	got := bboxIoU(a, ir.BBox{0.25, 0, 0.75, 0.5})
	if math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("Expected IoU 1/3, got %v", got)
	}
	if got := bboxIoU(ir.BBox{0.2, 0.2, 0.2, 0.4}, a); got != 0 {
		t.Errorf("Expected degenerate rect IoU 0, got %v", got)
	}
}
