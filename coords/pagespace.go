package coords

import (
	"fmt"

	"github.com/forgeline/forgeline/ir"
)

// PageSpace maps between the three coordinate systems one page lives in:
// unrotated page points (bottom-up, as in document user space),
// normalized [0,1] coordinates over the page as displayed (top-left
// origin, rotation applied), and rendered pixels. Rotation is the page's
// display rotation in degrees.
type PageSpace struct {
	WidthPt  float64
	HeightPt float64
	Rotation int

	forward Matrix
	inverse Matrix
}

// NewPageSpace builds a page space. Only quarter-turn rotations exist in
// real documents; anything else is an error.
//
// Going from display space to page points, a point is first flipped
// against the rotated height (display space is top-down, user space is
// bottom-up), then inverse-rotated.
func NewPageSpace(widthPt, heightPt float64, rotation int) (PageSpace, error) {
	normalized := ((rotation % 360) + 360) % 360
	var invRot Matrix
	switch normalized {
	case 0:
		invRot = Identity()
	case 90:
		// (x, y) -> (w-y, x)
		invRot = Matrix{0, 1, -1, 0, widthPt, 0}
	case 180:
		// (x, y) -> (w-x, h-y)
		invRot = Matrix{-1, 0, 0, -1, widthPt, heightPt}
	case 270:
		// (x, y) -> (y, h-x)
		invRot = Matrix{0, -1, 1, 0, 0, heightPt}
	default:
		return PageSpace{}, fmt.Errorf("coords: unsupported rotation %d", rotation)
	}

	rotH := heightPt
	if normalized == 90 || normalized == 270 {
		rotH = widthPt
	}
	flip := Matrix{1, 0, 0, -1, 0, rotH}

	inverse := flip.Multiply(invRot)
	forward, err := inverse.Inverse()
	if err != nil {
		return PageSpace{}, err
	}
	return PageSpace{
		WidthPt:  widthPt,
		HeightPt: heightPt,
		Rotation: normalized,
		forward:  forward,
		inverse:  inverse,
	}, nil
}

// RotatedSize returns the page dimensions as displayed. Quarter turns
// swap width and height.
func (s PageSpace) RotatedSize() (float64, float64) {
	if s.Rotation == 90 || s.Rotation == 270 {
		return s.HeightPt, s.WidthPt
	}
	return s.WidthPt, s.HeightPt
}

// RectToNormalized maps a bbox in unrotated page points to normalized
// [0,1] coordinates over the displayed page. Corners are rotated
// individually and re-boxed, so the result is always an axis-aligned
// rect in display space.
func (s PageSpace) RectToNormalized(r ir.BBox) ir.BBox {
	rotW, rotH := s.RotatedSize()
	corners := rectCorners(r)
	for i, c := range corners {
		corners[i] = s.forward.Transform(c)
	}
	box := boundingBox(corners)
	return ir.BBox{
		clamp01(box[0] / rotW),
		clamp01(box[1] / rotH),
		clamp01(box[2] / rotW),
		clamp01(box[3] / rotH),
	}
}

// NormalizedToRect maps a normalized display-space bbox back to
// unrotated page points.
func (s PageSpace) NormalizedToRect(n ir.BBox) ir.BBox {
	rotW, rotH := s.RotatedSize()
	scaled := ir.BBox{n[0] * rotW, n[1] * rotH, n[2] * rotW, n[3] * rotH}
	corners := rectCorners(scaled)
	for i, c := range corners {
		corners[i] = s.inverse.Transform(c)
	}
	return boundingBox(corners)
}

// NormalizedToPixels scales a normalized bbox to a raster of the given
// pixel dimensions.
func NormalizedToPixels(n ir.BBox, widthPx, heightPx float64) ir.BBox {
	return ir.BBox{n[0] * widthPx, n[1] * heightPx, n[2] * widthPx, n[3] * heightPx}
}

// PixelsToNormalized maps a pixel bbox back to normalized coordinates.
func PixelsToNormalized(px ir.BBox, widthPx, heightPx float64) ir.BBox {
	return ir.BBox{
		clamp01(px[0] / widthPx),
		clamp01(px[1] / heightPx),
		clamp01(px[2] / widthPx),
		clamp01(px[3] / heightPx),
	}
}

func rectCorners(r ir.BBox) [4]Point {
	return [4]Point{
		{r[0], r[1]},
		{r[2], r[1]},
		{r[2], r[3]},
		{r[0], r[3]},
	}
}

func boundingBox(corners [4]Point) ir.BBox {
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX = min(minX, c.X)
		minY = min(minY, c.Y)
		maxX = max(maxX, c.X)
		maxY = max(maxY, c.Y)
	}
	return ir.BBox{minX, minY, maxX, maxY}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
