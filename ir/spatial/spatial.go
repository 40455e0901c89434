// Package spatial provides a grid index over a page's primitives for
// point and rectangle hit-testing.
package spatial

import (
	"math"
	"sort"

	"github.com/forgeline/forgeline/ir"
)

// DefaultCellSizePt is the grid cell size used when Build is given a
// non-positive one.
const DefaultCellSizePt = 96.0

// Candidate is one hit-test result. Score is squared center distance for
// point queries and intersection area for rect queries.
type Candidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	BBox  ir.BBox `json:"bbox"`
	Kind  ir.Kind `json:"kind"`
}

type cell struct{ x, y int }

// Index buckets primitive positions into fixed-size grid cells. A bbox
// spanning several cells is inserted into each of them.
type Index struct {
	page     *ir.PageIR
	cellSize float64
	cols     int
	rows     int
	bins     map[cell][]int
}

// Build indexes the page. The page must outlive the index; hit tests read
// primitive data through it.
func Build(page *ir.PageIR, cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSizePt
	}
	maxX := math.Max(page.WidthPt, 1.0)
	maxY := math.Max(page.HeightPt, 1.0)
	cols := int(math.Ceil(maxX / cellSize))
	if cols < 1 {
		cols = 1
	}
	rows := int(math.Ceil(maxY / cellSize))
	if rows < 1 {
		rows = 1
	}

	idx := &Index{
		page:     page,
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		bins:     make(map[cell][]int),
	}
	for i, prim := range page.Primitives {
		startX := clamp(int(prim.BBox[0]/cellSize), 0, cols-1)
		endX := clamp(int(prim.BBox[2]/cellSize), 0, cols-1)
		startY := clamp(int(prim.BBox[1]/cellSize), 0, rows-1)
		endY := clamp(int(prim.BBox[3]/cellSize), 0, rows-1)
		for cx := startX; cx <= endX; cx++ {
			for cy := startY; cy <= endY; cy++ {
				c := cell{cx, cy}
				idx.bins[c] = append(idx.bins[c], i)
			}
		}
	}
	return idx
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// candidatesForPoint gathers the 3x3 cell neighborhood around the query
// point, deduplicated in first-seen order.
func (idx *Index) candidatesForPoint(x, y float64) []int {
	cx := int(math.Floor(x / idx.cellSize))
	cy := int(math.Floor(y / idx.cellSize))
	seen := make(map[int]bool)
	var out []int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, i := range idx.bins[cell{cx + dx, cy + dy}] {
				if !seen[i] {
					seen[i] = true
					out = append(out, i)
				}
			}
		}
	}
	return out
}

func (idx *Index) candidatesForRect(x0, y0, x1, y1 float64) []int {
	startX := int(math.Floor(math.Min(x0, x1) / idx.cellSize))
	endX := int(math.Floor(math.Max(x0, x1) / idx.cellSize))
	startY := int(math.Floor(math.Min(y0, y1) / idx.cellSize))
	endY := int(math.Floor(math.Max(y0, y1) / idx.cellSize))
	seen := make(map[int]bool)
	var out []int
	for cx := startX; cx <= endX; cx++ {
		for cy := startY; cy <= endY; cy++ {
			for _, i := range idx.bins[cell{cx, cy}] {
				if !seen[i] {
					seen[i] = true
					out = append(out, i)
				}
			}
		}
	}
	return out
}

// HitTestPoint returns candidates near (x, y) ordered by squared distance
// from the point to each bbox center, closest first. On tied distance the
// primitive drawn later (higher z_index) wins.
func (idx *Index) HitTestPoint(x, y float64) []Candidate {
	indices := idx.candidatesForPoint(x, y)
	scored := make([]scoredCandidate, 0, len(indices))
	for _, i := range indices {
		prim := idx.page.Primitives[i]
		cx := (prim.BBox[0] + prim.BBox[2]) / 2
		cy := (prim.BBox[1] + prim.BBox[3]) / 2
		score := (x-cx)*(x-cx) + (y-cy)*(y-cy)
		scored = append(scored, scoredCandidate{
			Candidate: Candidate{ID: prim.ID, Score: score, BBox: prim.BBox, Kind: prim.Kind},
			z:         prim.ZIndex,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score < scored[j].Score
		}
		return scored[i].z > scored[j].z
	})
	return project(scored)
}

// HitTestRect returns candidates intersecting the query rect ordered by
// intersection area, largest first. On tied area the primitive drawn
// earlier (lower z_index) wins; note this is the opposite tie-break
// direction from HitTestPoint.
func (idx *Index) HitTestRect(x0, y0, x1, y1 float64) []Candidate {
	rect := ir.BBox{
		math.Min(x0, x1), math.Min(y0, y1),
		math.Max(x0, x1), math.Max(y0, y1),
	}
	indices := idx.candidatesForRect(x0, y0, x1, y1)
	scored := make([]scoredCandidate, 0, len(indices))
	for _, i := range indices {
		prim := idx.page.Primitives[i]
		area := intersectionArea(rect, prim.BBox)
		if area <= 0 {
			continue
		}
		scored = append(scored, scoredCandidate{
			Candidate: Candidate{ID: prim.ID, Score: area, BBox: prim.BBox, Kind: prim.Kind},
			z:         prim.ZIndex,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].z < scored[j].z
	})
	return project(scored)
}

type scoredCandidate struct {
	Candidate
	z int
}

func project(scored []scoredCandidate) []Candidate {
	out := make([]Candidate, len(scored))
	for i, s := range scored {
		out[i] = s.Candidate
	}
	return out
}

func intersectionArea(a, b ir.BBox) float64 {
	left := math.Max(a[0], b[0])
	top := math.Max(a[1], b[1])
	right := math.Min(a[2], b[2])
	bottom := math.Min(a[3], b[3])
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}
