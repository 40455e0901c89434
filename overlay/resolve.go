package overlay

import "github.com/forgeline/forgeline/ir"

// bboxIoU is intersection-over-union of two normalized rects. Degenerate
// or disjoint rects score 0.
func bboxIoU(a, b ir.BBox) float64 {
	interX0 := max(a[0], b[0])
	interY0 := max(a[1], b[1])
	interX1 := min(a[2], b[2])
	interY1 := min(a[3], b[3])
	interW := max(0, interX1-interX0)
	interH := max(0, interY1-interY0)
	inter := interW * interH
	if inter <= 0 {
		return 0
	}
	areaA := max(0, a[2]-a[0]) * max(0, a[3]-a[1])
	areaB := max(0, b[2]-b[0]) * max(0, b[3]-b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// textSimilarity is the classic sequence-matcher ratio: twice the total
// length of the matching blocks over the combined length. Two empty
// strings are identical; one empty string matches nothing.
func textSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	matched := matchingTotal(ra, rb, 0, len(ra), 0, len(rb))
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingTotal sums the longest matching block in [alo,ahi)x[blo,bhi)
// plus, recursively, the matches to its left and right.
func matchingTotal(a, b []rune, alo, ahi, blo, bhi int) int {
	bestA, bestB, bestSize := longestMatch(a, b, alo, ahi, blo, bhi)
	if bestSize == 0 {
		return 0
	}
	total := bestSize
	total += matchingTotal(a, b, alo, bestA, blo, bestB)
	total += matchingTotal(a, b, bestA+bestSize, ahi, bestB+bestSize, bhi)
	return total
}

func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (int, int, int) {
	positions := make(map[rune][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		positions[b[j]] = append(positions[b[j]], j)
	}

	bestA, bestB, bestSize := alo, blo, 0
	// sizes[j] is the length of the match ending at a[i-1], b[j-1].
	sizes := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range positions[a[i]] {
			size := sizes[j-1] + 1
			next[j] = size
			if size > bestSize {
				bestA, bestB, bestSize = i-size+1, j-size+1, size
			}
		}
		sizes = next
	}
	return bestA, bestB, bestSize
}

// ResolveSelection maps each selection item to a manifest element. An
// exact id match wins; otherwise the best candidate scoring
// 0.7*IoU + 0.3*similarity at or above the threshold is re-bound. Items
// that resolve to nothing are left out of the result.
func ResolveSelection(selection []SelectionItem, elements []Element, threshold float64) map[string]Element {
	byID := make(map[string]Element, len(elements))
	for _, el := range elements {
		byID[el.ElementID] = el
	}

	resolved := make(map[string]Element)
	for _, item := range selection {
		if item.ElementID == "" {
			continue
		}
		if el, ok := byID[item.ElementID]; ok {
			resolved[item.ElementID] = el
			continue
		}
		bestScore := 0.0
		var best *Element
		for i := range elements {
			iou := bboxIoU(item.BBox, elements[i].BBox)
			similarity := textSimilarity(item.Text, elements[i].Text)
			score := iou*0.7 + similarity*0.3
			if score > bestScore {
				bestScore = score
				best = &elements[i]
			}
		}
		if best != nil && bestScore >= threshold {
			resolved[item.ElementID] = *best
		}
	}
	return resolved
}
