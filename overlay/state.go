package overlay

import (
	"math"

	"github.com/forgeline/forgeline/ir"
)

// DefaultMaskPadding is the normalized margin added around an edited
// element's bbox when emitting its export mask.
const DefaultMaskPadding = 0.01

const maskColor = "#ffffff"

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func buildMask(elementID string, bbox ir.BBox, padding float64) Mask {
	return Mask{
		ElementID: elementID,
		BBox: ir.BBox{
			round4(math.Max(0, bbox[0]-padding)),
			round4(math.Max(0, bbox[1]-padding)),
			round4(math.Min(1, bbox[2]+padding)),
			round4(math.Min(1, bbox[3]+padding)),
		},
		Color: maskColor,
	}
}

func mergeStyle(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

type elementMeta struct {
	pageIndex int
	bbox      ir.BBox
}

// BuildState replays the full patch log over the manifest baseline plus
// custom entries. It is a pure function: the same inputs always yield
// the same element map and the same masks. Masks are emitted only for
// elements whose current text differs from their baseline, in the order
// the elements were first edited.
func BuildState(manifest *Manifest, records []PatchRecord, custom map[string]CustomEntry, maskPadding float64) map[int]PageState {
	state := make(map[int]PageState)
	lookup := make(map[string]elementMeta)

	for _, page := range manifest.Pages {
		primitives := make(map[string]StateEntry, len(page.Elements))
		for _, el := range page.Elements {
			if el.ElementID == "" {
				continue
			}
			primitives[el.ElementID] = StateEntry{
				Text:        el.Text,
				ContentHash: ContentHash(el.Text),
				BBox:        el.BBox,
				Style:       el.Style,
				ElementType: el.ElementType,
				BaseText:    el.Text,
			}
			lookup[el.ElementID] = elementMeta{pageIndex: page.PageIndex, bbox: el.BBox}
		}
		state[page.PageIndex] = PageState{Primitives: primitives, Masks: nil}
	}

	for id, entry := range custom {
		pageState, ok := state[entry.PageIndex]
		if !ok {
			pageState = PageState{Primitives: make(map[string]StateEntry)}
		}
		elementType := entry.ElementType
		if elementType == "" {
			elementType = "text"
		}
		pageState.Primitives[id] = StateEntry{
			Text:              entry.Text,
			ContentHash:       ContentHash(entry.Text),
			BBox:              entry.BBox,
			Style:             entry.Style,
			ElementType:       elementType,
			BaseText:          entry.Text,
			ResolvedElementID: entry.ResolvedElementID,
		}
		lookup[id] = elementMeta{pageIndex: entry.PageIndex, bbox: entry.BBox}
		state[entry.PageIndex] = pageState
	}

	// One mask per element (repeated edits do not stack duplicates),
	// remembered in first-edit order.
	type maskAccum struct {
		order []string
		byID  map[string]Mask
	}
	masksByPage := make(map[int]*maskAccum)

	for _, record := range records {
		for _, op := range record.Ops {
			meta, ok := lookup[op.Element()]
			if !ok {
				continue
			}
			pageState, ok := state[meta.pageIndex]
			if !ok {
				continue
			}
			current, ok := pageState.Primitives[op.Element()]
			if !ok {
				continue
			}
			switch o := op.(type) {
			case ReplaceElement:
				current.Text = o.NewText
				current.ContentHash = ContentHash(o.NewText)
				if len(o.Style) > 0 {
					current.Style = mergeStyle(current.Style, o.Style)
				}
			case UpdateStyle:
				current.Style = mergeStyle(current.Style, o.Style)
			}
			pageState.Primitives[op.Element()] = current
			if current.Text != current.BaseText {
				acc, ok := masksByPage[meta.pageIndex]
				if !ok {
					acc = &maskAccum{byID: make(map[string]Mask)}
					masksByPage[meta.pageIndex] = acc
				}
				if _, seen := acc.byID[op.Element()]; !seen {
					acc.order = append(acc.order, op.Element())
				}
				acc.byID[op.Element()] = buildMask(op.Element(), meta.bbox, maskPadding)
			}
		}
	}

	for pageIndex, acc := range masksByPage {
		pageState, ok := state[pageIndex]
		if !ok {
			continue
		}
		for _, id := range acc.order {
			pageState.Masks = append(pageState.Masks, acc.byID[id])
		}
		state[pageIndex] = pageState
	}

	return state
}
