package overlay_test

import (
	"reflect"
	"testing"

	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/overlay"
)

func testManifest() *overlay.Manifest {
	return &overlay.Manifest{
		DocID:     "doc-1",
		PageCount: 1,
		Pages: []overlay.ManifestPage{
			{
				PageIndex: 0,
				WidthPt:   612,
				HeightPt:  792,
				Elements: []overlay.Element{
					{
						ElementID:   "p0_t0",
						Text:        "Invoice total",
						BBox:        ir.BBox{0.1, 0.1, 0.4, 0.12},
						Style:       map[string]any{"font": "Helvetica", "size_pt": 12.0, "color": "#000000"},
						ElementType: "text",
						ContentHash: overlay.ContentHash("Invoice total"),
					},
					{
						ElementID:   "p0_t1",
						Text:        "Due date",
						BBox:        ir.BBox{0.1, 0.2, 0.3, 0.22},
						Style:       map[string]any{"font": "Helvetica", "size_pt": 10.0, "color": "#000000"},
						ElementType: "text",
						ContentHash: overlay.ContentHash("Due date"),
					},
				},
			},
		},
	}
}

func TestBuildStateBaseline(t *testing.T) {
	state := overlay.BuildState(testManifest(), nil, nil, 0.01)
	page, ok := state[0]
	if !ok {
		t.Fatal("Expected page 0 state")
	}
	if len(page.Primitives) != 2 {
		t.Fatalf("Expected 2 primitives, got %d", len(page.Primitives))
	}
	entry := page.Primitives["p0_t0"]
	if entry.Text != "Invoice total" || entry.BaseText != "Invoice total" {
		t.Errorf("Expected baseline text, got %+v", entry)
	}
	if entry.ContentHash != overlay.ContentHash("Invoice total") {
		t.Errorf("Expected baseline hash, got %s", entry.ContentHash)
	}
	if len(page.Masks) != 0 {
		t.Errorf("Expected no masks for untouched page, got %d", len(page.Masks))
	}
}

func TestBuildStateReplaceEmitsMask(t *testing.T) {
	records := []overlay.PatchRecord{
		{
			PatchID: "r1",
			Ops: overlay.Ops{
				overlay.ReplaceElement{ElementID: "p0_t0", NewText: "Amount due"},
			},
		},
	}
	state := overlay.BuildState(testManifest(), records, nil, 0.01)
	page := state[0]

	entry := page.Primitives["p0_t0"]
	if entry.Text != "Amount due" {
		t.Errorf("Expected replaced text, got %q", entry.Text)
	}
	if entry.ContentHash != overlay.ContentHash("Amount due") {
		t.Errorf("Expected hash of new text, got %s", entry.ContentHash)
	}
	if entry.BaseText != "Invoice total" {
		t.Errorf("Expected base text retained, got %q", entry.BaseText)
	}

	if len(page.Masks) != 1 {
		t.Fatalf("Expected 1 mask, got %d", len(page.Masks))
	}
	mask := page.Masks[0]
	want := ir.BBox{0.09, 0.09, 0.41, 0.13}
	if mask.ElementID != "p0_t0" || mask.BBox != want {
		t.Errorf("Expected padded mask %v for p0_t0, got %+v", want, mask)
	}
	if mask.Color != "#ffffff" {
		t.Errorf("Expected white mask, got %s", mask.Color)
	}

	// Untouched sibling keeps its baseline and gets no mask.
	if page.Primitives["p0_t1"].Text != "Due date" {
		t.Errorf("Expected sibling untouched, got %q", page.Primitives["p0_t1"].Text)
	}
}

func TestBuildStateMasksKeepFirstEditOrder(t *testing.T) {
	// p0_t1 is edited first; its mask must come first even though p0_t0
	// sorts lower. The second edit of p0_t1 must not reorder or
	// duplicate its mask.
	records := []overlay.PatchRecord{
		{
			PatchID: "r1",
			Ops: overlay.Ops{
				overlay.ReplaceElement{ElementID: "p0_t1", NewText: "Paid date"},
			},
		},
		{
			PatchID: "r2",
			Ops: overlay.Ops{
				overlay.ReplaceElement{ElementID: "p0_t0", NewText: "Amount due"},
				overlay.ReplaceElement{ElementID: "p0_t1", NewText: "Void date"},
			},
		},
	}
	state := overlay.BuildState(testManifest(), records, nil, 0.01)
	page := state[0]

	if len(page.Masks) != 2 {
		t.Fatalf("Expected 2 masks, got %d", len(page.Masks))
	}
	if page.Masks[0].ElementID != "p0_t1" || page.Masks[1].ElementID != "p0_t0" {
		t.Errorf("Expected first-edit order [p0_t1 p0_t0], got [%s %s]",
			page.Masks[0].ElementID, page.Masks[1].ElementID)
	}
}

func TestBuildStateMaskClampsToUnitSquare(t *testing.T) {
	m := testManifest()
	m.Pages[0].Elements[0].BBox = ir.BBox{0, 0, 1, 0.05}
	records := []overlay.PatchRecord{
		{Ops: overlay.Ops{overlay.ReplaceElement{ElementID: "p0_t0", NewText: "X"}}},
	}
	state := overlay.BuildState(m, records, nil, 0.01)
	mask := state[0].Masks[0]
	want := ir.BBox{0, 0, 1, 0.06}
	if mask.BBox != want {
		t.Errorf("Expected clamped mask %v, got %v", want, mask.BBox)
	}
}

func TestBuildStateUpdateStyleMergesWithoutMask(t *testing.T) {
	records := []overlay.PatchRecord{
		{
			Ops: overlay.Ops{
				overlay.UpdateStyle{ElementID: "p0_t1", Style: map[string]any{"color": "#ff0000"}},
			},
		},
	}
	state := overlay.BuildState(testManifest(), records, nil, 0.01)
	page := state[0]

	entry := page.Primitives["p0_t1"]
	if entry.Style["color"] != "#ff0000" {
		t.Errorf("Expected merged color, got %v", entry.Style["color"])
	}
	if entry.Style["font"] != "Helvetica" {
		t.Errorf("Expected base style retained, got %v", entry.Style["font"])
	}
	if entry.Text != "Due date" {
		t.Errorf("Expected text unchanged, got %q", entry.Text)
	}
	if len(page.Masks) != 0 {
		t.Errorf("Expected no mask for style-only edit, got %d", len(page.Masks))
	}
}

func TestBuildStateIgnoresUnknownTargets(t *testing.T) {
	records := []overlay.PatchRecord{
		{Ops: overlay.Ops{overlay.ReplaceElement{ElementID: "ghost", NewText: "X"}}},
	}
	state := overlay.BuildState(testManifest(), records, nil, 0.01)
	if len(state[0].Masks) != 0 {
		t.Errorf("Expected unknown target ignored, got masks %v", state[0].Masks)
	}
}

func TestBuildStateMergesCustomEntries(t *testing.T) {
	custom := map[string]overlay.CustomEntry{
		"note-1": {
			ElementID:   "note-1",
			PageIndex:   0,
			BBox:        ir.BBox{0.5, 0.5, 0.7, 0.52},
			Text:        "Approved",
			ElementType: "text",
		},
	}
	records := []overlay.PatchRecord{
		{Ops: overlay.Ops{overlay.ReplaceElement{ElementID: "note-1", NewText: "Rejected"}}},
	}
	state := overlay.BuildState(testManifest(), records, custom, 0.01)
	page := state[0]

	entry, ok := page.Primitives["note-1"]
	if !ok {
		t.Fatal("Expected custom entry in state")
	}
	if entry.Text != "Rejected" || entry.BaseText != "Approved" {
		t.Errorf("Expected replay over custom base, got %+v", entry)
	}
	if len(page.Masks) != 1 || page.Masks[0].ElementID != "note-1" {
		t.Errorf("Expected mask for custom entry, got %v", page.Masks)
	}
}

func TestBuildStateIsPure(t *testing.T) {
	records := []overlay.PatchRecord{
		{Ops: overlay.Ops{
			overlay.ReplaceElement{ElementID: "p0_t0", NewText: "Amount due"},
			overlay.UpdateStyle{ElementID: "p0_t1", Style: map[string]any{"bold": true}},
		}},
	}
	custom := map[string]overlay.CustomEntry{
		"note-1": {ElementID: "note-1", PageIndex: 0, Text: "Approved"},
	}
	first := overlay.BuildState(testManifest(), records, custom, 0.01)
	second := overlay.BuildState(testManifest(), records, custom, 0.01)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical state from identical inputs")
	}
}
