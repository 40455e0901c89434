package overlay_test

import (
	"testing"

	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/overlay"
)

func TestResolveSelectionExactMatch(t *testing.T) {
	elements := testManifest().Pages[0].Elements
	selection := []overlay.SelectionItem{
		{ElementID: "p0_t1", Text: "stale text", BBox: ir.BBox{0.9, 0.9, 1, 1}},
	}
	resolved := overlay.ResolveSelection(selection, elements, 0.25)
	if got, ok := resolved["p0_t1"]; !ok || got.ElementID != "p0_t1" {
		t.Errorf("Expected exact id match regardless of geometry, got %+v", resolved)
	}
}

func TestResolveSelectionFuzzyRebind(t *testing.T) {
	elements := testManifest().Pages[0].Elements
	// Stale id, but geometry and text still point at p0_t0.
	selection := []overlay.SelectionItem{
		{
			ElementID: "old-id",
			Text:      "Invoice total",
			BBox:      ir.BBox{0.11, 0.1, 0.41, 0.12},
		},
	}
	resolved := overlay.ResolveSelection(selection, elements, 0.25)
	got, ok := resolved["old-id"]
	if !ok {
		t.Fatal("Expected fuzzy rebinding to succeed")
	}
	if got.ElementID != "p0_t0" {
		t.Errorf("Expected rebind to p0_t0, got %s", got.ElementID)
	}
}

func TestResolveSelectionPrefersHigherOverlapOnTextTie(t *testing.T) {
	elements := []overlay.Element{
		{ElementID: "a", Text: "Total", BBox: ir.BBox{0.1, 0.1, 0.4, 0.12}},
		{ElementID: "b", Text: "Total", BBox: ir.BBox{0.1, 0.3, 0.4, 0.32}},
	}
	// Identical text on both candidates; geometry sits on b.
	selection := []overlay.SelectionItem{
		{ElementID: "old-id", Text: "Total", BBox: ir.BBox{0.1, 0.3, 0.4, 0.32}},
	}
	resolved := overlay.ResolveSelection(selection, elements, 0.25)
	got, ok := resolved["old-id"]
	if !ok {
		t.Fatal("Expected fuzzy rebinding to succeed")
	}
	if got.ElementID != "b" {
		t.Errorf("Expected higher-overlap candidate b, got %s", got.ElementID)
	}
}

func TestResolveSelectionBelowThreshold(t *testing.T) {
	elements := testManifest().Pages[0].Elements
	selection := []overlay.SelectionItem{
		{
			ElementID: "old-id",
			Text:      "something else entirely",
			BBox:      ir.BBox{0.8, 0.8, 0.9, 0.85},
		},
	}
	resolved := overlay.ResolveSelection(selection, elements, 0.25)
	if _, ok := resolved["old-id"]; ok {
		t.Error("Expected no rebinding for an unrelated selection")
	}
}

func TestResolveSelectionSkipsEmptyIDs(t *testing.T) {
	elements := testManifest().Pages[0].Elements
	selection := []overlay.SelectionItem{
		{ElementID: "", Text: "Invoice total", BBox: ir.BBox{0.1, 0.1, 0.4, 0.12}},
	}
	resolved := overlay.ResolveSelection(selection, elements, 0.25)
	if len(resolved) != 0 {
		t.Errorf("Expected empty ids skipped, got %v", resolved)
	}
}
