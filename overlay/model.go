// Package overlay implements the element-overlay editing flow: a cached
// manifest of normalized page elements, an append-only patch log replayed
// into overlay state, fuzzy re-binding of stale selections and a
// versioned optimistic-concurrency commit.
package overlay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgeline/forgeline/ir"
)

// Element is one manifest entry. BBox is in normalized [0,1] page
// coordinates with a top-left origin.
type Element struct {
	ElementID   string         `json:"element_id"`
	Text        string         `json:"text"`
	BBox        ir.BBox        `json:"bbox"`
	Style       map[string]any `json:"style,omitempty"`
	ElementType string         `json:"element_type"`
	ContentHash string         `json:"content_hash"`
}

// ManifestPage is one page's elements plus the geometry needed to map
// normalized coordinates back to page points.
type ManifestPage struct {
	PageIndex int       `json:"page_index"`
	WidthPt   float64   `json:"width_pt"`
	HeightPt  float64   `json:"height_pt"`
	Rotation  int       `json:"rotation"`
	Elements  []Element `json:"elements"`
}

// Manifest is the per-document element baseline. It is built once and
// cached; overlay state is always reconstructed against it.
type Manifest struct {
	DocID       string         `json:"doc_id"`
	PageCount   int            `json:"page_count"`
	Pages       []ManifestPage `json:"pages"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Page returns the manifest page with the given index, or nil.
func (m *Manifest) Page(pageIndex int) *ManifestPage {
	for i := range m.Pages {
		if m.Pages[i].PageIndex == pageIndex {
			return &m.Pages[i]
		}
	}
	return nil
}

// SelectionItem is the client's view of one element at selection time.
type SelectionItem struct {
	ElementID   string         `json:"element_id"`
	Text        string         `json:"text"`
	BBox        ir.BBox        `json:"bbox"`
	ContentHash string         `json:"content_hash,omitempty"`
	Style       map[string]any `json:"style,omitempty"`
	ElementType string         `json:"element_type,omitempty"`
}

// CustomEntry is an ad-hoc element with no manifest counterpart. Entries
// are upserted into a per-document side table and merged into every
// state rebuild.
type CustomEntry struct {
	ElementID         string         `json:"element_id"`
	PageIndex         int            `json:"page_index"`
	BBox              ir.BBox        `json:"bbox"`
	Text              string         `json:"text"`
	Style             map[string]any `json:"style,omitempty"`
	ElementType       string         `json:"element_type"`
	ResolvedElementID string         `json:"resolved_element_id,omitempty"`
	ContentHash       string         `json:"content_hash,omitempty"`
}

// PatchOp is one overlay edit. The set is closed: ReplaceElement and
// UpdateStyle.
type PatchOp interface {
	Element() string
	isPatchOp()
}

// ReplaceElement swaps an element's text, optionally overriding style.
type ReplaceElement struct {
	ElementID string
	OldText   string
	NewText   string
	Style     map[string]any
}

func (o ReplaceElement) Element() string { return o.ElementID }
func (o ReplaceElement) isPatchOp()      {}

// UpdateStyle merges style fields into an element without touching text.
type UpdateStyle struct {
	ElementID string
	Style     map[string]any
}

func (o UpdateStyle) Element() string { return o.ElementID }
func (o UpdateStyle) isPatchOp()      {}

type replaceElementJSON struct {
	Type      string         `json:"type"`
	ElementID string         `json:"element_id"`
	OldText   string         `json:"old_text,omitempty"`
	NewText   string         `json:"new_text"`
	Style     map[string]any `json:"style,omitempty"`
}

type updateStyleJSON struct {
	Type      string         `json:"type"`
	ElementID string         `json:"element_id"`
	Style     map[string]any `json:"style"`
}

func (o ReplaceElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(replaceElementJSON{
		Type:      "replace_element",
		ElementID: o.ElementID,
		OldText:   o.OldText,
		NewText:   o.NewText,
		Style:     o.Style,
	})
}

func (o UpdateStyle) MarshalJSON() ([]byte, error) {
	return json.Marshal(updateStyleJSON{
		Type:      "update_style",
		ElementID: o.ElementID,
		Style:     o.Style,
	})
}

// UnmarshalPatchOp decodes one op by its type tag.
func UnmarshalPatchOp(data []byte) (PatchOp, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("overlay: decode op: %w", err)
	}
	switch tag.Type {
	case "replace_element":
		var in replaceElementJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("overlay: decode replace_element: %w", err)
		}
		return ReplaceElement{
			ElementID: in.ElementID,
			OldText:   in.OldText,
			NewText:   in.NewText,
			Style:     in.Style,
		}, nil
	case "update_style":
		var in updateStyleJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("overlay: decode update_style: %w", err)
		}
		return UpdateStyle{ElementID: in.ElementID, Style: in.Style}, nil
	default:
		return nil, fmt.Errorf("overlay: unknown op type %q", tag.Type)
	}
}

// Ops is a decodable slice of overlay ops.
type Ops []PatchOp

func (o *Ops) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	ops := make(Ops, 0, len(raws))
	for _, raw := range raws {
		op, err := UnmarshalPatchOp(raw)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	*o = ops
	return nil
}

// PatchRecord is one committed overlay patchset. Immutable once appended.
type PatchRecord struct {
	PatchID   string    `json:"patch_id"`
	CreatedAt time.Time `json:"created_at"`
	Ops       Ops       `json:"ops"`
}

// StateEntry is one element's current overlay state.
type StateEntry struct {
	Text              string         `json:"text"`
	ContentHash       string         `json:"content_hash"`
	BBox              ir.BBox        `json:"bbox"`
	Style             map[string]any `json:"style"`
	ElementType       string         `json:"element_type"`
	BaseText          string         `json:"base_text"`
	ResolvedElementID string         `json:"resolved_element_id,omitempty"`
}

// Mask is one export mask covering an edited element's original pixels.
type Mask struct {
	ElementID string  `json:"element_id"`
	BBox      ir.BBox `json:"bbox"`
	Color     string  `json:"color"`
}

// PageState is the reconstructed overlay of one page.
type PageState struct {
	Primitives map[string]StateEntry `json:"primitives"`
	Masks      []Mask                `json:"masks"`
}

// ContentHash hashes an element's text content.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
