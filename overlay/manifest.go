package overlay

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/forgeline/forgeline/coords"
	"github.com/forgeline/forgeline/engine"
	"github.com/forgeline/forgeline/storage"
)

func manifestKey(docID string) string {
	return fmt.Sprintf("docs/%s/forge/manifest.json", docID)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// colorToHex renders an extractor's packed RGB int as #rrggbb. Unknown
// colors default to black.
func colorToHex(color *int) string {
	if color == nil {
		return "#000000"
	}
	v := *color
	return fmt.Sprintf("#%02x%02x%02x", (v>>16)&0xff, (v>>8)&0xff, v&0xff)
}

// BuildManifest extracts every page's text spans and freezes them into
// the element baseline: trimmed text, normalized display-space bboxes,
// deterministic ordering and ids, content hash per element.
func BuildManifest(docID string, ex engine.Extractor) (*Manifest, error) {
	pageCount := ex.PageCount()
	pages := make([]ManifestPage, 0, pageCount)

	for pageIndex := 0; pageIndex < pageCount; pageIndex++ {
		info, err := ex.PageInfo(pageIndex)
		if err != nil {
			return nil, fmt.Errorf("overlay: page %d info: %w", pageIndex, err)
		}
		space, err := coords.NewPageSpace(info.WidthPt, info.HeightPt, info.Rotation)
		if err != nil {
			return nil, fmt.Errorf("overlay: page %d: %w", pageIndex, err)
		}
		spans, err := ex.ExtractTextSpans(pageIndex)
		if err != nil {
			return nil, fmt.Errorf("overlay: page %d spans: %w", pageIndex, err)
		}

		type staged struct {
			text  string
			bbox  [4]float64
			font  string
			size  float64
			color string
		}
		items := make([]staged, 0, len(spans))
		for _, span := range spans {
			text := strings.TrimSpace(span.Text)
			if text == "" {
				continue
			}
			norm := space.RectToNormalized(span.BBox)
			items = append(items, staged{
				text:  text,
				bbox:  [4]float64{round3(norm[0]), round3(norm[1]), round3(norm[2]), round3(norm[3])},
				font:  span.Font,
				size:  round3(span.Size),
				color: colorToHex(span.Color),
			})
		}

		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i], items[j]
			if a.bbox[1] != b.bbox[1] {
				return a.bbox[1] < b.bbox[1]
			}
			if a.bbox[0] != b.bbox[0] {
				return a.bbox[0] < b.bbox[0]
			}
			if a.bbox[3] != b.bbox[3] {
				return a.bbox[3] < b.bbox[3]
			}
			if a.bbox[2] != b.bbox[2] {
				return a.bbox[2] < b.bbox[2]
			}
			return a.text < b.text
		})

		elements := make([]Element, 0, len(items))
		for idx, item := range items {
			elements = append(elements, Element{
				ElementID: fmt.Sprintf("p%d_t%d", pageIndex, idx),
				Text:      item.text,
				BBox:      item.bbox,
				Style: map[string]any{
					"font":    item.font,
					"size_pt": item.size,
					"color":   item.color,
				},
				ElementType: "text",
				ContentHash: ContentHash(item.text),
			})
		}

		pages = append(pages, ManifestPage{
			PageIndex: pageIndex,
			WidthPt:   round3(info.WidthPt),
			HeightPt:  round3(info.HeightPt),
			Rotation:  info.Rotation,
			Elements:  elements,
		})
	}

	return &Manifest{
		DocID:       docID,
		PageCount:   len(pages),
		Pages:       pages,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// LoadManifest reads a cached manifest, or nil when none exists.
func LoadManifest(store storage.Store, docID string) (*Manifest, error) {
	data, err := store.Get(manifestKey(docID))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := storage.DecodeJSON(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveManifest caches a manifest.
func SaveManifest(store storage.Store, m *Manifest) error {
	data, err := storage.EncodeJSON(m)
	if err != nil {
		return err
	}
	return store.Put(manifestKey(m.DocID), data)
}

// EnsureManifest returns the cached manifest, building and caching it on
// first access. The manifest is a baseline; it is never rebuilt once
// written.
func EnsureManifest(store storage.Store, docID string, ex engine.Extractor) (*Manifest, error) {
	existing, err := LoadManifest(store, docID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	m, err := BuildManifest(docID, ex)
	if err != nil {
		return nil, err
	}
	if err := SaveManifest(store, m); err != nil {
		return nil, err
	}
	return m, nil
}
