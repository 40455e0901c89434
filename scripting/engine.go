// Package scripting runs user-supplied edit scripts against a page's
// normalized content through a small, read-only DOM.
package scripting

import "context"

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute executes a script. The context's deadline and cancellation
	// interrupt a running script.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterDOM registers the page DOM with the engine.
	RegisterDOM(dom DocumentDOM) error

	// Bind exposes a host function or value to scripts under name.
	Bind(name string, value interface{}) error
}

// DocumentDOM exposes one normalized page to scripts. It provides a
// safe, read-only API; edits happen through host bindings, never by
// mutating the page from script.
type DocumentDOM interface {
	// GetPrimitive returns a primitive by its stable id.
	GetPrimitive(id string) (PrimitiveProxy, error)

	// HitTestPoint returns the ids of primitives at a point, best first.
	HitTestPoint(x, y float64) []string

	// PageMeta returns the page's identity and geometry.
	PageMeta() PageMeta

	// Log lets scripts emit a diagnostic line.
	Log(message string)
}

// PageMeta is the page identity exposed to scripts.
type PageMeta struct {
	DocID     string
	PageIndex int
	WidthPt   float64
	HeightPt  float64
	Rotation  int
}

// PrimitiveProxy represents a primitive exposed to scripts.
type PrimitiveProxy interface {
	ID() string
	Kind() string
	Text() string
	BBox() [4]float64
}
