// Package engine declares the contract between this module and the
// external document engine that parses source files and rasterizes
// pages. Implementations live with the host application; everything in
// this module consumes these interfaces only.
package engine

import "github.com/forgeline/forgeline/ir"

// PageInfo describes one page's geometry as reported by the engine.
type PageInfo struct {
	WidthPt  float64
	HeightPt float64
	Rotation int
}

// Extractor yields raw page content for normalization and manifests.
type Extractor interface {
	// PageCount reports how many pages the document has.
	PageCount() int
	// PageInfo returns the geometry of one page.
	PageInfo(pageIndex int) (PageInfo, error)
	// ExtractTextSpans returns the page's text spans in engine order.
	ExtractTextSpans(pageIndex int) ([]ir.RawSpan, error)
	// ExtractDrawings returns the page's vector drawings in engine order.
	ExtractDrawings(pageIndex int) ([]ir.RawDrawing, error)
}

// Raster is one rendered page image.
type Raster struct {
	WidthPx  int
	HeightPx int
	PNG      []byte
}

// Rasterizer renders pages for overlay-backed viewers.
type Rasterizer interface {
	RenderPage(pageIndex int, scale float64) (Raster, error)
}

// Extraction assembles one page's raw content from an extractor.
func Extraction(ex Extractor, pageIndex int) (ir.RawExtraction, error) {
	info, err := ex.PageInfo(pageIndex)
	if err != nil {
		return ir.RawExtraction{}, err
	}
	spans, err := ex.ExtractTextSpans(pageIndex)
	if err != nil {
		return ir.RawExtraction{}, err
	}
	drawings, err := ex.ExtractDrawings(pageIndex)
	if err != nil {
		return ir.RawExtraction{}, err
	}
	return ir.RawExtraction{
		WidthPt:  info.WidthPt,
		HeightPt: info.HeightPt,
		Rotation: info.Rotation,
		Spans:    spans,
		Drawings: drawings,
	}, nil
}
