// Package projector translates between document space (zoom-invariant,
// page-local units) and render space (pixels on the current raster).
package projector

import "github.com/markline/markline/backend-go/internal/geom"

// MinScale prevents degenerate zero-size rasters at extreme fit/zoom
// combinations.
const MinScale = 0.05

// ToRenderSpace projects a document-space rect to render space.
func ToRenderSpace(doc geom.Rect, scale float64) geom.Rect {
	return geom.Rect{
		X:      doc.X * scale,
		Y:      doc.Y * scale,
		Width:  doc.Width * scale,
		Height: doc.Height * scale,
	}
}

// ToDocumentSpace projects a render-space rect back to document space.
// Inverse of ToRenderSpace for the same scale.
func ToDocumentSpace(render geom.Rect, scale float64) geom.Rect {
	return geom.Rect{
		X:      render.X / scale,
		Y:      render.Y / scale,
		Width:  render.Width / scale,
		Height: render.Height / scale,
	}
}

// PointToRenderSpace projects a document-space point to render space.
func PointToRenderSpace(p geom.Point, scale float64) geom.Point {
	return geom.Point{X: p.X * scale, Y: p.Y * scale}
}

// PointToDocumentSpace projects a render-space point to document space.
func PointToDocumentSpace(p geom.Point, scale float64) geom.Point {
	return geom.Point{X: p.X / scale, Y: p.Y / scale}
}

// LengthToRenderSpace scales a scalar length (stroke width, font size) into
// render space.
func LengthToRenderSpace(v, scale float64) float64 {
	return v * scale
}

// LengthToDocumentSpace scales a scalar length back into document space.
func LengthToDocumentSpace(v, scale float64) float64 {
	return v / scale
}

// ComputeFitScale returns the scale that fits a page into a viewport without
// ever upscaling beyond 100%.
func ComputeFitScale(page, viewport geom.Size) float64 {
	if page.Width <= 0 || page.Height <= 0 {
		return 1.0
	}
	return min(viewport.Width/page.Width, viewport.Height/page.Height, 1.0)
}

// EffectiveScale combines the fit scale with the user zoom, clamped so the
// raster never collapses to nothing.
func EffectiveScale(fitScale, userZoom float64) float64 {
	return max(fitScale*userZoom, MinScale)
}
