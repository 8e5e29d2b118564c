// Package clipboard implements copy/paste of a single annotation with
// identity regeneration and placement-collision avoidance.
package clipboard

import (
	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
	"github.com/markline/markline/backend-go/internal/projector"
	"github.com/markline/markline/backend-go/internal/typeid"
)

// PasteOffset is the fixed render-space delta applied to each paste.
const PasteOffset = 20.0

// Clipboard holds at most one copied annotation.
type Clipboard struct {
	slot *annotation.Annotation
}

// New creates an empty clipboard.
func New() *Clipboard {
	return &Clipboard{}
}

// Copy stores a deep copy of the annotation, dropping its identity. A nil
// argument (nothing selected) is a no-op.
func (c *Clipboard) Copy(a *annotation.Annotation) {
	if a == nil {
		return
	}
	cp := a.Clone()
	cp.ID = ""
	cp.Comments = nil
	c.slot = cp
}

// HasContent reports whether a paste would produce an annotation.
func (c *Clipboard) HasContent() bool { return c.slot != nil }

// Paste materializes a new annotation from the slot with a fresh id, offset
// by a fixed render-space delta from the original position. If the offset
// target would leave the viewport, the annotation is centered instead.
// Returns nil if the clipboard is empty; callers treat that as a no-op, not
// an error. The slot advances to the pasted position so repeated pastes
// cascade.
func (c *Clipboard) Paste(viewport geom.Size, scale float64) *annotation.Annotation {
	if c.slot == nil {
		return nil
	}

	docOffset := projector.LengthToDocumentSpace(PasteOffset, scale)
	target := c.slot.Bounds()
	target.X += docOffset
	target.Y += docOffset

	frame := projector.ToRenderSpace(target, scale)
	if frame.X < 0 || frame.Y < 0 ||
		frame.X+frame.Width > viewport.Width ||
		frame.Y+frame.Height > viewport.Height {
		// Off-screen paste target: center in the viewport instead.
		centered := geom.Rect{
			X:      (viewport.Width - frame.Width) / 2,
			Y:      (viewport.Height - frame.Height) / 2,
			Width:  frame.Width,
			Height: frame.Height,
		}
		target = projector.ToDocumentSpace(centered, scale)
	}

	pasted := c.slot.Clone()
	pasted.ID = typeid.NewAnnotationID()
	prev := pasted.Bounds()
	dx, dy := target.X-prev.X, target.Y-prev.Y
	pasted.SetBounds(target)
	if pasted.Start != nil {
		pasted.Start.X += dx
		pasted.Start.Y += dy
	}
	if pasted.End != nil {
		pasted.End.X += dx
		pasted.End.Y += dy
	}
	for i := range pasted.Points {
		pasted.Points[i].X += dx
		pasted.Points[i].Y += dy
	}

	// Remember the pasted geometry so the next paste offsets from it.
	next := pasted.Clone()
	next.ID = ""
	c.slot = next

	return pasted
}

// Clear empties the slot.
func (c *Clipboard) Clear() { c.slot = nil }
