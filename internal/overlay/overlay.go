// Package overlay owns the live scene of annotation objects composited
// above the rasterized page. Scene geometry is render-space and always
// derived from the document-space records; every structural mutation passes
// through this package's API so event emission stays on a single path.
package overlay

import (
	"errors"
	"fmt"
	"time"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
	"github.com/markline/markline/backend-go/internal/projector"
)

var ErrUnknownAnnotation = errors.New("unknown annotation id")

// SceneObject pairs a document-space record with its derived render-space
// frame on the current raster.
type SceneObject struct {
	Record *annotation.Annotation
	Frame  geom.Rect
}

// Events are the host callbacks fired on scene mutations. All payloads carry
// document-space geometry only; render-space values never leave the overlay.
type Events struct {
	OnAdd        func(*annotation.Annotation)
	OnUpdate     func(*annotation.Annotation)
	OnDelete     func(id string)
	OnSceneReset func(page int, annotations []*annotation.Annotation)
	OnSelect     func(id string)
}

// Overlay is the live scene for the currently displayed page.
type Overlay struct {
	page     int
	scale    float64
	objects  map[string]*SceneObject
	order    []string // painter's order, last drawn on top
	selected string
	events   Events
}

// New creates an empty overlay.
func New(events Events) *Overlay {
	return &Overlay{
		scale:   1.0,
		objects: make(map[string]*SceneObject),
		events:  events,
	}
}

// Page returns the page the scene currently represents, 0 if none.
func (o *Overlay) Page() int { return o.page }

// Scale returns the scale factor the scene frames are derived at.
func (o *Overlay) Scale() float64 { return o.scale }

// LoadPage points the scene at a page. If the overlay already represents
// pageNumber, existing scene objects are kept and only their render frames
// recomputed from the stored document geometry (the cheap path used during
// zoom, which preserves in-progress interaction state). Navigating to a
// different page rebuilds the scene from the supplied records.
func (o *Overlay) LoadPage(pageNumber int, annotations []*annotation.Annotation, scale float64) {
	if scale <= 0 {
		scale = projector.MinScale
	}

	if pageNumber == o.page && len(o.objects) > 0 {
		o.scale = scale
		for _, obj := range o.objects {
			obj.Frame = projector.ToRenderSpace(obj.Record.Bounds(), scale)
		}
		return
	}

	o.page = pageNumber
	o.scale = scale
	o.selected = ""
	o.objects = make(map[string]*SceneObject, len(annotations))
	o.order = o.order[:0]

	for _, a := range annotations {
		if a.PageNumber != pageNumber {
			continue
		}
		rec := a.Clone()
		o.objects[rec.ID] = &SceneObject{
			Record: rec,
			Frame:  projector.ToRenderSpace(rec.Bounds(), scale),
		}
		o.order = append(o.order, rec.ID)
	}
}

// Add inserts a new annotation into the scene and emits OnAnnotationAdd.
func (o *Overlay) Add(a *annotation.Annotation) error {
	if a.ID == "" {
		return errors.New("annotation has no id")
	}
	if _, exists := o.objects[a.ID]; exists {
		return fmt.Errorf("duplicate annotation id %q", a.ID)
	}

	rec := a.Clone()
	rec.PageNumber = o.page
	o.objects[rec.ID] = &SceneObject{
		Record: rec,
		Frame:  projector.ToRenderSpace(rec.Bounds(), o.scale),
	}
	o.order = append(o.order, rec.ID)

	if o.events.OnAdd != nil {
		o.events.OnAdd(rec.Clone())
	}
	return nil
}

// Update replaces an annotation's record, recomputes its frame, and emits
// OnAnnotationUpdate. The id must exist; updating an unknown id is a
// programming error on the caller's side.
func (o *Overlay) Update(a *annotation.Annotation) error {
	obj, ok := o.objects[a.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAnnotation, a.ID)
	}

	rec := a.Clone()
	rec.PageNumber = o.page
	rec.ModifiedAt = time.Now().UTC()
	obj.Record = rec
	obj.Frame = projector.ToRenderSpace(rec.Bounds(), o.scale)

	if o.events.OnUpdate != nil {
		o.events.OnUpdate(rec.Clone())
	}
	return nil
}

// SetFrame moves/resizes a scene object in render space. The new frame is
// reprojected into document space before it becomes canonical.
func (o *Overlay) SetFrame(id string, frame geom.Rect) error {
	obj, ok := o.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
	}

	frame = frame.Normalized()
	obj.Frame = frame
	docRect := projector.ToDocumentSpace(frame, o.scale)

	// Keep segment endpoints anchored to the moving bounds.
	rec := obj.Record
	if rec.Start != nil && rec.End != nil {
		prev := rec.Bounds()
		rec.Start = translatePoint(rec.Start, prev, docRect)
		rec.End = translatePoint(rec.End, prev, docRect)
	}
	if len(rec.Points) > 0 {
		prev := rec.Bounds()
		dx, dy := docRect.X-prev.X, docRect.Y-prev.Y
		for i := range rec.Points {
			rec.Points[i].X += dx
			rec.Points[i].Y += dy
		}
	}
	rec.SetBounds(docRect)
	rec.ModifiedAt = time.Now().UTC()

	if o.events.OnUpdate != nil {
		o.events.OnUpdate(rec.Clone())
	}
	return nil
}

// Remove deletes an annotation from the scene and emits OnAnnotationDelete.
func (o *Overlay) Remove(id string) error {
	if _, ok := o.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
	}

	delete(o.objects, id)
	for i, oid := range o.order {
		if oid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	if o.selected == id {
		o.selected = ""
	}

	if o.events.OnDelete != nil {
		o.events.OnDelete(id)
	}
	return nil
}

// Restore replaces the whole scene with a snapshot, used by undo/redo. A
// single OnSceneReset event carries the restored collection; per-object
// add/delete events are deliberately not replayed.
func (o *Overlay) Restore(annotations []*annotation.Annotation) {
	o.objects = make(map[string]*SceneObject, len(annotations))
	o.order = o.order[:0]
	for _, a := range annotations {
		rec := a.Clone()
		o.objects[rec.ID] = &SceneObject{
			Record: rec,
			Frame:  projector.ToRenderSpace(rec.Bounds(), o.scale),
		}
		o.order = append(o.order, rec.ID)
	}
	if o.selected != "" {
		if _, ok := o.objects[o.selected]; !ok {
			o.selected = ""
		}
	}

	if o.events.OnSceneReset != nil {
		o.events.OnSceneReset(o.page, o.Annotations())
	}
}

// HitTest returns the id of the topmost annotation containing the
// render-space point, or "" if the point hits bare page.
func (o *Overlay) HitTest(p geom.Point) string {
	for i := len(o.order) - 1; i >= 0; i-- {
		obj := o.objects[o.order[i]]
		frame := obj.Frame
		if frame.Width < hitSlop || frame.Height < hitSlop {
			// Thin objects (arrows, measurements) get a tolerance band so
			// they stay selectable.
			frame = frame.Inset(-hitSlop / 2)
		}
		if frame.Contains(p.X, p.Y) {
			return obj.Record.ID
		}
	}
	return ""
}

const hitSlop = 8.0

// Select marks an annotation as the single selection; "" clears it.
func (o *Overlay) Select(id string) error {
	if id != "" {
		if _, ok := o.objects[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
		}
	}
	if o.selected == id {
		return nil
	}
	o.selected = id
	if o.events.OnSelect != nil {
		o.events.OnSelect(id)
	}
	return nil
}

// SelectedID returns the id of the selected annotation, or "".
func (o *Overlay) SelectedID() string { return o.selected }

// Selected returns the selected annotation's record, or nil.
func (o *Overlay) Selected() *annotation.Annotation {
	if o.selected == "" {
		return nil
	}
	obj, ok := o.objects[o.selected]
	if !ok {
		return nil
	}
	return obj.Record
}

// Get returns the record for an id, or nil.
func (o *Overlay) Get(id string) *annotation.Annotation {
	obj, ok := o.objects[id]
	if !ok {
		return nil
	}
	return obj.Record
}

// Frame returns the render-space frame for an id.
func (o *Overlay) Frame(id string) (geom.Rect, bool) {
	obj, ok := o.objects[id]
	if !ok {
		return geom.Rect{}, false
	}
	return obj.Frame, true
}

// Annotations returns deep copies of the scene records in painter's order.
func (o *Overlay) Annotations() []*annotation.Annotation {
	out := make([]*annotation.Annotation, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.objects[id].Record.Clone())
	}
	return out
}

// Len returns the number of scene objects.
func (o *Overlay) Len() int { return len(o.objects) }

func translatePoint(p *geom.Point, from, to geom.Rect) *geom.Point {
	q := geom.Point{X: p.X + (to.X - from.X), Y: p.Y + (to.Y - from.Y)}
	if from.Width > 0 && to.Width != from.Width {
		q.X = to.X + (p.X-from.X)/from.Width*to.Width
	}
	if from.Height > 0 && to.Height != from.Height {
		q.Y = to.Y + (p.Y-from.Y)/from.Height*to.Height
	}
	return &q
}
