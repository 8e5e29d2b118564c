// Package viewer is the markup engine facade: it owns the renderer, the
// annotation overlay, the tool state machine, history, and the clipboard,
// and exposes the single API hosts drive with pointer, tool, and navigation
// commands. The scene is exclusively owned by the overlay; every mutation
// passes through it, so annotation events reach the host exactly once and
// in the order the mutations occurred.
package viewer

import (
	"errors"
	"sync"
	"time"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/clipboard"
	"github.com/markline/markline/backend-go/internal/geom"
	"github.com/markline/markline/backend-go/internal/history"
	"github.com/markline/markline/backend-go/internal/overlay"
	"github.com/markline/markline/backend-go/internal/projector"
	"github.com/markline/markline/backend-go/internal/render"
	"github.com/markline/markline/backend-go/internal/tool"
	"github.com/markline/markline/backend-go/internal/typeid"
)

var ErrNoDocument = errors.New("no document open")

// RenderState drives host-rendered navigation and zoom controls.
type RenderState struct {
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
	ScaleFactor float64       `json:"scaleFactor"`
	Status      render.Status `json:"status"`
	Error       string        `json:"error,omitempty"`
	CanGoPrev   bool          `json:"canGoPrev"`
	CanGoNext   bool          `json:"canGoNext"`
	CanUndo     bool          `json:"canUndo"`
	CanRedo     bool          `json:"canRedo"`
}

// Callbacks are the host-facing outputs of the engine. Annotation payloads
// carry document-space geometry only. Events fire synchronously inside the
// mutation that caused them; hosts must not call back into the viewer from
// a callback.
type Callbacks struct {
	OnAnnotationAdd     func(*annotation.Annotation)
	OnAnnotationUpdate  func(*annotation.Annotation)
	OnAnnotationDelete  func(id string)
	OnSceneReset        func(page int, annotations []*annotation.Annotation)
	OnRenderStateChange func(RenderState)
	OnToolChangeRequest func(tool.Tool)
	OnRaster            func(*render.Raster)
}

// Options configures a viewer.
type Options struct {
	Author       string
	MaxRasterDim int
	Timeout      time.Duration
	HistoryDepth int
	Callbacks    Callbacks
}

// Viewer is one interactive markup session over a single document.
type Viewer struct {
	mu sync.Mutex

	renderer *render.Renderer
	ov       *overlay.Overlay
	machine  *tool.Machine
	hist     *history.History
	clip     *clipboard.Clipboard

	// pages holds the canonical document-space collection for every page;
	// only the current page is materialized into scene objects.
	pages map[int][]*annotation.Annotation

	page     int
	total    int
	viewport geom.Size
	userZoom float64
	scale    float64
	status   render.Status
	errMsg   string
	raster   *render.Raster

	cb Callbacks
}

// New creates a viewer with no document attached.
func New(opts Options) *Viewer {
	v := &Viewer{
		renderer: render.NewRenderer(render.Options{
			MaxRasterDim: opts.MaxRasterDim,
			Timeout:      opts.Timeout,
		}),
		hist:     history.New(opts.HistoryDepth),
		clip:     clipboard.New(),
		pages:    make(map[int][]*annotation.Annotation),
		userZoom: 1.0,
		viewport: geom.Size{Width: 800, Height: 600},
		status:   render.StatusIdle,
		cb:       opts.Callbacks,
	}

	v.ov = overlay.New(overlay.Events{
		OnAdd:        v.handleAdd,
		OnUpdate:     v.handleUpdate,
		OnDelete:     v.handleDelete,
		OnSceneReset: v.handleSceneReset,
	})
	v.machine = tool.NewMachine(v.ov, opts.Author, tool.Events{
		OnToolChangeRequest: func(t tool.Tool) {
			if v.cb.OnToolChangeRequest != nil {
				v.cb.OnToolChangeRequest(t)
			}
		},
		OnSnapshot: func() {
			v.hist.Snapshot(v.ov.Annotations())
		},
	})

	return v
}

// OpenDocument attaches a document together with its stored document-space
// annotation collection and renders the first page.
func (v *Viewer) OpenDocument(doc render.Document, annotations []*annotation.Annotation) error {
	v.mu.Lock()
	total, err := v.renderer.Open(doc)
	if err != nil {
		v.mu.Unlock()
		return err
	}

	v.total = total
	v.page = 1
	v.userZoom = 1.0
	v.raster = nil
	v.status = render.StatusLoading
	v.errMsg = ""
	v.hist.Clear()
	v.clip.Clear()

	v.pages = make(map[int][]*annotation.Annotation)
	for _, a := range annotations {
		v.pages[a.PageNumber] = append(v.pages[a.PageNumber], a.Clone())
	}
	v.mu.Unlock()

	v.renderCurrentPage()
	return nil
}

// Close releases the document and cancels any in-flight render.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renderer.Close()
}

// --- navigation and zoom ---

// SetPage navigates to a 1-based page. The live scene is rebuilt for the
// new page; annotations for other pages stay in the document-space
// collection without scene objects.
func (v *Viewer) SetPage(page int) error {
	v.mu.Lock()
	if v.total == 0 {
		v.mu.Unlock()
		return ErrNoDocument
	}
	if page < 1 || page > v.total {
		v.mu.Unlock()
		return render.ErrPageOutOfRange
	}
	if page == v.page {
		v.mu.Unlock()
		return nil
	}
	v.page = page
	v.raster = nil
	v.hist.Clear()
	v.mu.Unlock()

	v.renderCurrentPage()
	return nil
}

// NextPage advances one page if possible.
func (v *Viewer) NextPage() error { return v.step(1) }

// PrevPage goes back one page if possible.
func (v *Viewer) PrevPage() error { return v.step(-1) }

func (v *Viewer) step(delta int) error {
	v.mu.Lock()
	target := v.page + delta
	v.mu.Unlock()
	err := v.SetPage(target)
	if errors.Is(err, render.ErrPageOutOfRange) {
		return nil
	}
	return err
}

// SetZoom changes the user zoom. The overlay is rescaled immediately (the
// cheap path, preserving scene objects and any in-progress interaction) and
// a preview raster is published while the fresh render is in flight.
func (v *Viewer) SetZoom(zoom float64) error {
	v.mu.Lock()
	if v.total == 0 {
		v.mu.Unlock()
		return ErrNoDocument
	}
	if zoom <= 0 {
		zoom = 1.0
	}
	v.userZoom = zoom
	preview := v.raster
	v.mu.Unlock()

	scale, err := v.effectiveScale()
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.ov.LoadPage(v.page, v.pages[v.page], scale)
	v.mu.Unlock()

	if preview != nil && v.cb.OnRaster != nil {
		v.cb.OnRaster(preview.Rescaled(scale))
	}

	v.renderCurrentPage()
	return nil
}

// SetViewport updates the viewport dimensions, recomputing the fit scale.
func (v *Viewer) SetViewport(size geom.Size) error {
	v.mu.Lock()
	if size.Width <= 0 || size.Height <= 0 {
		v.mu.Unlock()
		return errors.New("viewport must have positive dimensions")
	}
	v.viewport = size
	hasDoc := v.total > 0
	v.mu.Unlock()

	if !hasDoc {
		return nil
	}
	v.renderCurrentPage()
	return nil
}

// --- tools and pointer input ---

// SetTool switches the active tool.
func (v *Viewer) SetTool(t tool.Tool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.machine.SetTool(t)
}

// ActiveTool returns the active tool.
func (v *Viewer) ActiveTool() tool.Tool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.Active()
}

// SetToolProperties pushes host property-panel values. They apply to future
// placements and immediately restyle the current selection, if any.
func (v *Viewer) SetToolProperties(p tool.Properties) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.machine.SetProperties(p)

	if sel := v.ov.Selected(); sel != nil {
		updated := sel.Clone()
		updated.Style = p.Style()
		v.hist.Snapshot(v.ov.Annotations())
		v.ov.Update(updated)
		v.emitStateLocked()
	}
}

// PointerDown dispatches a pointer press at a render-space point.
func (v *Viewer) PointerDown(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.machine.PointerDown(geom.Point{X: x, Y: y})
	v.emitStateLocked()
}

// PointerMove dispatches pointer movement.
func (v *Viewer) PointerMove(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.machine.PointerMove(geom.Point{X: x, Y: y})
}

// PointerUp dispatches a pointer release.
func (v *Viewer) PointerUp(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.machine.PointerUp(geom.Point{X: x, Y: y})
	v.emitStateLocked()
}

// BeginTextEdit opens an existing text annotation for editing.
func (v *Viewer) BeginTextEdit(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.BeginTextEdit(id)
}

// CommitText exits text editing with the typed content.
func (v *Viewer) CommitText(content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.machine.CommitText(content)
	v.emitStateLocked()
}

// --- direct mutations ---

// UpdateAnnotation applies a property-panel edit to an existing annotation.
func (v *Viewer) UpdateAnnotation(a *annotation.Annotation) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ov.Get(a.ID) == nil {
		// Validate before snapshotting so a rejected update leaves no
		// no-op entry on the undo stack.
		return overlay.ErrUnknownAnnotation
	}
	v.hist.Snapshot(v.ov.Annotations())
	if err := v.ov.Update(a); err != nil {
		return err
	}
	v.emitStateLocked()
	return nil
}

// DeleteSelection removes the selected annotation, if any.
func (v *Viewer) DeleteSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.ov.SelectedID()
	if id == "" {
		return
	}
	v.hist.Snapshot(v.ov.Annotations())
	v.ov.Remove(id)
	v.emitStateLocked()
}

// Select sets the selection directly (e.g. from a host-side list panel).
func (v *Viewer) Select(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ov.Select(id)
}

// AddComment appends a comment to an annotation's thread.
func (v *Viewer) AddComment(annotationID, author, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	a := v.ov.Get(annotationID)
	if a == nil {
		return overlay.ErrUnknownAnnotation
	}
	updated := a.Clone()
	updated.Comments = append(updated.Comments, annotation.Comment{
		ID:        typeid.NewCommentID(),
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	v.hist.Snapshot(v.ov.Annotations())
	return v.ov.Update(updated)
}

// --- history and clipboard ---

// Undo restores the scene to the state before the most recent mutation.
func (v *Viewer) Undo() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	ok := v.hist.Undo(v.ov.Annotations(), v.ov.Restore)
	if ok {
		v.emitStateLocked()
	}
	return ok
}

// Redo reapplies the most recently undone mutation.
func (v *Viewer) Redo() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	ok := v.hist.Redo(v.ov.Annotations(), v.ov.Restore)
	if ok {
		v.emitStateLocked()
	}
	return ok
}

// Copy places a deep copy of the selected annotation on the clipboard.
func (v *Viewer) Copy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clip.Copy(v.ov.Selected())
}

// Paste inserts the clipboard content with a fresh id, offset from the
// original position or centered when the offset would leave the viewport.
// An empty clipboard is a no-op.
func (v *Viewer) Paste() *annotation.Annotation {
	v.mu.Lock()
	defer v.mu.Unlock()

	pasted := v.clip.Paste(v.viewport, v.currentScaleLocked())
	if pasted == nil {
		return nil
	}
	pasted.PageNumber = v.page

	v.hist.Snapshot(v.ov.Annotations())
	if err := v.ov.Add(pasted); err != nil {
		return nil
	}
	v.ov.Select(pasted.ID)
	v.emitStateLocked()
	return pasted.Clone()
}

// --- queries ---

// State returns the current render state.
func (v *Viewer) State() RenderState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

// Raster returns the most recent completed raster, or nil.
func (v *Viewer) Raster() *render.Raster {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.raster
}

// Annotations returns the document-space collection for every page.
func (v *Viewer) Annotations() []*annotation.Annotation {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []*annotation.Annotation
	for page := 1; page <= v.total; page++ {
		out = append(out, annotation.CloneAll(v.pages[page])...)
	}
	return out
}

// PageAnnotations returns the collection for one page.
func (v *Viewer) PageAnnotations(page int) []*annotation.Annotation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return annotation.CloneAll(v.pages[page])
}

// HitTest exposes scene hit-testing to hosts.
func (v *Viewer) HitTest(x, y float64) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ov.HitTest(geom.Point{X: x, Y: y})
}

// SelectedID returns the current selection, or "".
func (v *Viewer) SelectedID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ov.SelectedID()
}

// MeasurementLabel returns the derived distance label for a measurement.
func (v *Viewer) MeasurementLabel(id string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return tool.MeasurementLabel(v.ov.Get(id))
}

// --- internals ---

// renderCurrentPage kicks off an async render of the current page at the
// effective scale. A prior in-flight render is superseded.
func (v *Viewer) renderCurrentPage() {
	scale, err := v.effectiveScale()
	if err != nil {
		v.mu.Lock()
		v.status = render.StatusError
		v.errMsg = err.Error()
		v.emitStateLocked()
		v.mu.Unlock()
		return
	}

	v.mu.Lock()
	v.status = render.StatusRendering
	v.errMsg = ""
	page := v.page
	v.emitStateLocked()
	v.mu.Unlock()

	v.renderer.RenderPage(page, scale, func(raster *render.Raster, err error) {
		if errors.Is(err, render.ErrRenderCancelled) {
			// Superseded; stay silent so no stale error is shown.
			return
		}

		v.mu.Lock()
		if err != nil {
			v.status = render.StatusError
			v.errMsg = err.Error()
			v.emitStateLocked()
			v.mu.Unlock()
			return
		}

		// The raster's effective scale (after clamping) is authoritative
		// for all overlay geometry.
		v.scale = raster.Scale
		v.raster = raster
		v.status = render.StatusReady
		v.errMsg = ""
		v.ov.LoadPage(raster.Page, v.pages[raster.Page], raster.Scale)
		v.emitStateLocked()
		v.mu.Unlock()

		if v.cb.OnRaster != nil {
			v.cb.OnRaster(raster)
		}
	})
}

// effectiveScale computes fitScale(page, viewport) x userZoom.
func (v *Viewer) effectiveScale() (float64, error) {
	v.mu.Lock()
	doc := v.renderer.Document()
	page := v.page
	viewport := v.viewport
	zoom := v.userZoom
	v.mu.Unlock()

	if doc == nil {
		return 0, ErrNoDocument
	}
	size, err := doc.PageSize(page)
	if err != nil {
		return 0, err
	}
	fit := projector.ComputeFitScale(size, viewport)
	return projector.EffectiveScale(fit, zoom), nil
}

func (v *Viewer) currentScaleLocked() float64 {
	if v.scale > 0 {
		return v.scale
	}
	return 1.0
}

func (v *Viewer) stateLocked() RenderState {
	return RenderState{
		CurrentPage: v.page,
		TotalPages:  v.total,
		ScaleFactor: v.currentScaleLocked(),
		Status:      v.status,
		Error:       v.errMsg,
		CanGoPrev:   v.page > 1,
		CanGoNext:   v.page < v.total,
		CanUndo:     v.hist.CanUndo(),
		CanRedo:     v.hist.CanRedo(),
	}
}

func (v *Viewer) emitStateLocked() {
	if v.cb.OnRenderStateChange != nil {
		v.cb.OnRenderStateChange(v.stateLocked())
	}
}

// --- overlay event plumbing ---

func (v *Viewer) handleAdd(a *annotation.Annotation) {
	v.pages[a.PageNumber] = append(v.pages[a.PageNumber], a.Clone())
	if v.cb.OnAnnotationAdd != nil {
		v.cb.OnAnnotationAdd(a)
	}
}

func (v *Viewer) handleUpdate(a *annotation.Annotation) {
	list := v.pages[a.PageNumber]
	for i, existing := range list {
		if existing.ID == a.ID {
			list[i] = a.Clone()
			break
		}
	}
	if v.cb.OnAnnotationUpdate != nil {
		v.cb.OnAnnotationUpdate(a)
	}
}

func (v *Viewer) handleDelete(id string) {
	list := v.pages[v.page]
	for i, existing := range list {
		if existing.ID == id {
			v.pages[v.page] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if v.cb.OnAnnotationDelete != nil {
		v.cb.OnAnnotationDelete(id)
	}
}

func (v *Viewer) handleSceneReset(page int, annotations []*annotation.Annotation) {
	v.pages[page] = annotation.CloneAll(annotations)
	if v.cb.OnSceneReset != nil {
		v.cb.OnSceneReset(page, annotations)
	}
}
