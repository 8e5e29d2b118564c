// Package tool interprets pointer-down/move/up sequences according to the
// active tool, delegating object construction and manipulation to the
// overlay. Only creation is gated by the active tool; existing annotations
// stay selectable and draggable no matter which tool is active.
package tool

import (
	"math"
	"strings"
	"time"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
	"github.com/markline/markline/backend-go/internal/overlay"
	"github.com/markline/markline/backend-go/internal/projector"
	"github.com/markline/markline/backend-go/internal/typeid"
)

const (
	// textCooldown suppresses a new text placement immediately after an
	// edit-exit, so the exit click is not misread as a fresh placement.
	textCooldown = 300 * time.Millisecond

	// minDragSize is the render-space size below which a drag gesture is
	// treated as a click and given the type's default footprint.
	minDragSize = 4.0

	defaultTextWidth   = 140.0
	defaultTextHeight  = 28.0
	defaultStampWidth  = 48.0
	defaultStampHeight = 48.0

	// placeholderText is the visual shown in an empty text box. It is never
	// persisted: a text annotation materializes only once real content
	// exists.
	placeholderText = "Text"
)

// Events are the callbacks the machine fires toward the host.
type Events struct {
	// OnToolChangeRequest asks the host to switch the active tool, used
	// after single-shot placements complete.
	OnToolChangeRequest func(Tool)

	// OnSnapshot is called immediately before every scene mutation so the
	// history manager can capture the pre-mutation state.
	OnSnapshot func()
}

// Machine is the multi-tool pointer-input state machine.
type Machine struct {
	ov     *overlay.Overlay
	events Events

	active Tool
	props  Properties
	author string

	// placement gesture state
	draft  *annotation.Annotation
	anchor geom.Point // render space

	// drag gesture state
	dragID       string
	dragStart    geom.Point
	dragFrame    geom.Rect
	dragSnapshot bool

	// text editing sub-phase
	editingID     string // "" when not editing; draft edits use the draft
	editingDraft  bool
	cooldownUntil time.Time

	now func() time.Time
}

// NewMachine creates a machine in the select state.
func NewMachine(ov *overlay.Overlay, author string, events Events) *Machine {
	return &Machine{
		ov:     ov,
		events: events,
		active: Select,
		props:  DefaultProperties(),
		author: author,
		now:    time.Now,
	}
}

// Active returns the active tool.
func (m *Machine) Active() Tool { return m.active }

// Properties returns the current tool properties.
func (m *Machine) Properties() Properties { return m.props }

// SetProperties replaces the tool properties for future placements.
func (m *Machine) SetProperties(p Properties) { m.props = p }

// SetTool switches the active tool immediately, discarding any
// half-completed gesture of the previous tool.
func (m *Machine) SetTool(t Tool) {
	if !t.Valid() {
		return
	}
	m.draft = nil
	m.dragID = ""
	m.editingID = ""
	m.editingDraft = false
	m.active = t
}

// Draft returns the in-progress placement, or nil. Hosts render it as a
// preview; it is not part of the scene until pointerUp finalizes it.
func (m *Machine) Draft() *annotation.Annotation { return m.draft }

// EditingText reports whether the text editing sub-phase is active.
func (m *Machine) EditingText() bool { return m.editingDraft || m.editingID != "" }

// PointerDown begins a gesture at a render-space point.
func (m *Machine) PointerDown(p geom.Point) {
	// A down while a text edit is still open ends the edit first, with the
	// usual edit-exit rules: an empty draft is discarded and the cooldown
	// keeps this same click from starting a fresh text placement.
	if m.EditingText() {
		m.CommitText("")
	}

	// A down on an existing annotation is always a selection/drag gesture,
	// regardless of the active tool.
	if hit := m.ov.HitTest(p); hit != "" {
		m.draft = nil
		m.beginDrag(hit, p)
		return
	}

	if m.active == Select {
		m.ov.Select("")
		return
	}

	at, ok := m.active.AnnotationType()
	if !ok {
		return
	}
	if at == annotation.TypeText && m.now().Before(m.cooldownUntil) {
		return
	}

	m.beginPlacement(at, p)
}

// PointerMove continues the active gesture.
func (m *Machine) PointerMove(p geom.Point) {
	switch {
	case m.dragID != "":
		m.continueDrag(p)
	case m.draft != nil:
		m.continuePlacement(p)
	}
}

// PointerUp completes the active gesture.
func (m *Machine) PointerUp(p geom.Point) {
	switch {
	case m.dragID != "":
		m.dragID = ""
	case m.draft != nil:
		m.finalizePlacement(p)
	}
}

// --- selection and drag ---

func (m *Machine) beginDrag(id string, p geom.Point) {
	m.ov.Select(id)
	frame, ok := m.ov.Frame(id)
	if !ok {
		return
	}
	m.dragID = id
	m.dragStart = p
	m.dragFrame = frame
	m.dragSnapshot = false
}

func (m *Machine) continueDrag(p geom.Point) {
	if !m.dragSnapshot {
		// First actual movement: capture pre-drag state once.
		if m.events.OnSnapshot != nil {
			m.events.OnSnapshot()
		}
		m.dragSnapshot = true
	}

	frame := m.dragFrame
	frame.X += p.X - m.dragStart.X
	frame.Y += p.Y - m.dragStart.Y
	m.ov.SetFrame(m.dragID, frame)
}

// --- placement ---

func (m *Machine) beginPlacement(at annotation.Type, p geom.Point) {
	scale := m.ov.Scale()
	doc := projector.PointToDocumentSpace(p, scale)
	now := m.now().UTC()

	a := &annotation.Annotation{
		ID:         typeid.NewAnnotationID(),
		Type:       at,
		PageNumber: m.ov.Page(),
		X:          doc.X,
		Y:          doc.Y,
		Style:      m.props.Style(),
		Author:     m.author,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	switch at {
	case annotation.TypeText, annotation.TypeCallout:
		a.Width = projector.LengthToDocumentSpace(defaultTextWidth, scale)
		a.Height = projector.LengthToDocumentSpace(defaultTextHeight, scale)
	case annotation.TypeStamp:
		a.Width = projector.LengthToDocumentSpace(defaultStampWidth, scale)
		a.Height = projector.LengthToDocumentSpace(defaultStampHeight, scale)
	case annotation.TypeArrow, annotation.TypeMeasurement:
		a.Start = &geom.Point{X: doc.X, Y: doc.Y}
		a.End = &geom.Point{X: doc.X, Y: doc.Y}
	case annotation.TypeFreehand:
		a.Points = []geom.Point{doc}
	case annotation.TypeCloud:
		a.ScallopRadius = projector.LengthToDocumentSpace(12, scale)
	}

	m.anchor = p
	m.draft = a
}

func (m *Machine) continuePlacement(p geom.Point) {
	scale := m.ov.Scale()
	doc := projector.PointToDocumentSpace(p, scale)

	switch m.draft.Type {
	case annotation.TypeText, annotation.TypeStamp, annotation.TypeCallout:
		// Single-click types are anchored where the gesture began.
	case annotation.TypeArrow, annotation.TypeMeasurement:
		m.draft.End = &doc
		m.draft.SetBounds(segmentBounds(*m.draft.Start, doc))
	case annotation.TypeFreehand:
		m.draft.Points = append(m.draft.Points, doc)
		m.draft.SetBounds(pathBounds(m.draft.Points))
	default:
		frame := geom.Rect{
			X:      m.anchor.X,
			Y:      m.anchor.Y,
			Width:  p.X - m.anchor.X,
			Height: p.Y - m.anchor.Y,
		}
		m.draft.SetBounds(projector.ToDocumentSpace(frame.Normalized(), scale))
	}
}

func (m *Machine) finalizePlacement(p geom.Point) {
	a := m.draft
	scale := m.ov.Scale()

	switch a.Type {
	case annotation.TypeText:
		// Text enters the editing sub-phase instead of materializing; it
		// is pushed to the overlay only once non-placeholder content
		// exists (see CommitText).
		m.editingDraft = true
		return
	case annotation.TypeStamp, annotation.TypeCallout:
		// Fixed footprint, nothing to size.
	case annotation.TypeArrow, annotation.TypeMeasurement, annotation.TypeFreehand:
		// Geometry already tracked during the gesture.
	default:
		minDoc := projector.LengthToDocumentSpace(minDragSize, scale)
		if a.Width < minDoc || a.Height < minDoc {
			w := projector.LengthToDocumentSpace(defaultStampWidth, scale)
			a.Width, a.Height = w, w
		}
	}

	m.draft = nil
	if m.events.OnSnapshot != nil {
		m.events.OnSnapshot()
	}
	if err := m.ov.Add(a); err != nil {
		return
	}
	m.ov.Select(a.ID)

	if a.Type.SingleShot() && m.events.OnToolChangeRequest != nil {
		m.events.OnToolChangeRequest(Select)
	}
}

// --- text editing sub-phase ---

// BeginTextEdit opens an existing text annotation for editing. Entering
// edit mode clears placeholder content on the host side.
func (m *Machine) BeginTextEdit(id string) bool {
	a := m.ov.Get(id)
	if a == nil || a.Type != annotation.TypeText {
		return false
	}
	m.editingID = id
	return true
}

// CommitText exits the editing sub-phase with the typed content. For a
// draft placement, empty content discards the draft (the placeholder visual
// never persists); real content materializes the annotation and requests a
// switch back to select. For an existing annotation, empty content keeps
// the prior text.
func (m *Machine) CommitText(content string) {
	content = strings.TrimSpace(content)
	if content == placeholderText {
		content = ""
	}
	m.cooldownUntil = m.now().Add(textCooldown)

	if m.editingDraft {
		a := m.draft
		m.draft = nil
		m.editingDraft = false

		if content == "" || a == nil {
			return
		}
		a.Text = content
		if m.events.OnSnapshot != nil {
			m.events.OnSnapshot()
		}
		if err := m.ov.Add(a); err != nil {
			return
		}
		m.ov.Select(a.ID)
		if m.events.OnToolChangeRequest != nil {
			m.events.OnToolChangeRequest(Select)
		}
		return
	}

	if m.editingID == "" {
		return
	}
	id := m.editingID
	m.editingID = ""

	if content == "" {
		return
	}
	a := m.ov.Get(id)
	if a == nil || a.Text == content {
		return
	}
	updated := a.Clone()
	updated.Text = content
	if m.events.OnSnapshot != nil {
		m.events.OnSnapshot()
	}
	m.ov.Update(updated)
}

// Placeholder returns the visual shown for empty text boxes.
func Placeholder() string { return placeholderText }

func segmentBounds(a, b geom.Point) geom.Rect {
	return geom.Rect{
		X:      min(a.X, b.X),
		Y:      min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

func pathBounds(pts []geom.Point) geom.Rect {
	if len(pts) == 0 {
		return geom.Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return geom.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
