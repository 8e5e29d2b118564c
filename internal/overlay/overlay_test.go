package overlay

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
)

type eventLog struct {
	adds    []*annotation.Annotation
	updates []*annotation.Annotation
	deletes []string
	resets  int
	selects []string
}

func newTestOverlay() (*Overlay, *eventLog) {
	log := &eventLog{}
	ov := New(Events{
		OnAdd:    func(a *annotation.Annotation) { log.adds = append(log.adds, a) },
		OnUpdate: func(a *annotation.Annotation) { log.updates = append(log.updates, a) },
		OnDelete: func(id string) { log.deletes = append(log.deletes, id) },
		OnSceneReset: func(page int, annos []*annotation.Annotation) {
			log.resets++
		},
		OnSelect: func(id string) { log.selects = append(log.selects, id) },
	})
	return ov, log
}

func rect(id string, x, y, w, h float64) *annotation.Annotation {
	return &annotation.Annotation{
		ID:         id,
		Type:       annotation.TypeRectangle,
		PageNumber: 1,
		X:          x, Y: y, Width: w, Height: h,
	}
}

func TestAddEmitsExactlyOnce(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, nil, 1.0)

	a := rect("anno_1", 10, 10, 40, 40)
	if err := ov.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if len(log.adds) != 1 {
		t.Fatalf("got %d add events, want 1", len(log.adds))
	}
	if log.adds[0].ID != "anno_1" {
		t.Errorf("add event id = %q, want anno_1", log.adds[0].ID)
	}

	if err := ov.Add(rect("anno_1", 0, 0, 1, 1)); err == nil {
		t.Error("duplicate id accepted")
	}
	if len(log.adds) != 1 {
		t.Errorf("duplicate add emitted an event")
	}
}

func TestZoomKeepsSceneObjects(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{rect("anno_1", 100, 100, 50, 50)}, 1.0)
	ov.Select("anno_1")

	// Same page at a new scale: objects survive, frames rescale, no events.
	ov.LoadPage(1, nil, 2.0)

	if ov.Len() != 1 {
		t.Fatalf("scene lost objects on zoom: len = %d", ov.Len())
	}
	if ov.SelectedID() != "anno_1" {
		t.Errorf("selection lost on zoom")
	}
	frame, _ := ov.Frame("anno_1")
	want := geom.Rect{X: 200, Y: 200, Width: 100, Height: 100}
	if diff := cmp.Diff(want, frame, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("frame after zoom (-want +got):\n%s", diff)
	}
	if len(log.adds)+len(log.updates)+len(log.deletes) != 0 {
		t.Errorf("zoom emitted annotation events")
	}
}

func TestPageNavigationRebuildsScene(t *testing.T) {
	ov, _ := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{rect("anno_1", 0, 0, 10, 10)}, 1.0)
	ov.Select("anno_1")

	page2 := rect("anno_2", 5, 5, 10, 10)
	page2.PageNumber = 2
	ov.LoadPage(2, []*annotation.Annotation{page2}, 1.0)

	if ov.Get("anno_1") != nil {
		t.Error("page 1 object survived navigation")
	}
	if ov.Get("anno_2") == nil {
		t.Error("page 2 object missing")
	}
	if ov.SelectedID() != "" {
		t.Error("selection survived navigation")
	}
}

func TestLoadPageFiltersForeignPages(t *testing.T) {
	ov, _ := newTestOverlay()
	other := rect("anno_other", 0, 0, 10, 10)
	other.PageNumber = 3
	ov.LoadPage(1, []*annotation.Annotation{rect("anno_1", 0, 0, 10, 10), other}, 1.0)

	if ov.Len() != 1 {
		t.Errorf("scene holds %d objects, want 1", ov.Len())
	}
}

func TestSetFrameReprojectsToDocumentSpace(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{rect("anno_1", 100, 100, 50, 50)}, 2.0)

	// Drag the frame 40 render px right: 20 document units at scale 2.
	if err := ov.SetFrame("anno_1", geom.Rect{X: 240, Y: 200, Width: 100, Height: 100}); err != nil {
		t.Fatalf("SetFrame: %v", err)
	}

	got := ov.Get("anno_1").Bounds()
	want := geom.Rect{X: 120, Y: 100, Width: 50, Height: 50}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("document bounds (-want +got):\n%s", diff)
	}
	if len(log.updates) != 1 {
		t.Errorf("got %d update events, want 1", len(log.updates))
	}
}

func TestSetFrameMovesSegmentEndpoints(t *testing.T) {
	ov, _ := newTestOverlay()
	arrow := &annotation.Annotation{
		ID: "anno_arrow", Type: annotation.TypeArrow, PageNumber: 1,
		X: 10, Y: 10, Width: 30, Height: 20,
		Start: &geom.Point{X: 10, Y: 10},
		End:   &geom.Point{X: 40, Y: 30},
	}
	ov.LoadPage(1, []*annotation.Annotation{arrow}, 1.0)

	if err := ov.SetFrame("anno_arrow", geom.Rect{X: 20, Y: 20, Width: 30, Height: 20}); err != nil {
		t.Fatalf("SetFrame: %v", err)
	}

	rec := ov.Get("anno_arrow")
	if rec.Start.X != 20 || rec.Start.Y != 20 {
		t.Errorf("Start = %+v, want (20,20)", *rec.Start)
	}
	if rec.End.X != 50 || rec.End.Y != 40 {
		t.Errorf("End = %+v, want (50,40)", *rec.End)
	}
}

func TestRemove(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{rect("anno_1", 0, 0, 10, 10)}, 1.0)
	ov.Select("anno_1")

	if err := ov.Remove("anno_1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ov.SelectedID() != "" {
		t.Error("selection not cleared by remove")
	}
	if len(log.deletes) != 1 || log.deletes[0] != "anno_1" {
		t.Errorf("delete events = %v, want [anno_1]", log.deletes)
	}
	if err := ov.Remove("anno_1"); err == nil {
		t.Error("second remove succeeded")
	}
}

func TestRestoreEmitsSingleReset(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{rect("anno_1", 0, 0, 10, 10)}, 1.0)

	ov.Restore([]*annotation.Annotation{
		rect("anno_2", 5, 5, 10, 10),
		rect("anno_3", 20, 20, 10, 10),
	})

	if log.resets != 1 {
		t.Errorf("got %d reset events, want 1", log.resets)
	}
	if len(log.adds) != 0 || len(log.deletes) != 0 {
		t.Errorf("restore replayed per-object events")
	}
	if ov.Get("anno_1") != nil || ov.Get("anno_2") == nil || ov.Get("anno_3") == nil {
		t.Errorf("restored scene wrong: %v", ov.Annotations())
	}
}

func TestHitTestTopmostWins(t *testing.T) {
	ov, _ := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{
		rect("anno_bottom", 0, 0, 100, 100),
		rect("anno_top", 40, 40, 100, 100),
	}, 1.0)

	if got := ov.HitTest(geom.Point{X: 50, Y: 50}); got != "anno_top" {
		t.Errorf("HitTest overlap = %q, want anno_top", got)
	}
	if got := ov.HitTest(geom.Point{X: 10, Y: 10}); got != "anno_bottom" {
		t.Errorf("HitTest = %q, want anno_bottom", got)
	}
	if got := ov.HitTest(geom.Point{X: 500, Y: 500}); got != "" {
		t.Errorf("HitTest on bare page = %q, want empty", got)
	}
}

func TestHitTestThinObjectTolerance(t *testing.T) {
	ov, _ := newTestOverlay()
	line := rect("anno_line", 10, 50, 100, 0)
	ov.LoadPage(1, []*annotation.Annotation{line}, 1.0)

	// 3px off a zero-height line still hits thanks to the tolerance band.
	if got := ov.HitTest(geom.Point{X: 50, Y: 53}); got != "anno_line" {
		t.Errorf("HitTest near thin object = %q, want anno_line", got)
	}
}

func TestSelectIsExclusive(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, []*annotation.Annotation{
		rect("anno_1", 0, 0, 10, 10),
		rect("anno_2", 20, 20, 10, 10),
	}, 1.0)

	ov.Select("anno_1")
	ov.Select("anno_2")
	if ov.SelectedID() != "anno_2" {
		t.Errorf("selected = %q, want anno_2", ov.SelectedID())
	}

	// Re-selecting the same id is a no-op.
	ov.Select("anno_2")
	if len(log.selects) != 2 {
		t.Errorf("got %d select events, want 2", len(log.selects))
	}

	if err := ov.Select("anno_missing"); err == nil {
		t.Error("selecting unknown id succeeded")
	}
}

func TestEventPayloadsAreCopies(t *testing.T) {
	ov, log := newTestOverlay()
	ov.LoadPage(1, nil, 1.0)
	ov.Add(rect("anno_1", 10, 10, 40, 40))

	// Mutating the event payload must not reach the scene.
	log.adds[0].X = 999
	if got := ov.Get("anno_1").X; got != 10 {
		t.Errorf("scene record mutated through event payload: X = %v", got)
	}
}
