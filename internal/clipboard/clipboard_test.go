package clipboard

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
)

var viewport = geom.Size{Width: 800, Height: 600}

func source() *annotation.Annotation {
	return &annotation.Annotation{
		ID: "anno_src", Type: annotation.TypeRectangle, PageNumber: 1,
		X: 100, Y: 100, Width: 50, Height: 50,
		Comments: []annotation.Comment{{ID: "cmt_1", Author: "x", Text: "note"}},
	}
}

func TestPasteOffsetsInRenderSpace(t *testing.T) {
	c := New()
	c.Copy(source())

	// At scale 2 the fixed 20px render offset is 10 document units.
	got := c.Paste(viewport, 2.0)
	if got == nil {
		t.Fatal("Paste returned nil")
	}
	want := geom.Rect{X: 110, Y: 110, Width: 50, Height: 50}
	if diff := cmp.Diff(want, got.Bounds(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("pasted bounds (-want +got):\n%s", diff)
	}
}

func TestPasteRegeneratesIdentity(t *testing.T) {
	c := New()
	c.Copy(source())

	first := c.Paste(viewport, 1.0)
	second := c.Paste(viewport, 1.0)

	if first.ID == "" || second.ID == "" {
		t.Fatal("pasted annotation missing id")
	}
	if first.ID == second.ID || first.ID == "anno_src" {
		t.Errorf("paste reused an id: %q, %q", first.ID, second.ID)
	}
	if len(first.Comments) != 0 {
		t.Errorf("comments travelled through the clipboard")
	}
}

func TestRepeatedPastesCascade(t *testing.T) {
	c := New()
	c.Copy(source())

	first := c.Paste(viewport, 1.0)
	second := c.Paste(viewport, 1.0)

	if second.X-first.X != 20 || second.Y-first.Y != 20 {
		t.Errorf("second paste at (%g,%g), want first + 20", second.X, second.Y)
	}
}

func TestOffscreenPasteCenters(t *testing.T) {
	c := New()
	a := source()
	a.X, a.Y = 760, 560 // offset target would leave the 800x600 viewport
	c.Copy(a)

	got := c.Paste(viewport, 1.0)
	want := geom.Rect{X: 375, Y: 275, Width: 50, Height: 50}
	if diff := cmp.Diff(want, got.Bounds(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("centered paste (-want +got):\n%s", diff)
	}
}

func TestPasteMovesVariantGeometry(t *testing.T) {
	c := New()
	c.Copy(&annotation.Annotation{
		ID: "anno_arrow", Type: annotation.TypeArrow, PageNumber: 1,
		X: 10, Y: 10, Width: 30, Height: 20,
		Start: &geom.Point{X: 10, Y: 10},
		End:   &geom.Point{X: 40, Y: 30},
	})

	got := c.Paste(viewport, 1.0)
	if got.Start.X != 30 || got.Start.Y != 30 {
		t.Errorf("Start = %+v, want (30,30)", *got.Start)
	}
	if got.End.X != 60 || got.End.Y != 50 {
		t.Errorf("End = %+v, want (60,50)", *got.End)
	}
}

func TestEmptyClipboard(t *testing.T) {
	c := New()
	if c.HasContent() {
		t.Error("new clipboard has content")
	}
	if got := c.Paste(viewport, 1.0); got != nil {
		t.Errorf("Paste on empty clipboard = %+v", got)
	}

	c.Copy(nil)
	if c.HasContent() {
		t.Error("Copy(nil) populated the slot")
	}

	c.Copy(source())
	c.Clear()
	if c.HasContent() {
		t.Error("Clear left content")
	}
}

func TestCopyIsDeep(t *testing.T) {
	c := New()
	a := source()
	c.Copy(a)

	a.X = 999
	got := c.Paste(viewport, 1.0)
	if got.X != 120 {
		t.Errorf("slot shares memory with the source: X = %g", got.X)
	}
}
