package annotation

import (
	"testing"

	"github.com/markline/markline/backend-go/internal/geom"
)

func TestCloneIsDeep(t *testing.T) {
	a := &Annotation{
		ID: "anno_1", Type: TypeArrow, PageNumber: 1,
		X: 10, Y: 10, Width: 30, Height: 40,
		Start:    &geom.Point{X: 10, Y: 10},
		End:      &geom.Point{X: 40, Y: 50},
		Points:   []geom.Point{{X: 1, Y: 1}},
		Comments: []Comment{{ID: "cmt_1", Text: "hi"}},
	}

	c := a.Clone()
	c.Start.X = 99
	c.Points[0].X = 99
	c.Comments[0].Text = "changed"

	if a.Start.X != 10 {
		t.Error("Start shared between clone and original")
	}
	if a.Points[0].X != 1 {
		t.Error("Points shared between clone and original")
	}
	if a.Comments[0].Text != "hi" {
		t.Error("Comments shared between clone and original")
	}
}

func TestTypeValid(t *testing.T) {
	for _, k := range Types {
		if !k.Valid() {
			t.Errorf("%v not valid", k)
		}
	}
	if Type("sparkle").Valid() {
		t.Error("unknown type accepted")
	}
}

func TestSingleShot(t *testing.T) {
	if !TypeText.SingleShot() || !TypeStamp.SingleShot() {
		t.Error("text and stamp are single-shot")
	}
	for _, k := range []Type{TypeRectangle, TypeCircle, TypeArrow, TypeCloud, TypeHighlight, TypeMeasurement, TypeFreehand, TypeCallout} {
		if k.SingleShot() {
			t.Errorf("%v reported single-shot", k)
		}
	}
}
