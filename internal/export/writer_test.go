package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/markline/markline/backend-go/internal/annotation"
	"github.com/markline/markline/backend-go/internal/geom"
)

func sampleAnnotations() []*annotation.Annotation {
	created := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	return []*annotation.Annotation{
		{
			ID: "anno_rect", Type: annotation.TypeRectangle, PageNumber: 1,
			X: 100, Y: 200, Width: 50, Height: 25,
			Style:  annotation.Style{StrokeColor: "#d32f2f", StrokeWidth: 2},
			Author: "alex", CreatedAt: created, ModifiedAt: created,
			Comments: []annotation.Comment{
				{ID: "cmt_1", Author: "sam", Text: "check this"},
				{ID: "cmt_2", Author: "alex", Text: "done"},
			},
		},
		{
			ID: "anno_arrow", Type: annotation.TypeArrow, PageNumber: 2,
			X: 10, Y: 10, Width: 30, Height: 40,
			Start:  &geom.Point{X: 10, Y: 10},
			End:    &geom.Point{X: 40, Y: 50},
			Author: "alex", CreatedAt: created, ModifiedAt: created,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleAnnotations()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}

	want := []string{"anno_rect", "1", "rectangle", "100", "200", "50", "25", "", "alex",
		"2026-02-10T08:30:00Z", "2026-02-10T08:30:00Z", "sam: check this | alex: done"}
	if diff := cmp.Diff(want, rows[1]); diff != "" {
		t.Errorf("first row (-want +got):\n%s", diff)
	}
	if rows[2][2] != "arrow" || rows[2][1] != "2" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil || len(rows) != 1 {
		t.Errorf("empty export rows = %v, err = %v", rows, err)
	}
}

func TestWriteXFDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXFDF(&buf, sampleAnnotations()); err != nil {
		t.Fatalf("WriteXFDF: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`xmlns="http://ns.adobe.com/xfdf/"`,
		`<square page="0" rect="100,200,150,225" name="anno_rect"`,
		`<line page="1"`,
		`start="10,10"`,
		`end="40,50"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestXFDFNameMapping(t *testing.T) {
	tests := []struct {
		in   annotation.Type
		want string
	}{
		{annotation.TypeRectangle, "square"},
		{annotation.TypeCircle, "circle"},
		{annotation.TypeHighlight, "highlight"},
		{annotation.TypeFreehand, "ink"},
		{annotation.TypeArrow, "line"},
		{annotation.TypeMeasurement, "line"},
		{annotation.TypeCloud, "polygon"},
		{annotation.TypeStamp, "stamp"},
		{annotation.TypeText, "freetext"},
		{annotation.TypeCallout, "freetext"},
	}
	for _, tt := range tests {
		if got := xfdfName(tt.in); got != tt.want {
			t.Errorf("xfdfName(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"site-plan.pdf", "site-plan"},
		{"floor 2 / rev B.pdf", "floor-2---rev-B"},
		{"", "annotations"},
		{".pdf", "annotations"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
