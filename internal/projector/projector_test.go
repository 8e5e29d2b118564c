package projector

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/markline/markline/backend-go/internal/geom"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestRoundTrip(t *testing.T) {
	rects := []geom.Rect{
		{X: 100, Y: 100, Width: 50, Height: 50},
		{X: 0, Y: 0, Width: 612, Height: 792},
		{X: 12.5, Y: 731.25, Width: 3.3, Height: 0.1},
	}
	scales := []float64{0.05, 0.8, 1.0, 2.0, 16.0}

	for _, r := range rects {
		for _, s := range scales {
			got := ToDocumentSpace(ToRenderSpace(r, s), s)
			if diff := cmp.Diff(r, got, approx); diff != "" {
				t.Errorf("round trip at scale %v (-want +got):\n%s", s, diff)
			}
		}
	}
}

func TestZoomReprojection(t *testing.T) {
	// A rect placed on screen at one zoom must land at the scaled position
	// when the same document geometry is reprojected at another zoom.
	placed := geom.Rect{X: 100, Y: 100, Width: 50, Height: 50}

	doc := ToDocumentSpace(placed, 0.8)
	want := geom.Rect{X: 125, Y: 125, Width: 62.5, Height: 62.5}
	if diff := cmp.Diff(want, doc, approx); diff != "" {
		t.Fatalf("document geometry (-want +got):\n%s", diff)
	}

	rendered := ToRenderSpace(doc, 1.6)
	want = geom.Rect{X: 200, Y: 200, Width: 100, Height: 100}
	if diff := cmp.Diff(want, rendered, approx); diff != "" {
		t.Errorf("reprojected geometry (-want +got):\n%s", diff)
	}
}

func TestComputeFitScale(t *testing.T) {
	tests := []struct {
		name     string
		page     geom.Size
		viewport geom.Size
		want     float64
	}{
		{"page smaller than viewport stays 1:1", geom.Size{Width: 612, Height: 792}, geom.Size{Width: 1000, Height: 1000}, 1.0},
		{"wide page limited by width", geom.Size{Width: 1000, Height: 500}, geom.Size{Width: 500, Height: 500}, 0.5},
		{"tall page limited by height", geom.Size{Width: 500, Height: 1000}, geom.Size{Width: 500, Height: 250}, 0.25},
		{"degenerate page falls back to 1", geom.Size{}, geom.Size{Width: 800, Height: 600}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFitScale(tt.page, tt.viewport)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ComputeFitScale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveScaleClampsToMinimum(t *testing.T) {
	if got := EffectiveScale(0.5, 2.0); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("EffectiveScale(0.5, 2.0) = %v, want 1.0", got)
	}
	if got := EffectiveScale(0.1, 0.1); got != MinScale {
		t.Errorf("EffectiveScale(0.1, 0.1) = %v, want %v", got, MinScale)
	}
}

func TestLengthProjection(t *testing.T) {
	if got := LengthToRenderSpace(10, 2.0); got != 20 {
		t.Errorf("LengthToRenderSpace = %v, want 20", got)
	}
	if got := LengthToDocumentSpace(20, 2.0); got != 10 {
		t.Errorf("LengthToDocumentSpace = %v, want 10", got)
	}
}
