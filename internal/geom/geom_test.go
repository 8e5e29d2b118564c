package geom

import "testing"

func TestRectContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 20}
	if !r.Contains(10, 10) || !r.Contains(30, 30) || !r.Contains(20, 20) {
		t.Error("edge or interior point rejected")
	}
	if r.Contains(9.9, 20) || r.Contains(20, 30.1) {
		t.Error("outside point accepted")
	}
}

func TestRectNormalized(t *testing.T) {
	got := Rect{X: 50, Y: 60, Width: -30, Height: -40}.Normalized()
	want := Rect{X: 20, Y: 20, Width: 30, Height: 40}
	if got != want {
		t.Errorf("Normalized = %+v, want %+v", got, want)
	}

	already := Rect{X: 1, Y: 2, Width: 3, Height: 4}
	if already.Normalized() != already {
		t.Error("normalizing a normalized rect changed it")
	}
}

func TestRectUnion(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 20, Y: 5, Width: 10, Height: 10}
	got := a.Union(b)
	want := Rect{X: 0, Y: 0, Width: 30, Height: 15}
	if got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}

	if a.Union(Rect{}) != a {
		t.Error("union with empty rect changed the rect")
	}
	if (Rect{}).Union(b) != b {
		t.Error("empty union did not adopt the other rect")
	}
}

func TestRectInset(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 20}
	got := r.Inset(5)
	want := Rect{X: 15, Y: 15, Width: 10, Height: 10}
	if got != want {
		t.Errorf("Inset = %+v, want %+v", got, want)
	}

	grown := r.Inset(-5)
	want = Rect{X: 5, Y: 5, Width: 30, Height: 30}
	if grown != want {
		t.Errorf("negative Inset = %+v, want %+v", grown, want)
	}
}
