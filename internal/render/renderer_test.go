package render

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/markline/markline/backend-go/internal/geom"
)

// fakeDocument is an in-memory document with a controllable draw delay.
type fakeDocument struct {
	pages  int
	size   geom.Size
	delay  time.Duration
	mu     sync.Mutex
	closed bool
	draws  int
}

func newFakeDocument(pages int) *fakeDocument {
	return &fakeDocument{pages: pages, size: geom.Size{Width: 612, Height: 792}}
}

func (d *fakeDocument) NumPages() int { return d.pages }

func (d *fakeDocument) PageSize(pageNumber int) (geom.Size, error) {
	if pageNumber < 1 || pageNumber > d.pages {
		return geom.Size{}, ErrPageOutOfRange
	}
	return d.size, nil
}

func (d *fakeDocument) DrawPage(ctx context.Context, pageNumber int, img *image.RGBA, scale float64) error {
	d.mu.Lock()
	d.draws++
	d.mu.Unlock()
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return drawBlankPage(ctx, img)
}

func (d *fakeDocument) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

type result struct {
	raster *Raster
	err    error
}

func renderSync(t *testing.T, r *Renderer, page int, scale float64) result {
	t.Helper()
	ch := make(chan result, 1)
	r.RenderPage(page, scale, func(raster *Raster, err error) {
		ch <- result{raster, err}
	})
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("render did not complete")
		return result{}
	}
}

func TestRenderPage(t *testing.T) {
	r := NewRenderer(Options{MaxRasterDim: 4096, Timeout: time.Second})
	if _, err := r.Open(newFakeDocument(3)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	res := renderSync(t, r, 1, 1.0)
	if res.err != nil {
		t.Fatalf("render: %v", res.err)
	}
	if w, h := res.raster.Width(), res.raster.Height(); w != 612 || h != 792 {
		t.Errorf("raster %dx%d, want 612x792", w, h)
	}
	if res.raster.Scale != 1.0 {
		t.Errorf("scale = %v, want 1.0", res.raster.Scale)
	}
	if got := r.State().Status; got != StatusReady {
		t.Errorf("status = %v, want ready", got)
	}
}

func TestRenderPageOutOfRange(t *testing.T) {
	r := NewRenderer(Options{})
	r.Open(newFakeDocument(2))
	defer r.Close()

	res := renderSync(t, r, 3, 1.0)
	if !errors.Is(res.err, ErrPageOutOfRange) {
		t.Errorf("err = %v, want ErrPageOutOfRange", res.err)
	}
	res = renderSync(t, r, 0, 1.0)
	if !errors.Is(res.err, ErrPageOutOfRange) {
		t.Errorf("err = %v, want ErrPageOutOfRange", res.err)
	}
}

func TestRenderWithoutDocument(t *testing.T) {
	r := NewRenderer(Options{})
	res := renderSync(t, r, 1, 1.0)
	if !errors.Is(res.err, ErrDocumentLoad) {
		t.Errorf("err = %v, want ErrDocumentLoad", res.err)
	}
}

func TestScaleClampReportsEffectiveScale(t *testing.T) {
	r := NewRenderer(Options{MaxRasterDim: 1000, Timeout: time.Second})
	r.Open(newFakeDocument(1))
	defer r.Close()

	// 792 * 4 exceeds the 1000px cap; the raster must shrink and carry the
	// clamped scale so overlay projection stays consistent with the pixels.
	res := renderSync(t, r, 1, 4.0)
	if res.err != nil {
		t.Fatalf("render: %v", res.err)
	}
	if res.raster.Height() > 1000 || res.raster.Width() > 1000 {
		t.Errorf("raster %dx%d exceeds cap", res.raster.Width(), res.raster.Height())
	}
	wantScale := 1000.0 / 792.0
	if diff := res.raster.Scale - wantScale; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("effective scale = %v, want %v", res.raster.Scale, wantScale)
	}
}

func TestRenderTimeout(t *testing.T) {
	r := NewRenderer(Options{Timeout: 30 * time.Millisecond})
	doc := newFakeDocument(1)
	doc.delay = time.Second
	r.Open(doc)
	defer r.Close()

	res := renderSync(t, r, 1, 1.0)
	if !errors.Is(res.err, ErrRenderTimeout) {
		t.Fatalf("err = %v, want ErrRenderTimeout", res.err)
	}
	if got := r.State().Status; got != StatusError {
		t.Errorf("status = %v, want error", got)
	}
}

func TestNewerRenderSupersedesOlder(t *testing.T) {
	r := NewRenderer(Options{Timeout: 5 * time.Second})
	doc := newFakeDocument(2)
	doc.delay = 100 * time.Millisecond
	r.Open(doc)
	defer r.Close()

	firstCh := make(chan result, 1)
	r.RenderPage(1, 1.0, func(raster *Raster, err error) {
		firstCh <- result{raster, err}
	})

	// Preempt immediately with a second request.
	secondCh := make(chan result, 1)
	r.RenderPage(2, 1.0, func(raster *Raster, err error) {
		secondCh <- result{raster, err}
	})

	first := <-firstCh
	if !errors.Is(first.err, ErrRenderCancelled) {
		t.Errorf("superseded render err = %v, want ErrRenderCancelled", first.err)
	}

	second := <-secondCh
	if second.err != nil {
		t.Fatalf("winning render: %v", second.err)
	}
	if second.raster.Page != 2 {
		t.Errorf("winning raster page = %d, want 2", second.raster.Page)
	}
	if got := r.State(); got.Status != StatusReady || got.Page != 2 {
		t.Errorf("state = %+v, want ready on page 2", got)
	}
}

func TestOpenClosesPriorDocument(t *testing.T) {
	r := NewRenderer(Options{})
	first := newFakeDocument(1)
	r.Open(first)
	r.Open(newFakeDocument(1))
	defer r.Close()

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Error("prior document left open")
	}
}

func TestRescaledPreview(t *testing.T) {
	raster := &Raster{
		Image: image.NewRGBA(image.Rect(0, 0, 100, 200)),
		Page:  1,
		Scale: 1.0,
	}

	preview := raster.Rescaled(2.0)
	if preview.Width() != 200 || preview.Height() != 400 {
		t.Errorf("preview %dx%d, want 200x400", preview.Width(), preview.Height())
	}
	if preview.Scale != 2.0 {
		t.Errorf("preview scale = %v", preview.Scale)
	}

	if same := raster.Rescaled(1.0); same != raster {
		t.Error("identity rescale allocated a new raster")
	}
}

func TestMinimumRasterSize(t *testing.T) {
	r := NewRenderer(Options{Timeout: time.Second})
	doc := newFakeDocument(1)
	doc.size = geom.Size{Width: 2, Height: 2}
	r.Open(doc)
	defer r.Close()

	res := renderSync(t, r, 1, 0.05)
	if res.err != nil {
		t.Fatalf("render: %v", res.err)
	}
	if res.raster.Width() < 1 || res.raster.Height() < 1 {
		t.Errorf("degenerate raster %dx%d", res.raster.Width(), res.raster.Height())
	}
}
