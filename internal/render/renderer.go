// Package render owns asynchronous, cancelable, memory-bounded page
// rasterization. A newer render request always preempts an older one; late
// completions carrying a stale generation are discarded without side effects.
package render

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/markline/markline/backend-go/internal/geom"
)

// Status is the rasterization state exposed to the host.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusRendering Status = "rendering"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// State is the transient per-page render state.
type State struct {
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	Scale      float64 `json:"scale"`
	Status     Status  `json:"status"`
	Generation int64   `json:"generation"`
	Error      string  `json:"error,omitempty"`
}

// Options configures a Renderer.
type Options struct {
	// MaxRasterDim bounds the longer raster side in pixels. Requests that
	// would exceed it are clamped and the effective scale reported back.
	MaxRasterDim int

	// Timeout bounds a single page render. Exceeding it cancels the render
	// and surfaces ErrRenderTimeout instead of hanging.
	Timeout time.Duration

	// OnState receives every render state transition.
	OnState func(State)
}

// Renderer loads a document and rasterizes pages on demand.
type Renderer struct {
	mu      sync.Mutex
	doc     Document
	state   State
	cancel  context.CancelFunc
	maxDim  int
	timeout time.Duration
	onState func(State)
}

// NewRenderer creates a renderer with the given bounds.
func NewRenderer(opts Options) *Renderer {
	maxDim := opts.MaxRasterDim
	if maxDim <= 0 {
		maxDim = 8192
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Renderer{
		state:   State{Status: StatusIdle},
		maxDim:  maxDim,
		timeout: timeout,
		onState: opts.OnState,
	}
}

// Open attaches a document and returns its page count. Any render in flight
// for a previously attached document is canceled, and that document closed.
func (r *Renderer) Open(doc Document) (int, error) {
	r.mu.Lock()
	r.cancelInFlightLocked()
	if r.doc != nil {
		r.doc.Close()
	}
	r.doc = doc
	r.state = State{
		TotalPages: doc.NumPages(),
		Status:     StatusLoading,
		Generation: r.state.Generation,
	}
	r.mu.Unlock()

	r.emitState()
	return doc.NumPages(), nil
}

// State returns a copy of the current render state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Document returns the currently attached document, or nil.
func (r *Renderer) Document() Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// Close cancels any in-flight render and releases the attached document.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelInFlightLocked()
	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	r.state = State{Status: StatusIdle, Generation: r.state.Generation}
	return err
}

// RenderPage rasterizes a page at the requested scale. The render runs
// asynchronously; done is invoked exactly once with the result unless the
// render is superseded, in which case it is invoked with ErrRenderCancelled.
// The raster's Scale field carries the effective (possibly clamped) scale.
func (r *Renderer) RenderPage(pageNumber int, scale float64, done func(*Raster, error)) {
	r.mu.Lock()
	doc := r.doc
	if doc == nil {
		r.mu.Unlock()
		done(nil, ErrDocumentLoad)
		return
	}
	if pageNumber < 1 || pageNumber > doc.NumPages() {
		r.mu.Unlock()
		done(nil, ErrPageOutOfRange)
		return
	}

	r.cancelInFlightLocked()
	r.state.Generation++
	gen := r.state.Generation

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	r.cancel = cancel

	r.state.Page = pageNumber
	r.state.Scale = scale
	r.state.Status = StatusRendering
	r.state.Error = ""
	r.mu.Unlock()

	r.emitState()

	go r.renderPage(ctx, cancel, doc, pageNumber, scale, gen, done)
}

func (r *Renderer) renderPage(ctx context.Context, cancel context.CancelFunc, doc Document, pageNumber int, scale float64, gen int64, done func(*Raster, error)) {
	defer cancel()

	raster, err := r.rasterize(ctx, doc, pageNumber, scale, gen)

	r.mu.Lock()
	if r.state.Generation != gen {
		// Superseded by a newer render; drop the result silently so a
		// stale completion never overwrites the current state.
		r.mu.Unlock()
		done(nil, ErrRenderCancelled)
		return
	}
	if err != nil {
		err = r.mapRenderErr(ctx, err)
		if errors.Is(err, ErrRenderCancelled) {
			r.mu.Unlock()
			done(nil, err)
			return
		}
		r.state.Status = StatusError
		r.state.Error = err.Error()
		r.mu.Unlock()
		r.emitState()
		slog.Warn("page render failed", "page", pageNumber, "error", err)
		done(nil, err)
		return
	}

	r.state.Status = StatusReady
	r.state.Scale = raster.Scale
	r.mu.Unlock()

	r.emitState()
	done(raster, nil)
}

func (r *Renderer) rasterize(ctx context.Context, doc Document, pageNumber int, scale float64, gen int64) (*Raster, error) {
	size, err := doc.PageSize(pageNumber)
	if err != nil {
		return nil, err
	}

	scale = r.clampScale(size, scale)
	w := min(max(int(math.Ceil(size.Width*scale)), 1), r.maxDim)
	h := min(max(int(math.Ceil(size.Height*scale)), 1), r.maxDim)

	// Allocation of the backing pixel buffer can only fail by panicking;
	// translate that into the error taxonomy instead of crossing the
	// event boundary with a panic.
	img, err := newSurface(w, h)
	if err != nil {
		return nil, err
	}

	if err := doc.DrawPage(ctx, pageNumber, img, scale); err != nil {
		return nil, err
	}

	return &Raster{
		Image:      img,
		Page:       pageNumber,
		Scale:      scale,
		Generation: gen,
	}, nil
}

// clampScale bounds the raster's longer side to maxDim pixels.
func (r *Renderer) clampScale(size geom.Size, scale float64) float64 {
	longSide := max(size.Width, size.Height)
	if longSide*scale > float64(r.maxDim) {
		return float64(r.maxDim) / longSide
	}
	return scale
}

// mapRenderErr translates context errors into the render taxonomy. A render
// that ran out of time is a timeout; one preempted by a newer request is a
// cancellation.
func (r *Renderer) mapRenderErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrRenderTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return ErrRenderCancelled
	default:
		return err
	}
}

func (r *Renderer) cancelInFlightLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Renderer) emitState() {
	r.mu.Lock()
	cb := r.onState
	state := r.state
	r.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}
