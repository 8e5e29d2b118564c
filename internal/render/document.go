package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"github.com/markline/markline/backend-go/internal/geom"
)

// Document is a paginated vector document that the renderer can rasterize.
// Page numbers are 1-based throughout.
type Document interface {
	NumPages() int
	PageSize(pageNumber int) (geom.Size, error)
	DrawPage(ctx context.Context, pageNumber int, img *image.RGBA, scale float64) error
	Close() error
}

// letterSize is the fallback page size when a page carries no MediaBox.
var letterSize = geom.Size{Width: 612, Height: 792}

// PDFDocument reads page structure from a PDF byte source.
type PDFDocument struct {
	r        *pdf.Reader
	numPages int

	mu    sync.Mutex
	sizes map[int]geom.Size
}

var _ Document = (*PDFDocument)(nil)

// OpenPDF opens a PDF file from disk.
func OpenPDF(path string) (*PDFDocument, error) {
	r, err := pdf.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}
	return newPDFDocument(r)
}

// LoadPDF parses a PDF document from an in-memory byte source.
func LoadPDF(data []byte) (*PDFDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}
	return newPDFDocument(r)
}

func newPDFDocument(r *pdf.Reader) (*PDFDocument, error) {
	n, err := pagetree.NumPages(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}
	if n < 1 {
		r.Close()
		return nil, fmt.Errorf("%w: document has no pages", ErrDocumentLoad)
	}
	return &PDFDocument{
		r:        r,
		numPages: n,
		sizes:    make(map[int]geom.Size),
	}, nil
}

// NumPages returns the total page count.
func (d *PDFDocument) NumPages() int {
	return d.numPages
}

// PageSize returns the MediaBox dimensions of the page in document units.
func (d *PDFDocument) PageSize(pageNumber int) (geom.Size, error) {
	if pageNumber < 1 || pageNumber > d.numPages {
		return geom.Size{}, ErrPageOutOfRange
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if size, ok := d.sizes[pageNumber]; ok {
		return size, nil
	}

	_, dict, err := pagetree.GetPage(d.r, pageNumber-1)
	if err != nil {
		return geom.Size{}, fmt.Errorf("get page %d: %w", pageNumber, err)
	}

	size := letterSize
	if box, err := pdf.GetRectangle(d.r, dict["MediaBox"]); err == nil && box != nil {
		w := box.URx - box.LLx
		h := box.URy - box.LLy
		if w > 0 && h > 0 {
			size = geom.Size{Width: w, Height: h}
		}
	}

	d.sizes[pageNumber] = size
	return size, nil
}

// DrawPage rasterizes the page background into img. Page content is drawn
// as a blank sheet with a hairline edge; vector content rasterization is
// delegated to the host's raster plugin when one is configured.
func (d *PDFDocument) DrawPage(ctx context.Context, pageNumber int, img *image.RGBA, scale float64) error {
	if pageNumber < 1 || pageNumber > d.numPages {
		return ErrPageOutOfRange
	}
	return drawBlankPage(ctx, img)
}

// Close releases the underlying reader.
func (d *PDFDocument) Close() error {
	return d.r.Close()
}
