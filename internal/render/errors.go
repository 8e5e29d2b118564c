package render

import "errors"

var (
	// ErrDocumentLoad indicates the document source could not be parsed.
	// Fatal for that document; recoverable by retrying with a new source.
	ErrDocumentLoad = errors.New("document could not be loaded")

	// ErrRenderTimeout indicates a page render exceeded the configured
	// deadline and was canceled.
	ErrRenderTimeout = errors.New("page render timed out")

	// ErrRenderCancelled indicates a render was superseded by a newer
	// request. Never surfaced to the user; the newer render replaces it.
	ErrRenderCancelled = errors.New("page render cancelled")

	// ErrSurfaceUnavailable indicates the raster surface could not be
	// allocated for the requested dimensions.
	ErrSurfaceUnavailable = errors.New("raster surface unavailable")

	// ErrPageOutOfRange indicates a page number outside 1..NumPages.
	ErrPageOutOfRange = errors.New("page number out of range")
)
