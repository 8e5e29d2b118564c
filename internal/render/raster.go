package render

import (
	"context"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Raster is a completed page rasterization. The pixel dimensions of Image
// are authoritative: Scale is the effective scale actually used, after any
// max-dimension clamping, and is the denominator the projector must use.
type Raster struct {
	Image      *image.RGBA
	Page       int
	Scale      float64
	Generation int64
}

// Width returns the pixel width of the raster.
func (r *Raster) Width() int { return r.Image.Bounds().Dx() }

// Height returns the pixel height of the raster.
func (r *Raster) Height() int { return r.Image.Bounds().Dy() }

// Rescaled returns a bilinear preview of the raster at a new scale. Used to
// keep the view responsive while a fresh render at the target scale is in
// flight; the result is replaced as soon as that render completes.
func (r *Raster) Rescaled(scale float64) *Raster {
	if scale == r.Scale {
		return r
	}
	factor := scale / r.Scale
	w := max(int(math.Ceil(float64(r.Width())*factor)), 1)
	h := max(int(math.Ceil(float64(r.Height())*factor)), 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), r.Image, r.Image.Bounds(), xdraw.Src, nil)

	return &Raster{
		Image:      dst,
		Page:       r.Page,
		Scale:      scale,
		Generation: r.Generation,
	}
}

// newSurface allocates the backing pixel buffer, converting an allocation
// panic into ErrSurfaceUnavailable.
func newSurface(w, h int) (img *image.RGBA, err error) {
	defer func() {
		if recover() != nil {
			img = nil
			err = ErrSurfaceUnavailable
		}
	}()
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// drawBlankPage fills the surface with the page background and a hairline
// edge. Checks ctx between row bands so a superseded render stops promptly.
func drawBlankPage(ctx context.Context, img *image.RGBA) error {
	bounds := img.Bounds()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	edge := color.RGBA{R: 224, G: 224, B: 224, A: 255}

	const band = 64
	for y0 := bounds.Min.Y; y0 < bounds.Max.Y; y0 += band {
		if err := ctx.Err(); err != nil {
			return err
		}
		y1 := min(y0+band, bounds.Max.Y)
		for y := y0; y < y1; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				img.SetRGBA(x, y, white)
			}
		}
	}

	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		img.SetRGBA(x, bounds.Min.Y, edge)
		img.SetRGBA(x, bounds.Max.Y-1, edge)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		img.SetRGBA(bounds.Min.X, y, edge)
		img.SetRGBA(bounds.Max.X-1, y, edge)
	}

	return nil
}
