// Package rembg produces foreground mattes for images.
package rembg

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/util"
)

// Matter estimates a foreground matte the same size as img.
type Matter interface {
	Matte(ctx context.Context, img image.Image) (*mask.Matte, error)
}

// ErrInference marks every failure raised while producing a matte.
var ErrInference = errors.New("inference failed")

// InferenceError records the matting stage that failed.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInference, e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() []error {
	return []error{ErrInference, e.Err}
}

func inferenceError(stage string, err error) error {
	return &InferenceError{Stage: stage, Err: err}
}

// File loads a precomputed matte from disk instead of running a model.
type File struct {
	Path   string
	Filter Filter
}

var _ Matter = (*File)(nil)

// Matte implements Matter. The stored image is converted to grayscale and scaled to img.
func (f *File) Matte(_ context.Context, img image.Image) (*mask.Matte, error) {
	src, err := util.OpenImage(f.Path)
	if err != nil {
		return nil, inferenceError("load matte", err)
	}
	gray := fitGray(src, img.Bounds().Size(), f.Filter)
	m, err := mask.NewMatte(gray)
	if err != nil {
		return nil, inferenceError("load matte", err)
	}
	return m, nil
}

// Alpha uses the image's own alpha channel when it already carries transparency and otherwise
// asks Fallback.
type Alpha struct {
	Fallback Matter
}

var _ Matter = (*Alpha)(nil)

// Matte implements Matter.
func (a *Alpha) Matte(ctx context.Context, img image.Image) (*mask.Matte, error) {
	if alpha, ok := usefulAlpha(img); ok {
		m, err := mask.NewMatte(alpha)
		if err != nil {
			return nil, inferenceError("alpha matte", err)
		}
		return m, nil
	}
	if a.Fallback == nil {
		return nil, inferenceError("alpha matte", errors.New("image is fully opaque and no matting model is configured"))
	}
	return a.Fallback.Matte(ctx, img)
}

// usefulAlpha extracts the alpha channel if any pixel is not fully opaque.
func usefulAlpha(img image.Image) (*image.Gray, bool) {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	alpha := image.NewGray(nrgba.Bounds())
	transparent := false
	for y := 0; y < b.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := alpha.Pix[y*alpha.Stride:]
		for x := 0; x < b.Dx(); x++ {
			a := src[x*4+3]
			dst[x] = a
			if a != 255 {
				transparent = true
			}
		}
	}
	return alpha, transparent
}

// fitGray converts img to grayscale and scales it to size when needed.
func fitGray(img image.Image, size image.Point, filter Filter) *image.Gray {
	if img.Bounds().Size() != size {
		img = resize.Resize(uint(size.X), uint(size.Y), img, filter.Interpolation())
	}
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
