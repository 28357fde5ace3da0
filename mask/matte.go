// Package mask turns a raw matte from the matting model into a clean mask.
//
// A Pipeline records blur, threshold, dilate and fill-holes steps and applies the enabled ones
// in the fixed order blur -> threshold -> dilate -> fill-holes. Resolve decides whether a consumer
// uses the raw matte or the processed mask.
package mask

import (
	"fmt"
	"image"
	"math"
)

// Matte is the single-channel foreground probability map produced by inference.
// It is immutable once built; accessors hand out copies.
type Matte struct {
	img *image.Gray
}

// NewMatte copies img into a matte anchored at the origin.
func NewMatte(img *image.Gray) (*Matte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty matte", ErrInvalidParameter)
	}
	return &Matte{img: cloneGray(img)}, nil
}

// MatteFromFloats builds a matte from row-major normalized samples in [0.0, 1.0].
// Samples outside that range are clamped.
func MatteFromFloats(width, height int, samples []float32) (*Matte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: matte size %dx%d", ErrInvalidParameter, width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("%w: %d samples for a %dx%d matte", ErrInvalidParameter, len(samples), width, height)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := y * img.Stride
		for x := 0; x < width; x++ {
			v := float64(samples[y*width+x])
			if math.IsNaN(v) {
				v = 0
			}
			v = math.Min(1, math.Max(0, v))
			img.Pix[row+x] = uint8(v*255 + 0.5)
		}
	}
	return &Matte{img: img}, nil
}

// Bounds returns the matte rectangle, always anchored at (0, 0).
func (m *Matte) Bounds() image.Rectangle {
	return m.img.Bounds()
}

// Image returns a copy of the matte samples.
func (m *Matte) Image() *image.Gray {
	return cloneGray(m.img)
}

// Mask is the output of Pipeline.Processed. It has the dimensions of the matte it came from.
type Mask struct {
	img    *image.Gray
	binary bool
}

// Image returns a copy of the processed samples.
func (m *Mask) Image() *image.Gray {
	return cloneGray(m.img)
}

// Bounds returns the mask rectangle.
func (m *Mask) Bounds() image.Rectangle {
	return m.img.Bounds()
}

// Binary reports whether a threshold step ran, restricting samples to 0 and 255.
func (m *Mask) Binary() bool {
	return m.binary
}

// cloneGray copies src into a new buffer with a tight stride and a zero origin.
func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[y*src.Stride:y*src.Stride+b.Dx()])
	}
	return dst
}
