package layer

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ErrDimensionMismatch is returned when a mask and the image it applies to differ in size.
var ErrDimensionMismatch = errors.New("dimension mismatch")

func mismatch(expected, found image.Point) error {
	return fmt.Errorf("%w: mask %dx%d does not match image %dx%d",
		ErrDimensionMismatch, found.X, found.Y, expected.X, expected.Y)
}

// Compose cuts the foreground out of rgb: color channels are copied unchanged and the alpha
// channel is taken from mask.
func Compose(rgb image.Image, mask *image.Gray) (*image.NRGBA, error) {
	size := rgb.Bounds().Size()
	if got := mask.Bounds().Size(); got != size {
		return nil, mismatch(size, got)
	}

	out := opaqueNRGBA(rgb)
	for y := 0; y < size.Y; y++ {
		row := out.Pix[y*out.Stride:]
		alpha := mask.Pix[y*mask.Stride : y*mask.Stride+size.X]
		for x, a := range alpha {
			row[x*4+3] = a
		}
	}
	return out, nil
}

// opaqueNRGBA copies img to a zero-origin NRGBA buffer and discards its alpha.
func opaqueNRGBA(img image.Image) *image.NRGBA {
	out := toNRGBA(img)
	if out == img {
		out = cloneNRGBA(out)
	}
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}

// toNRGBA converts img to a zero-origin NRGBA, returning it as-is when it already is one.
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	n := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+n], src.Pix[y*src.Stride:y*src.Stride+n])
	}
	return dst
}
