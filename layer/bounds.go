package layer

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// ErrNoForeground is returned when no pixel passes the alpha threshold.
var ErrNoForeground = errors.New("no foreground region found")

// AlphaBounds returns the smallest rectangle holding every pixel whose alpha exceeds threshold.
func AlphaBounds(img *image.NRGBA, threshold uint8) (image.Rectangle, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			if row[x*4+3] <= threshold {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, ErrNoForeground
	}
	return image.Rect(minX, minY, maxX+1, maxY+1).Add(b.Min), nil
}

// Crop copies rect out of img into a new zero-origin buffer. rect is clipped to img.
func Crop(img *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	rect = rect.Intersect(img.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// TrimToSubject crops a cut-out to the bounds of its visible pixels, keeping margin pixels of
// padding on every side where the image allows it.
func TrimToSubject(img *image.NRGBA, margin int) (*image.NRGBA, error) {
	rect, err := AlphaBounds(img, 0)
	if err != nil {
		return nil, err
	}
	return Crop(img, rect.Inset(-max(0, margin))), nil
}
