package mask

import (
	"image"
	"math"
)

// Dilate grows bright regions with a disk of radius round(radius). Each output sample is the
// maximum input sample within Euclidean distance R, so a binary mask gains 255 wherever a 255
// lies inside the disk. Radius 0 returns an unchanged copy. A disk that reaches across the
// whole image spreads the brightest sample everywhere.
func Dilate(src *image.Gray, radius float64) *image.Gray {
	rf := math.Round(radius)
	if rf <= 0 {
		return cloneGray(src)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if rf >= math.Hypot(float64(w-1), float64(h-1)) {
		return spreadMax(src)
	}
	r := int(rf)

	// span[dy+r] is the horizontal reach of the disk on row offset dy
	span := make([]int, 2*r+1)
	for dy := -r; dy <= r; dy++ {
		span[dy+r] = int(math.Floor(math.Sqrt(float64(r*r - dy*dy))))
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var best uint8
		rows:
			for dy := -r; dy <= r; dy++ {
				sy := y + dy
				if sy < 0 || sy >= h {
					continue
				}
				reach := span[dy+r]
				row := src.Pix[sy*src.Stride:]
				for sx := max(0, x-reach); sx <= min(w-1, x+reach); sx++ {
					if row[sx] > best {
						best = row[sx]
						if best == 255 {
							break rows
						}
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = best
		}
	}
	return dst
}

func spreadMax(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var best uint8
	for y := 0; y < h; y++ {
		for _, v := range src.Pix[y*src.Stride : y*src.Stride+w] {
			best = max(best, v)
		}
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i := range dst.Pix {
		dst.Pix[i] = best
	}
	return dst
}
