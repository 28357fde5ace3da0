package mask

import (
	"image"
	"math"
	"strconv"
	"strings"
)

// Threshold binarizes src: samples >= level become 255, the rest 0.
func Threshold(src *image.Gray, level uint8) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x, v := range in {
			if v >= level {
				out[x] = 255
			}
		}
	}
	return dst
}

// ParseThreshold reads a threshold written either as an integer in [0, 255] ("120"),
// a fraction in [0.0, 1.0] ("0.5"), or an integral float in [0, 255] ("200.0").
func ParseThreshold(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 255 {
			return 0, paramError("threshold", s, "expected 0-255 or 0.0-1.0")
		}
		return uint8(n), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, paramError("threshold", s, "must be numeric (0-255 or 0.0-1.0)")
	}
	if f >= 0 && f <= 1 {
		return fractionToLevel(f)
	}
	if f == math.Trunc(f) && f >= 0 && f <= 255 {
		return uint8(f), nil
	}
	return 0, paramError("threshold", s, "expected 0-255 or 0.0-1.0")
}

func fractionToLevel(v float64) (uint8, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, paramError("threshold", v, "expected 0.0-1.0")
	}
	return uint8(math.Round(v * 255)), nil
}
