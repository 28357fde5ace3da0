package mask

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// maxDirectTail bounds how many folded tail taps are summed one by one before the integral
// of the gaussian is used instead.
const maxDirectTail = 1 << 16

// gaussianKernel returns a normalized 1-D kernel with half-width ceil(3*sigma), reaching at
// most limit taps from the center. Taps past limit always sample the edge once clamped, so
// their weight is folded into the outermost taps.
func gaussianKernel(sigma float64, limit int) []float64 {
	halfF := math.Ceil(3 * sigma)
	half := limit
	if halfF < float64(limit) {
		half = int(halfF)
	}

	kernel := make([]float64, 2*half+1)
	denom := 2 * sigma * sigma
	for i := -half; i <= half; i++ {
		kernel[i+half] = gaussianWeight(float64(i), denom)
	}
	if tail := gaussianTail(sigma, half, halfF); tail > 0 {
		kernel[0] += tail
		kernel[2*half] += tail
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// gaussianWeight is exp(-i²/denom). The center weighs 1 even when denom underflows to zero.
func gaussianWeight(i, denom float64) float64 {
	if i == 0 {
		return 1
	}
	return math.Exp(-i * i / denom)
}

// gaussianTail sums the unnormalized weights for offsets half+1 through last.
func gaussianTail(sigma float64, half int, last float64) float64 {
	from := float64(half) + 1
	if last < from {
		return 0
	}
	if last-from < maxDirectTail {
		denom := 2 * sigma * sigma
		var sum float64
		for i := from; i <= last; i++ {
			sum += gaussianWeight(i, denom)
		}
		return sum
	}
	s := sigma * math.Sqrt2
	return sigma * math.Sqrt(math.Pi/2) * (math.Erf((last+0.5)/s) - math.Erf((from-0.5)/s))
}

// GaussianBlur applies a separable gaussian blur. Samples past the edge repeat the edge value.
// sigma must be greater than zero.
func GaussianBlur(src *image.Gray, sigma float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewGray(image.Rect(0, 0, w, h))
	}

	// horizontal pass into a float buffer
	kernel := gaussianKernel(sigma, w-1)
	half := len(kernel) / 2
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			var sum float64
			for k, weight := range kernel {
				sx := clamp(x+k-half, 0, w-1)
				sum += weight * float64(row[sx])
			}
			tmp[y*w+x] = sum
		}
	}

	// vertical pass
	kernel = gaussianKernel(sigma, h-1)
	half = len(kernel) / 2
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, weight := range kernel {
				sy := clamp(y+k-half, 0, h-1)
				sum += weight * tmp[sy*w+x]
			}
			dst.Pix[y*dst.Stride+x] = toByte(sum)
		}
	}
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Min(255, math.Max(0, v))))
}
