package rembg

import (
	"fmt"
	"math"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Filter names a resampling filter used around inference.
type Filter string

const (
	FilterNearest    Filter = "nearest"
	FilterTriangle   Filter = "triangle"
	FilterCatmullRom Filter = "catmull-rom"
	FilterGaussian   Filter = "gaussian"
	FilterLanczos3   Filter = "lanczos3"
)

// ParseFilter accepts the filter names plus the aliases bilinear and bicubic.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterNearest, FilterTriangle, FilterCatmullRom, FilterGaussian, FilterLanczos3:
		return f, nil
	case "bilinear":
		return FilterTriangle, nil
	case "bicubic", "catmullrom":
		return FilterCatmullRom, nil
	}
	return "", fmt.Errorf("unknown resample filter %q (want nearest, triangle, catmull-rom, gaussian or lanczos3)", s)
}

var (
	gaussianKernel = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		return math.Exp(-2 * t * t)
	}}
	lanczos3Kernel = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		pt := math.Pi * t
		return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
	}}
)

// Interpolator returns the x/image scaler for the filter, used to shrink model input.
func (f Filter) Interpolator() draw.Interpolator {
	switch f {
	case FilterNearest:
		return draw.NearestNeighbor
	case FilterCatmullRom:
		return draw.CatmullRom
	case FilterGaussian:
		return gaussianKernel
	case FilterLanczos3:
		return lanczos3Kernel
	default:
		return draw.BiLinear
	}
}

// Interpolation returns the nfnt/resize function for the filter, used to scale mattes back up.
// nfnt has no gaussian kernel; Mitchell-Netravali is the closest smooth, non-ringing choice.
func (f Filter) Interpolation() resize.InterpolationFunction {
	switch f {
	case FilterNearest:
		return resize.NearestNeighbor
	case FilterTriangle:
		return resize.Bilinear
	case FilterCatmullRom:
		return resize.Bicubic
	case FilterGaussian:
		return resize.MitchellNetravali
	default:
		return resize.Lanczos3
	}
}
