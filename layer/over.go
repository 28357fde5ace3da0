package layer

import (
	"image"
	"math"
)

// Over composites top over bottom (Porter-Duff source-over on straight alpha).
// Both layers must have the same size.
func Over(bottom, top *image.NRGBA) (*image.NRGBA, error) {
	size := bottom.Bounds().Size()
	if got := top.Bounds().Size(); got != size {
		return nil, mismatch(size, got)
	}

	out := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	n := size.X * 4
	for y := 0; y < size.Y; y++ {
		bg := bottom.Pix[y*bottom.Stride : y*bottom.Stride+n]
		fg := top.Pix[y*top.Stride : y*top.Stride+n]
		dst := out.Pix[y*out.Stride : y*out.Stride+n]
		for i := 0; i < n; i += 4 {
			fa := float64(fg[i+3]) / 255
			ba := float64(bg[i+3]) / 255
			oa := fa + ba*(1-fa)
			if oa > 0 {
				fw := fa / oa
				bw := ba * (1 - fa) / oa
				for c := 0; c < 3; c++ {
					dst[i+c] = channel(float64(fg[i+c])*fw + float64(bg[i+c])*bw)
				}
			}
			dst[i+3] = channel(oa * 255)
		}
	}
	return out, nil
}

// OverlayForeground paints layerMask with fill and places the cut-out of rgb, driven by
// foregroundMask, on top of it.
func OverlayForeground(rgb image.Image, foregroundMask, layerMask *image.Gray, fill Fill) (*image.NRGBA, error) {
	size := rgb.Bounds().Size()
	if got := layerMask.Bounds().Size(); got != size {
		return nil, mismatch(size, got)
	}
	fg, err := Compose(rgb, foregroundMask)
	if err != nil {
		return nil, err
	}
	return Over(FromMask(layerMask, fill), fg)
}

// OverlayImage places overlay on top of a layer painted from layerMask.
func OverlayImage(layerMask *image.Gray, fill Fill, overlay *image.NRGBA) (*image.NRGBA, error) {
	size := overlay.Bounds().Size()
	if got := layerMask.Bounds().Size(); got != size {
		return nil, mismatch(size, got)
	}
	return Over(FromMask(layerMask, fill), overlay)
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Min(255, math.Max(0, v))))
}
