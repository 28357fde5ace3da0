// Package layer builds RGBA layers from masks and stacks them.
package layer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// AlphaMode controls how mask samples become alpha in a filled layer.
type AlphaMode struct {
	kind  alphaKind
	scale float64
	solid uint8
}

type alphaKind int

const (
	useMask alphaKind = iota
	scaleMask
	solidMask
)

// UseMask passes mask samples through as alpha.
func UseMask() AlphaMode { return AlphaMode{kind: useMask} }

// Scale multiplies mask samples by f. Negative factors act as zero, results clamp at 255.
func Scale(f float64) AlphaMode { return AlphaMode{kind: scaleMask, scale: f} }

// Solid turns every non-zero mask sample into alpha a.
func Solid(a uint8) AlphaMode { return AlphaMode{kind: solidMask, solid: a} }

func (m AlphaMode) String() string {
	switch m.kind {
	case scaleMask:
		return fmt.Sprintf("scale(%g)", m.scale)
	case solidMask:
		return fmt.Sprintf("solid(%d)", m.solid)
	default:
		return "use-mask"
	}
}

// ParseAlphaMode builds a mode from its name: use-mask, scale (with factor) or solid (with alpha).
func ParseAlphaMode(name string, factor float64, alpha uint8) (AlphaMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "use-mask":
		return UseMask(), nil
	case "scale":
		if math.IsNaN(factor) || math.IsInf(factor, 0) {
			return AlphaMode{}, fmt.Errorf("alpha scale %v must be finite", factor)
		}
		return Scale(factor), nil
	case "solid":
		return Solid(alpha), nil
	}
	return AlphaMode{}, fmt.Errorf("alpha mode %q: want use-mask, scale or solid", name)
}

func (m AlphaMode) resolve(v uint8) uint8 {
	switch m.kind {
	case scaleMask:
		s := float64(v) * math.Max(0, m.scale)
		return uint8(math.Round(math.Min(255, s)))
	case solidMask:
		if v > 0 {
			return m.solid
		}
		return 0
	default:
		return v
	}
}

// Fill describes how a mask is painted into a colored layer.
// Color.A acts as a global opacity multiplier.
type Fill struct {
	Color color.NRGBA
	Mode  AlphaMode
}

// NewFill paints c using the mask as alpha.
func NewFill(c color.NRGBA) Fill {
	return Fill{Color: c, Mode: UseMask()}
}

// WithMode returns a copy of f using mode.
func (f Fill) WithMode(mode AlphaMode) Fill {
	f.Mode = mode
	return f
}

// DefaultFill is opaque white driven directly by the mask.
func DefaultFill() Fill {
	return NewFill(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
}

// FromMask paints fill into a layer the size of mask. The final alpha is
// mode(mask) * fill.Color.A / 255.
func FromMask(mask *image.Gray, fill Fill) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	c := fill.Color
	for y := 0; y < b.Dy(); y++ {
		in := mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()]
		row := out.Pix[y*out.Stride:]
		for x, v := range in {
			a := uint16(fill.Mode.resolve(v)) * uint16(c.A) / 255
			i := x * 4
			row[i] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
			row[i+3] = uint8(a)
		}
	}
	return out
}

// ParseColor reads "#rrggbb", "#rrggbbaa" or the same without the leading '#'.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q: want #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
