// Package trace turns binary masks into SVG outlines.
package trace

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// ColorMode selects between a single-color trace and a clustered color trace.
type ColorMode string

const (
	ColorBinary ColorMode = "binary"
	ColorColor  ColorMode = "color"
)

// Hierarchy controls how color layers are stacked.
type Hierarchy string

const (
	HierarchyStacked Hierarchy = "stacked"
	HierarchyCutout  Hierarchy = "cutout"
)

// Mode selects the curve fitting applied to traced paths.
type Mode string

const (
	ModePixel   Mode = "pixel"
	ModePolygon Mode = "polygon"
	ModeSpline  Mode = "spline"
)

// Config holds tracer settings. Field names follow the vtracer options.
type Config struct {
	ColorMode       ColorMode `toml:"color_mode"`
	Hierarchy       Hierarchy `toml:"hierarchy"`
	Mode            Mode      `toml:"mode"`
	FilterSpeckle   int       `toml:"filter_speckle"`
	ColorPrecision  int       `toml:"color_precision"`
	LayerDifference int       `toml:"layer_difference"`
	CornerThreshold int       `toml:"corner_threshold"`
	LengthThreshold float64   `toml:"length_threshold"`
	MaxIterations   int       `toml:"max_iterations"`
	SpliceThreshold int       `toml:"splice_threshold"`
	PathPrecision   *int      `toml:"path_precision"`
	Invert          bool      `toml:"invert"`
}

// DefaultConfig returns the vtracer defaults for a binary mask.
func DefaultConfig() Config {
	precision := 2
	return Config{
		ColorMode:       ColorBinary,
		Hierarchy:       HierarchyStacked,
		Mode:            ModeSpline,
		FilterSpeckle:   4,
		ColorPrecision:  6,
		LayerDifference: 16,
		CornerThreshold: 60,
		LengthThreshold: 4.0,
		MaxIterations:   10,
		SpliceThreshold: 45,
		PathPrecision:   &precision,
	}
}

// Validate checks enumerations and numeric ranges.
func (c Config) Validate() error {
	switch c.ColorMode {
	case ColorBinary, ColorColor:
	default:
		return fmt.Errorf("trace color_mode %q: want binary or color", c.ColorMode)
	}
	switch c.Hierarchy {
	case HierarchyStacked, HierarchyCutout:
	default:
		return fmt.Errorf("trace hierarchy %q: want stacked or cutout", c.Hierarchy)
	}
	switch c.Mode {
	case ModePixel, ModePolygon, ModeSpline:
	default:
		return fmt.Errorf("trace mode %q: want pixel, polygon or spline", c.Mode)
	}
	if c.FilterSpeckle < 0 {
		return fmt.Errorf("trace filter_speckle must be >= 0, got %d", c.FilterSpeckle)
	}
	if c.ColorPrecision < 1 || c.ColorPrecision > 8 {
		return fmt.Errorf("trace color_precision must be within 1..8, got %d", c.ColorPrecision)
	}
	if c.LayerDifference < 0 {
		return fmt.Errorf("trace layer_difference must be >= 0, got %d", c.LayerDifference)
	}
	if c.CornerThreshold < 0 || c.CornerThreshold > 180 {
		return fmt.Errorf("trace corner_threshold must be within 0..180, got %d", c.CornerThreshold)
	}
	if c.LengthThreshold < 0 {
		return fmt.Errorf("trace length_threshold must be >= 0, got %g", c.LengthThreshold)
	}
	if c.SpliceThreshold < 0 || c.SpliceThreshold > 180 {
		return fmt.Errorf("trace splice_threshold must be within 0..180, got %d", c.SpliceThreshold)
	}
	if c.PathPrecision != nil && *c.PathPrecision < 0 {
		return fmt.Errorf("trace path_precision must be >= 0, got %d", *c.PathPrecision)
	}
	return nil
}

// ParseMode accepts pixel, polygon or spline in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModePixel, ModePolygon, ModeSpline:
		return m, nil
	}
	return "", fmt.Errorf("unknown trace mode %q", s)
}

// Vectorizer converts a mask into an SVG document.
type Vectorizer interface {
	Trace(ctx context.Context, mask *image.Gray, cfg Config) (string, error)
}

// ErrVectorization marks every failure raised while tracing.
var ErrVectorization = errors.New("vectorization failed")

// Error records which tracer failed and why.
type Error struct {
	Tracer string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrVectorization, e.Tracer, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrVectorization, e.Err}
}
