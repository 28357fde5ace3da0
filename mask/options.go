package mask

import (
	"fmt"
	"strings"
)

// Defaults holds the values used when a step is enabled without an explicit parameter.
// Each pipeline owns its own copy so pipelines with different defaults can coexist.
type Defaults struct {
	BlurSigma    float64
	Threshold    uint8
	DilateRadius float64
}

// StandardDefaults returns sigma 6.0, threshold 120 and radius 5.0.
func StandardDefaults() Defaults {
	return Defaults{
		BlurSigma:    6.0,
		Threshold:    120,
		DilateRadius: 5.0,
	}
}

// Validate checks that the defaults are usable as step parameters.
func (d Defaults) Validate() error {
	if err := checkSigma(d.BlurSigma); err != nil {
		return err
	}
	return checkRadius(d.DilateRadius)
}

// BlurStep configures the gaussian blur.
type BlurStep struct {
	Enabled bool
	Sigma   float64
}

// ThresholdStep configures binarization.
type ThresholdStep struct {
	Enabled bool
	Value   uint8
}

// DilateStep configures morphological dilation.
type DilateStep struct {
	Enabled bool
	Radius  float64
}

// Options is the fixed-shape record of pending steps. The zero value has every step off.
// Application order is owned by Pipeline.Processed, never by the order fields were set.
type Options struct {
	Blur      BlurStep
	Threshold ThresholdStep
	Dilate    DilateStep
	FillHoles bool
}

// Empty reports whether no step is enabled.
func (o Options) Empty() bool {
	return !o.Blur.Enabled && !o.Threshold.Enabled && !o.Dilate.Enabled && !o.FillHoles
}

// SoftConflict reports dilation or hole filling without thresholding. Both steps only react to
// fully saturated samples, so a soft matte may come through almost unchanged.
func (o Options) SoftConflict() bool {
	return !o.Threshold.Enabled && (o.Dilate.Enabled || o.FillHoles)
}

// Source is the caller's preference for which mask a consumer receives.
type Source int

const (
	SourceAuto Source = iota
	SourceRaw
	SourceProcessed
)

func (s Source) String() string {
	switch s {
	case SourceRaw:
		return "raw"
	case SourceProcessed:
		return "processed"
	default:
		return "auto"
	}
}

// ParseSource accepts "auto", "raw" or "processed". An empty string is auto.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SourceAuto, nil
	case "raw":
		return SourceRaw, nil
	case "processed":
		return SourceProcessed, nil
	}
	return SourceAuto, fmt.Errorf("%w: mask source %q (want auto, raw or processed)", ErrInvalidParameter, s)
}

// Selection is the concrete mask a consumer uses after resolution.
type Selection int

const (
	SelectRaw Selection = iota
	SelectProcessed
)

func (s Selection) String() string {
	if s == SelectProcessed {
		return "processed"
	}
	return "raw"
}
