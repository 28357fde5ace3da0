package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chaos-io/outline/mask"
)

// Binary controls whether thresholding runs.
type Binary int

const (
	// BinaryAuto thresholds when dilate or fill-holes is requested or the threshold differs
	// from the default.
	BinaryAuto Binary = iota
	BinaryEnabled
	BinaryDisabled
)

func (b Binary) String() string {
	switch b {
	case BinaryEnabled:
		return "enabled"
	case BinaryDisabled:
		return "disabled"
	default:
		return "auto"
	}
}

// ParseBinary accepts enabled, disabled or auto. An empty string is auto.
func ParseBinary(s string) (Binary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BinaryAuto, nil
	case "enabled", "true", "on":
		return BinaryEnabled, nil
	case "disabled", "false", "off":
		return BinaryDisabled, nil
	}
	return BinaryAuto, fmt.Errorf("binary %q: want enabled, disabled or auto", s)
}

// MaskArgs is the user-facing description of mask processing shared by the CLI and the API.
// Nil pointers leave the step off.
type MaskArgs struct {
	Blur      *float64
	Threshold *uint8
	Binary    Binary
	Dilate    *float64
	FillHoles bool
}

// Configure records the requested steps on p. The threshold level falls back to the
// pipeline default.
func (a MaskArgs) Configure(p *mask.Pipeline) error {
	d := p.Defaults()
	level := d.Threshold
	if a.Threshold != nil {
		level = *a.Threshold
	}

	opts := mask.Options{FillHoles: a.FillHoles}
	if a.Blur != nil {
		opts.Blur = mask.BlurStep{Enabled: true, Sigma: *a.Blur}
	}
	if a.Dilate != nil {
		opts.Dilate = mask.DilateStep{Enabled: true, Radius: *a.Dilate}
	}
	if a.thresholdEnabled(level, d.Threshold) {
		opts.Threshold = mask.ThresholdStep{Enabled: true, Value: level}
	}
	return p.Apply(opts)
}

func (a MaskArgs) thresholdEnabled(level, defaultLevel uint8) bool {
	switch a.Binary {
	case BinaryEnabled:
		return true
	case BinaryDisabled:
		return false
	default:
		return a.Dilate != nil || a.FillHoles || level != defaultLevel
	}
}

// ParseStep reads the value of an optional-parameter step such as blur or dilate. "default",
// "true" and "on" select def; "", "false" and "off" leave the step off; anything else is the
// parameter itself.
func ParseStep(v string, def float64) (*float64, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "default", "true", "on":
		return &def, nil
	case "", "false", "off":
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil, fmt.Errorf("step parameter %q: %w", v, err)
	}
	return &f, nil
}

// MaskSuffix names a mask output after what it holds.
func MaskSuffix(sel mask.Selection) string {
	if sel == mask.SelectProcessed {
		return "mask"
	}
	return "matte"
}
