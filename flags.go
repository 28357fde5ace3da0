package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/session"
	"github.com/chaos-io/outline/util"
)

// useDefault is the value a bare optional-value flag receives.
const useDefault = "default"

type maskFlags struct {
	blur      string
	threshold string
	binary    string
	dilate    string
	fillHoles bool
}

func addMaskFlags(fs *pflag.FlagSet, f *maskFlags) {
	fs.StringVar(&f.blur, "blur", "", "Gaussian blur with this sigma; bare --blur uses mask.blur_sigma")
	fs.Lookup("blur").NoOptDefVal = useDefault
	fs.StringVar(&f.threshold, "mask-threshold", "", "Threshold level as 0..255, a fraction in [0,1] or an integral float")
	fs.StringVar(&f.binary, "binary", "auto", "Thresholding: enabled, disabled or auto; at the default level pair with --mask-source processed for a hard mask")
	fs.Lookup("binary").NoOptDefVal = "enabled"
	fs.StringVar(&f.dilate, "dilate", "", "Dilate with this radius; bare --dilate uses mask.dilate_radius")
	fs.Lookup("dilate").NoOptDefVal = useDefault
	fs.BoolVar(&f.fillHoles, "fill-holes", false, "Fill enclosed holes in the mask")
}

// args turns the flag values into mask arguments using d for bare flags.
func (f *maskFlags) args(d mask.Defaults) (session.MaskArgs, error) {
	var (
		args session.MaskArgs
		err  error
	)
	if args.Blur, err = session.ParseStep(f.blur, d.BlurSigma); err != nil {
		return args, fmt.Errorf("--blur: %w", err)
	}
	if args.Dilate, err = session.ParseStep(f.dilate, d.DilateRadius); err != nil {
		return args, fmt.Errorf("--dilate: %w", err)
	}
	if v := strings.TrimSpace(f.threshold); v != "" {
		level, err := mask.ParseThreshold(v)
		if err != nil {
			return args, fmt.Errorf("--mask-threshold: %w", err)
		}
		args.Threshold = &level
	}
	if args.Binary, err = session.ParseBinary(f.binary); err != nil {
		return args, fmt.Errorf("--binary: %w", err)
	}
	args.FillHoles = f.fillHoles
	return args, nil
}

func addSourceFlag(fs *pflag.FlagSet, target *string, name, usage string) {
	fs.StringVar(target, name, "auto", usage+": auto, raw or processed")
}

// addExportFlag registers an optional-path export flag. A bare flag writes next to the input.
func addExportFlag(fs *pflag.FlagSet, target *string, name, usage string) {
	fs.StringVar(target, name, "", usage+"; bare flag writes <stem>-<suffix>.png next to the input")
	fs.Lookup(name).NoOptDefVal = useDefault
}

// exportPath resolves an export flag value, returning "" when the export is off.
func exportPath(value, input, suffix string) string {
	switch strings.TrimSpace(value) {
	case "":
		return ""
	case useDefault:
		return util.VariantPath(input, suffix, "png")
	default:
		return value
	}
}

// outputPath returns explicit, or the variant of input with suffix.
func outputPath(explicit, input, suffix string) string {
	if explicit != "" {
		return explicit
	}
	return util.VariantPath(input, suffix, "png")
}
