package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// VTracer runs the external vtracer binary.
type VTracer struct {
	Binary string
}

var _ Vectorizer = (*VTracer)(nil)

// NewVTracer uses binary, or "vtracer" from PATH when empty.
func NewVTracer(binary string) *VTracer {
	if strings.TrimSpace(binary) == "" {
		binary = "vtracer"
	}
	return &VTracer{Binary: binary}
}

// Trace implements Vectorizer.
func (v *VTracer) Trace(ctx context.Context, mask *image.Gray, cfg Config) (string, error) {
	if mask.Bounds().Empty() {
		return "", &Error{Tracer: "vtracer", Err: errors.New("empty mask")}
	}
	dir, err := os.MkdirTemp("", "outline-vtracer-")
	if err != nil {
		return "", &Error{Tracer: "vtracer", Err: fmt.Errorf("temp dir: %w", err)}
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	input := filepath.Join(dir, "mask.png")
	output := filepath.Join(dir, "mask.svg")
	if err := writeTraceInput(input, mask, cfg.Invert); err != nil {
		return "", &Error{Tracer: "vtracer", Err: err}
	}

	var stderr bytes.Buffer
	cmd := commandContext(ctx, v.Binary, vtracerArgs(input, output, cfg)...) //nolint:gosec
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &Error{Tracer: "vtracer", Err: err}
	}

	svg, err := os.ReadFile(output)
	if err != nil {
		return "", &Error{Tracer: "vtracer", Err: fmt.Errorf("read output: %w", err)}
	}
	return string(svg), nil
}

// writeTraceInput stores the mask as black foreground on white, the polarity vtracer's
// binary mode traces.
func writeTraceInput(path string, mask *image.Gray, invert bool) error {
	b := mask.Bounds()
	img := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()]
		dst := img.Pix[y*img.Stride:]
		for x, v := range src {
			fg := (v >= binarizeLevel) != invert
			if fg {
				dst[x] = 0
			} else {
				dst[x] = 255
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode trace input: %w", err)
	}
	return f.Close()
}

func vtracerArgs(input, output string, cfg Config) []string {
	colormode := "bw"
	if cfg.ColorMode == ColorColor {
		colormode = "color"
	}
	args := []string{
		"--input", input,
		"--output", output,
		"--colormode", colormode,
		"--hierarchical", string(cfg.Hierarchy),
		"--mode", string(cfg.Mode),
		"--filter_speckle", strconv.Itoa(cfg.FilterSpeckle),
		"--color_precision", strconv.Itoa(cfg.ColorPrecision),
		"--gradient_step", strconv.Itoa(cfg.LayerDifference),
		"--corner_threshold", strconv.Itoa(cfg.CornerThreshold),
		"--segment_length", strconv.FormatFloat(cfg.LengthThreshold, 'f', -1, 64),
		"--splice_threshold", strconv.Itoa(cfg.SpliceThreshold),
	}
	if cfg.PathPrecision != nil {
		args = append(args, "--path_precision", strconv.Itoa(*cfg.PathPrecision))
	}
	return args
}
