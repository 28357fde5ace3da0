// Package session runs matting once per image and serves every consumer (mask export, cut-out,
// trace, compose) from the same pipeline, so the raw/processed choice is made in one place.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/chaos-io/outline/layer"
	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/rembg"
	"github.com/chaos-io/outline/trace"
	"github.com/chaos-io/outline/util"
)

// Runner produces sessions.
type Runner struct {
	Matter   rembg.Matter
	Defaults mask.Defaults
	Logger   *zap.Logger
}

// NewRunner builds a Runner. A nil logger discards output.
func NewRunner(matter rembg.Matter, defaults mask.Defaults, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Matter: matter, Defaults: defaults, Logger: logger}
}

// ForImage runs the matter on img and opens a session over the result.
func (r *Runner) ForImage(ctx context.Context, img image.Image) (*Session, error) {
	if r.Matter == nil {
		return nil, errors.New("no matter configured")
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	done := util.Trace(logger, "matte")
	m, err := r.Matter.Matte(ctx, img)
	done()
	if err != nil {
		return nil, err
	}
	if got, want := m.Bounds().Size(), img.Bounds().Size(); got != want {
		return nil, fmt.Errorf("%w: matte %dx%d does not match image %dx%d",
			layer.ErrDimensionMismatch, got.X, got.Y, want.X, want.Y)
	}

	p, err := mask.NewPipeline(m, r.Defaults)
	if err != nil {
		return nil, err
	}
	return &Session{img: img, pipeline: p, logger: logger}, nil
}

// Session holds one image, its matte and the mask pipeline built on it.
type Session struct {
	img      image.Image
	pipeline *mask.Pipeline
	logger   *zap.Logger
}

// Image returns the source image.
func (s *Session) Image() image.Image {
	return s.img
}

// Pipeline exposes the mask pipeline so callers can record steps.
func (s *Session) Pipeline() *mask.Pipeline {
	return s.pipeline
}

// Matte returns the raw matte.
func (s *Session) Matte() *mask.Matte {
	return s.pipeline.Raw()
}

// Mask returns the mask chosen for source along with the resolved selection.
func (s *Session) Mask(source mask.Source) (*image.Gray, mask.Selection, error) {
	img, sel, err := s.pipeline.Selected(source)
	if err != nil {
		return nil, sel, err
	}
	if sel == mask.SelectProcessed && s.pipeline.Options().SoftConflict() {
		s.logger.Warn("dilate and fill-holes expect a hard mask but thresholding is disabled, results may be unexpected",
			zap.Stringer("source", source))
	}
	if sel == mask.SelectRaw && source == mask.SourceAuto && s.pipeline.Options().Threshold.Enabled {
		s.logger.Info("thresholding at the default level keeps the raw matte, select the processed source for a hard mask",
			zap.Uint8("threshold", s.pipeline.Options().Threshold.Value))
	}
	return img, sel, nil
}

// Processed returns the processed mask regardless of the source rule.
func (s *Session) Processed() (*image.Gray, error) {
	m, err := s.pipeline.Processed()
	if err != nil {
		return nil, err
	}
	return m.Image(), nil
}

// Foreground cuts the subject out using the mask chosen for source.
func (s *Session) Foreground(source mask.Source) (*image.NRGBA, mask.Selection, error) {
	m, sel, err := s.Mask(source)
	if err != nil {
		return nil, sel, err
	}
	out, err := layer.Compose(s.img, m)
	if err != nil {
		return nil, sel, err
	}
	return out, sel, nil
}

// Trace vectorizes the mask chosen for source.
func (s *Session) Trace(ctx context.Context, source mask.Source, v trace.Vectorizer, cfg trace.Config) (string, mask.Selection, error) {
	m, sel, err := s.Mask(source)
	if err != nil {
		return "", sel, err
	}
	done := util.Trace(s.logger, "trace")
	svg, err := v.Trace(ctx, m, cfg)
	done()
	if err != nil {
		return "", sel, err
	}
	return svg, sel, nil
}

// Composite is the result of Compose with its intermediate layers.
type Composite struct {
	Image      *image.NRGBA
	Foreground *image.NRGBA
	Background *image.NRGBA

	ForegroundSelection mask.Selection
	BackgroundSelection mask.Selection
}

// Compose paints the mask chosen for bgSource with fill and places the cut-out chosen by
// fgSource over it.
func (s *Session) Compose(fgSource, bgSource mask.Source, fill layer.Fill) (*Composite, error) {
	fg, fgSel, err := s.Foreground(fgSource)
	if err != nil {
		return nil, err
	}
	bgMask, bgSel, err := s.Mask(bgSource)
	if err != nil {
		return nil, err
	}
	bg := layer.FromMask(bgMask, fill)
	out, err := layer.Over(bg, fg)
	if err != nil {
		return nil, err
	}
	return &Composite{
		Image:               out,
		Foreground:          fg,
		Background:          bg,
		ForegroundSelection: fgSel,
		BackgroundSelection: bgSel,
	}, nil
}
