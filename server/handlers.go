package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/outline/layer"
	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/rembg"
	"github.com/chaos-io/outline/session"
	"github.com/chaos-io/outline/trace"
	"github.com/chaos-io/outline/util"
)

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// job produces the outputs of one request into res and records the selections it used.
type job func(ctx context.Context, sess *session.Session, res *Result, selections map[string]string) error

func (s *Server) handleMask(c *gin.Context) {
	img, args, ok := s.readRequest(c)
	if !ok {
		return
	}
	source, err := mask.ParseSource(c.PostForm("mask_source"))
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.process(c, img, args, func(_ context.Context, sess *session.Session, res *Result, selections map[string]string) error {
		m, sel, err := sess.Mask(source)
		if err != nil {
			return err
		}
		selections["mask"] = sel.String()
		return res.SavePNG(session.MaskSuffix(sel), m)
	})
}

func (s *Server) handleCut(c *gin.Context) {
	img, args, ok := s.readRequest(c)
	if !ok {
		return
	}
	source, err := mask.ParseSource(c.PostForm("alpha_source"))
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	trim, err := formBool(c, "trim")
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	margin, err := formInt(c, "trim_margin", 0)
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	exportMatte, err := formBool(c, "export_matte")
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	exportMask, err := formBool(c, "export_mask")
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.process(c, img, args, func(_ context.Context, sess *session.Session, res *Result, selections map[string]string) error {
		fg, sel, err := sess.Foreground(source)
		if err != nil {
			return err
		}
		selections["alpha"] = sel.String()
		if trim {
			if fg, err = layer.TrimToSubject(fg, margin); err != nil {
				return err
			}
		}
		if err := res.SavePNG("foreground", fg); err != nil {
			return err
		}
		if exportMatte {
			if err := res.SavePNG("matte", sess.Matte().Image()); err != nil {
				return err
			}
		}
		if exportMask {
			m, err := sess.Processed()
			if err != nil {
				return err
			}
			if err := res.SavePNG("mask", m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Server) handleTrace(c *gin.Context) {
	img, args, ok := s.readRequest(c)
	if !ok {
		return
	}
	source, err := mask.ParseSource(c.PostForm("mask_source"))
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	cfg, err := s.traceConfig(c)
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.process(c, img, args, func(ctx context.Context, sess *session.Session, res *Result, selections map[string]string) error {
		svg, sel, err := sess.Trace(ctx, source, s.vectorizer, cfg)
		if err != nil {
			return err
		}
		selections["mask"] = sel.String()
		return res.SaveSVG("outline", svg)
	})
}

func (s *Server) handleCompose(c *gin.Context) {
	img, args, ok := s.readRequest(c)
	if !ok {
		return
	}
	fgSource, err := mask.ParseSource(c.PostForm("fg_mask_source"))
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	bgSource, err := mask.ParseSource(c.PostForm("bg_mask_source"))
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	fill, err := parseFill(c)
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	exportLayers, err := formBool(c, "export_layers")
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.process(c, img, args, func(_ context.Context, sess *session.Session, res *Result, selections map[string]string) error {
		out, err := sess.Compose(fgSource, bgSource, fill)
		if err != nil {
			return err
		}
		selections["foreground"] = out.ForegroundSelection.String()
		selections["background"] = out.BackgroundSelection.String()
		if err := res.SavePNG("composite", out.Image); err != nil {
			return err
		}
		if !exportLayers {
			return nil
		}
		if err := res.SavePNG("foreground", out.Foreground); err != nil {
			return err
		}
		return res.SavePNG("bg-layer", out.Background)
	})
}

func (s *Server) handleResult(c *gin.Context) {
	path, err := s.store.Path(c.Param("id"), c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.File(path)
}

// readRequest decodes the uploaded image and the shared mask fields. The image is read first
// so an oversized body is reported before any other field is looked at.
func (s *Server) readRequest(c *gin.Context) (image.Image, session.MaskArgs, bool) {
	img, err := readImage(c)
	if err != nil {
		s.fail(c, err)
		return nil, session.MaskArgs{}, false
	}
	args, err := parseMaskArgs(c, s.runner.Defaults)
	if err != nil {
		s.fail(c, badRequest(err))
		return nil, session.MaskArgs{}, false
	}
	return img, args, true
}

// process runs matting under the concurrency limit, applies args and hands the session to fn.
func (s *Server) process(c *gin.Context, img image.Image, args session.MaskArgs, fn job) {
	ctx := c.Request.Context()
	release, err := s.acquire(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer release()

	sess, err := s.runner.ForImage(ctx, img)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := args.Configure(sess.Pipeline()); err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.store.Create()
	if err != nil {
		s.fail(c, err)
		return
	}
	selections := map[string]string{}
	if err := fn(ctx, sess, res, selections); err != nil {
		if derr := res.Discard(); derr != nil {
			s.logger.Warn("failed to discard result", zap.String("id", res.ID.String()), zap.Error(derr))
		}
		s.fail(c, err)
		return
	}

	id := res.ID.String()
	files := make(map[string]string, len(res.Files))
	for name, file := range res.Files {
		files[name] = "/api/v1/results/" + id + "/" + file
	}
	s.logger.Info("result stored", zap.String("id", id), zap.Any("selections", selections))
	c.JSON(http.StatusOK, ResultResponse{
		Success:    true,
		Message:    "ok",
		ID:         id,
		Selections: selections,
		Files:      files,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Message: http.StatusText(status),
		Error:   err.Error(),
	})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, mask.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, ErrResultNotFound):
		return http.StatusNotFound
	case errors.Is(err, layer.ErrNoForeground):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, rembg.ErrInference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readImage(c *gin.Context) (image.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, badRequest(fmt.Errorf("image upload: %w", err))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := util.DecodeImage(f)
	if err != nil {
		return nil, badRequest(err)
	}
	return img, nil
}

func parseMaskArgs(c *gin.Context, d mask.Defaults) (session.MaskArgs, error) {
	var (
		args session.MaskArgs
		err  error
	)
	if args.Blur, err = formStep(c, "blur", d.BlurSigma); err != nil {
		return args, err
	}
	if args.Dilate, err = formStep(c, "dilate", d.DilateRadius); err != nil {
		return args, err
	}
	if v := strings.TrimSpace(c.PostForm("mask_threshold")); v != "" {
		level, err := mask.ParseThreshold(v)
		if err != nil {
			return args, err
		}
		args.Threshold = &level
	}
	if args.Binary, err = session.ParseBinary(c.PostForm("binary")); err != nil {
		return args, err
	}
	if args.FillHoles, err = formBool(c, "fill_holes"); err != nil {
		return args, err
	}
	return args, nil
}

// formStep reads an optional-parameter step field. A present but empty field selects the
// default parameter.
func formStep(c *gin.Context, key string, def float64) (*float64, error) {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(v) == "" {
		v = "default"
	}
	step, err := session.ParseStep(v, def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return step, nil
}

// formBool treats a present but empty field as true.
func formBool(c *gin.Context, key string) (bool, error) {
	v, ok := c.GetPostForm(key)
	if !ok {
		return false, nil
	}
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "on") {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s %q: %w", key, v, err)
	}
	return b, nil
}

func formInt(c *gin.Context, key string, def int) (int, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, v, err)
	}
	return n, nil
}

func formFloat(c *gin.Context, key string, def float64) (float64, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, v, err)
	}
	return f, nil
}

func parseFill(c *gin.Context) (layer.Fill, error) {
	col, err := layer.ParseColor(c.DefaultPostForm("bg_color", "#ffffff"))
	if err != nil {
		return layer.Fill{}, err
	}
	factor, err := formFloat(c, "bg_alpha_scale", 1.0)
	if err != nil {
		return layer.Fill{}, err
	}
	solid, err := formInt(c, "bg_solid_alpha", 255)
	if err != nil {
		return layer.Fill{}, err
	}
	if solid < 0 || solid > 255 {
		return layer.Fill{}, fmt.Errorf("bg_solid_alpha must be within 0..255, got %d", solid)
	}
	mode, err := layer.ParseAlphaMode(c.PostForm("bg_alpha_mode"), factor, uint8(solid))
	if err != nil {
		return layer.Fill{}, err
	}
	return layer.NewFill(col).WithMode(mode), nil
}

// traceConfig applies the per-request overrides to the configured tracer settings.
func (s *Server) traceConfig(c *gin.Context) (trace.Config, error) {
	cfg := s.traceCfg
	if v := c.PostForm("mode"); v != "" {
		m, err := trace.ParseMode(v)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
	}
	speckle, err := formInt(c, "filter_speckle", cfg.FilterSpeckle)
	if err != nil {
		return cfg, err
	}
	cfg.FilterSpeckle = speckle
	if _, ok := c.GetPostForm("invert"); ok {
		if cfg.Invert, err = formBool(c, "invert"); err != nil {
			return cfg, err
		}
	}
	if v := strings.TrimSpace(c.PostForm("path_precision")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("path_precision %q: %w", v, err)
		}
		if n < 0 {
			cfg.PathPrecision = nil
		} else {
			cfg.PathPrecision = &n
		}
	}
	return cfg, cfg.Validate()
}
