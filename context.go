package main

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaos-io/outline/config"
	"github.com/chaos-io/outline/rembg"
	"github.com/chaos-io/outline/session"
	"github.com/chaos-io/outline/trace"
	"github.com/chaos-io/outline/util"
)

// globalOptions holds the persistent flags. Non-empty values override the config file.
type globalOptions struct {
	configPath   string
	endpoint     string
	mattePath    string
	inputFilter  string
	outputFilter string
	logLevel     string
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger *zap.Logger
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, err := config.Load(strings.TrimSpace(c.opts.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.applyOverrides(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) error {
	if v := strings.TrimSpace(c.opts.endpoint); v != "" {
		cfg.Inference.Endpoint = v
	}
	if v := strings.TrimSpace(c.opts.mattePath); v != "" {
		cfg.Inference.MattePath = v
	}
	if v := strings.TrimSpace(c.opts.inputFilter); v != "" {
		cfg.Inference.InputFilter = v
	}
	if v := strings.TrimSpace(c.opts.outputFilter); v != "" {
		cfg.Inference.OutputFilter = v
	}
	if v := strings.TrimSpace(c.opts.logLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return cfg.Validate()
}

// setup loads the config and installs the global logger.
func (c *commandContext) setup() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := util.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	c.logger = logger
	return nil
}

func (c *commandContext) log() *zap.Logger {
	if c.logger == nil {
		return zap.L()
	}
	return c.logger
}

// matter builds the matting collaborator. A matte file replaces the model; otherwise images
// that already carry transparency use their own alpha before the remote model is asked.
func (c *commandContext) matter(cfg *config.Config) (rembg.Matter, error) {
	in, err := rembg.ParseFilter(cfg.Inference.InputFilter)
	if err != nil {
		return nil, fmt.Errorf("input resample filter: %w", err)
	}
	out, err := rembg.ParseFilter(cfg.Inference.OutputFilter)
	if err != nil {
		return nil, fmt.Errorf("output resample filter: %w", err)
	}

	if cfg.Inference.MattePath != "" {
		return &rembg.File{Path: cfg.Inference.MattePath, Filter: out}, nil
	}
	remote := rembg.NewRemote(cfg.Inference.Endpoint, rembg.WithLogger(c.log()))
	remote.InputSize = cfg.Inference.InputSize
	remote.InputFilter = in
	remote.OutputFilter = out
	remote.Timeout = cfg.InferenceTimeout()
	return &rembg.Alpha{Fallback: remote}, nil
}

func (c *commandContext) runner() (*session.Runner, *config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	m, err := c.matter(cfg)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRunner(m, cfg.MaskDefaults(), c.log()), cfg, nil
}

// openSession loads input, runs matting and records the requested mask steps.
func (c *commandContext) openSession(ctx context.Context, input string, mf *maskFlags) (*session.Session, *config.Config, error) {
	runner, cfg, err := c.runner()
	if err != nil {
		return nil, nil, err
	}
	args, err := mf.args(runner.Defaults)
	if err != nil {
		return nil, nil, err
	}

	img, err := util.LoadImage(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	sess, err := runner.ForImage(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	if err := args.Configure(sess.Pipeline()); err != nil {
		return nil, nil, err
	}
	return sess, cfg, nil
}

// writePNG saves img and reports the path on out.
func (c *commandContext) writePNG(cmd *cobra.Command, path, what string, img image.Image) error {
	if err := util.SavePNG(path, img); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	c.log().Debug("output written", zap.String("kind", what), zap.String("path", path))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s\n", what, path)
	return nil
}

// writeMaskExports writes the raw matte and the processed mask when their export flags are set.
func (c *commandContext) writeMaskExports(cmd *cobra.Command, sess *session.Session, input, matteFlag, maskFlag string) error {
	if path := exportPath(matteFlag, input, "matte"); path != "" {
		if err := c.writePNG(cmd, path, "matte", sess.Matte().Image()); err != nil {
			return err
		}
	}
	if path := exportPath(maskFlag, input, "mask"); path != "" {
		m, err := sess.Processed()
		if err != nil {
			return err
		}
		if err := c.writePNG(cmd, path, "mask", m); err != nil {
			return err
		}
	}
	return nil
}

func vectorizerFor(name string, cfg *config.Config) (trace.Vectorizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "outline":
		return trace.Outline{}, nil
	case "vtracer":
		return trace.NewVTracer(cfg.Trace.VTracerPath), nil
	}
	return nil, fmt.Errorf("vectorizer %q: want outline or vtracer", name)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
