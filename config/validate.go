package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"

	"github.com/chaos-io/outline/rembg"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateMask(); err != nil {
		return err
	}
	if err := c.validateTrace(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateInference() error {
	if c.Inference.InputSize <= 0 {
		return fmt.Errorf("inference.input_size must be positive, got %d", c.Inference.InputSize)
	}
	if _, err := rembg.ParseFilter(c.Inference.InputFilter); err != nil {
		return fmt.Errorf("inference.input_filter: %w", err)
	}
	if _, err := rembg.ParseFilter(c.Inference.OutputFilter); err != nil {
		return fmt.Errorf("inference.output_filter: %w", err)
	}
	if c.Inference.TimeoutSeconds < 0 {
		return errors.New("inference.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateMask() error {
	if c.Mask.Threshold < 0 || c.Mask.Threshold > 255 {
		return fmt.Errorf("mask.threshold must be within 0..255, got %d", c.Mask.Threshold)
	}
	if err := c.MaskDefaults().Validate(); err != nil {
		return fmt.Errorf("mask: %w", err)
	}
	return nil
}

func (c *Config) validateTrace() error {
	switch c.Trace.Vectorizer {
	case "outline", "vtracer":
	default:
		return fmt.Errorf("trace.vectorizer %q: want outline or vtracer", c.Trace.Vectorizer)
	}
	return c.Trace.Config.Validate()
}

func (c *Config) validateServer() error {
	s := c.Server
	switch s.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q: want debug, release or test", s.Mode)
	}
	if s.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if s.MaxConcurrent <= 0 {
		return errors.New("server.max_concurrent must be positive")
	}
	if s.QueueTimeoutSeconds < 0 {
		return errors.New("server.queue_timeout_seconds must be >= 0")
	}
	if s.RetentionHours < 0 {
		return errors.New("server.retention_hours must be >= 0")
	}
	if s.RetentionHours > 0 {
		if _, err := cron.ParseStandard(s.CleanupSchedule); err != nil {
			return fmt.Errorf("server.cleanup_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLog() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
		return nil
	}
	return fmt.Errorf("log.format %q: want console or json", c.Log.Format)
}
