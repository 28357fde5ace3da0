// Package config loads and validates outline settings from TOML.
//
// Defaults cover every field, so a missing file is not an error. The matting endpoint can be
// supplied through OUTLINE_ENDPOINT when it is not set in the file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/trace"
)

//go:embed sample_config.toml
var sampleConfig string

// EndpointEnv names the environment variable that provides the matting endpoint.
const EndpointEnv = "OUTLINE_ENDPOINT"

// Inference configures the matting collaborator.
type Inference struct {
	Endpoint       string `toml:"endpoint"`
	MattePath      string `toml:"matte_path"`
	InputSize      int    `toml:"input_size"`
	InputFilter    string `toml:"input_filter"`
	OutputFilter   string `toml:"output_filter"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Mask holds the values used when a processing step is enabled without an explicit parameter.
type Mask struct {
	BlurSigma    float64 `toml:"blur_sigma"`
	Threshold    int     `toml:"threshold"`
	DilateRadius float64 `toml:"dilate_radius"`
}

// Trace selects the vectorizer and its defaults.
type Trace struct {
	Vectorizer  string `toml:"vectorizer"`
	VTracerPath string `toml:"vtracer_path"`
	trace.Config
}

// Server configures the HTTP API.
type Server struct {
	Bind                string `toml:"bind"`
	Mode                string `toml:"mode"`
	OutputDir           string `toml:"output_dir"`
	MaxUploadMB         int    `toml:"max_upload_mb"`
	MaxConcurrent       int    `toml:"max_concurrent"`
	QueueTimeoutSeconds int    `toml:"queue_timeout_seconds"`
	RetentionHours      int    `toml:"retention_hours"`
	CleanupSchedule     string `toml:"cleanup_schedule"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full settings tree.
type Config struct {
	Inference Inference `toml:"inference"`
	Mask      Mask      `toml:"mask"`
	Trace     Trace     `toml:"trace"`
	Server    Server    `toml:"server"`
	Log       Log       `toml:"log"`
}

// Load reads path over the defaults. An empty path looks for outline.toml in the working
// directory. The returned bool reports whether a file was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = defaultFileName
	}

	found := false
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer func() {
			_ = file.Close()
		}()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", path, err)
		}
		found = true
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, false, fmt.Errorf("open config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, found, nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Inference.Endpoint) == "" {
		c.Inference.Endpoint = strings.TrimSpace(os.Getenv(EndpointEnv))
	}
	c.Trace.Vectorizer = strings.ToLower(strings.TrimSpace(c.Trace.Vectorizer))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	// A negative precision in the file means "unset".
	if p := c.Trace.PathPrecision; p != nil && *p < 0 {
		c.Trace.PathPrecision = nil
	}
	if c.Server.OutputDir != "" {
		c.Server.OutputDir = filepath.Clean(c.Server.OutputDir)
	}
}

// MaskDefaults converts the mask section for the pipeline.
func (c *Config) MaskDefaults() mask.Defaults {
	return mask.Defaults{
		BlurSigma:    c.Mask.BlurSigma,
		Threshold:    uint8(c.Mask.Threshold),
		DilateRadius: c.Mask.DilateRadius,
	}
}

// InferenceTimeout returns the matting request timeout.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

// QueueTimeout returns how long a request may wait for a processing slot.
func (c *Config) QueueTimeout() time.Duration {
	return time.Duration(c.Server.QueueTimeoutSeconds) * time.Second
}

// Retention returns how long stored results are kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Server.RetentionHours) * time.Hour
}

// Sample returns the commented sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
