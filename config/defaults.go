package config

import (
	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/rembg"
	"github.com/chaos-io/outline/trace"
)

const (
	defaultFileName            = "outline.toml"
	defaultInputSize           = rembg.DefaultInputSize
	defaultInputFilter         = string(rembg.FilterTriangle)
	defaultOutputFilter        = string(rembg.FilterLanczos3)
	defaultInferenceTimeout    = 60
	defaultVectorizer          = "outline"
	defaultVTracerPath         = "vtracer"
	defaultServerBind          = "127.0.0.1:8080"
	defaultServerMode          = "release"
	defaultOutputDir           = "./output"
	defaultMaxUploadMB         = 20
	defaultMaxConcurrent       = 2
	defaultQueueTimeoutSeconds = 30
	defaultRetentionHours      = 24
	defaultCleanupSchedule     = "@every 10m"
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
)

// Default returns the built-in configuration.
func Default() Config {
	md := mask.StandardDefaults()
	return Config{
		Inference: Inference{
			InputSize:      defaultInputSize,
			InputFilter:    defaultInputFilter,
			OutputFilter:   defaultOutputFilter,
			TimeoutSeconds: defaultInferenceTimeout,
		},
		Mask: Mask{
			BlurSigma:    md.BlurSigma,
			Threshold:    int(md.Threshold),
			DilateRadius: md.DilateRadius,
		},
		Trace: Trace{
			Vectorizer:  defaultVectorizer,
			VTracerPath: defaultVTracerPath,
			Config:      trace.DefaultConfig(),
		},
		Server: Server{
			Bind:                defaultServerBind,
			Mode:                defaultServerMode,
			OutputDir:           defaultOutputDir,
			MaxUploadMB:         defaultMaxUploadMB,
			MaxConcurrent:       defaultMaxConcurrent,
			QueueTimeoutSeconds: defaultQueueTimeoutSeconds,
			RetentionHours:      defaultRetentionHours,
			CleanupSchedule:     defaultCleanupSchedule,
		},
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
