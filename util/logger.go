package util

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger. format "json" uses the production encoder, anything else the
// colored development console.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var config zap.Config
	if strings.EqualFold(format, "json") {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

// Sync flushes the global logger.
func Sync() {
	_ = zap.L().Sync()
}

// Trace logs how long a scope took:
//
//	defer util.Trace(logger, "dilate")()
func Trace(logger *zap.Logger, name string) func() {
	if logger == nil {
		logger = zap.L()
	}
	start := time.Now()
	return func() {
		logger.Debug("timing", zap.String("scope", name), zap.Duration("cost", time.Since(start)))
	}
}
