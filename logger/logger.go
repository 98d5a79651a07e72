package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"copytrader/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap.Logger configured based on the given options.
func New(opts config.LogConfig) (*zap.Logger, error) {
	// Parse log level
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	// Determine encoding format
	encoding := "json"
	if opts.Environment == "dev" || opts.Format == "console" {
		encoding = "console"
	}

	// Get encoder config based on format
	encoderCfg := encoderConfig(encoding)

	// Console (stdout) output
	var stdoutEncoder zapcore.Encoder
	if encoding == "console" {
		stdoutEncoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		stdoutEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Compose output cores
	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder, zapcore.Lock(os.Stdout), lvl),
	}

	// Optional file output with rotation via lumberjack
	if opts.OutputFile != "" {
		// Create parent directory if it doesn't exist
		dir := filepath.Dir(opts.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.OutputFile,
			MaxSize:    10,   // MB before rotation
			MaxBackups: 5,    // old files kept
			MaxAge:     7,    // days
			Compress:   true, // gzip rotated files
		})

		// Files are always JSON so they can be shipped as-is.
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			fileWriter,
			lvl,
		))
	}

	// Combine all cores
	core := zapcore.NewTee(cores...)

	// Build the logger with caller and stacktrace options
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, nil
}

// encoderConfig returns a zapcore.EncoderConfig based on log format.
func encoderConfig(format string) zapcore.EncoderConfig {
	if format == "console" {
		return zap.NewDevelopmentEncoderConfig()
	}
	return zap.NewProductionEncoderConfig()
}
