// Package logging builds the zap logger the command-line tools write
// diagnostics to, and bridges the core's progress events onto it.
package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jarri2di/crate-downloader/internal/progress"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the logger.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is "console" (default) or "json".
	Format string
	// OutputPaths defaults to stderr so stdout stays free for the run report.
	OutputPaths []string
}

// New creates a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Sampling = nil
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zapCfg.DisableStacktrace = true

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zapCfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.OutputPaths = []string{"stderr"}
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l, nil
}

// ParseLevel converts a level name to a zapcore.Level. An empty string
// means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// Reporter returns a progress.Func that writes events to l.
//
// Verbose events are logged at debug level, so they only show with
// --log-level=debug. Success events are logged at info.
func Reporter(l *zap.Logger) progress.Func {
	return func(event progress.Event) {
		fields := toFields(event.Fields)
		switch event.Level {
		case progress.LevelVerbose:
			l.Debug(event.Message, fields...)
		case progress.LevelWarning:
			l.Warn(event.Message, fields...)
		case progress.LevelError:
			l.Error(event.Message, fields...)
		default:
			l.Info(event.Message, fields...)
		}
	}
}

func toFields(m map[string]any) []zap.Field {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, m[k]))
	}
	return fields
}
