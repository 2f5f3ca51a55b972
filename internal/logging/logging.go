// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"pattern-scanner/internal/analysis"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	// Out receives console output; nil means stderr so that JSON results
	// on stdout stay parseable.
	Out io.Writer
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "pattern-scanner", "logs", "patternscan.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.Out
		if out == nil {
			out = os.Stderr
		}
		consoleWriter := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config level name to a zerolog level. Unknown names
// fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithPattern adds a pattern type to the logger context.
func WithPattern(logger zerolog.Logger, pt analysis.PatternType) zerolog.Logger {
	return logger.With().Str("pattern", string(pt)).Logger()
}

// WithRunID tags every event of one scan run.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// LogDetection logs the outcome of one detector call.
func LogDetection(logger zerolog.Logger, symbol string, r analysis.PatternResult, elapsed time.Duration) {
	if !r.Detected {
		logger.Debug().
			Str("event", "detection").
			Str("symbol", symbol).
			Str("pattern", string(r.PatternType)).
			Str("reason", r.Reason).
			Dur("elapsed", elapsed).
			Msg("Pattern not detected")
		return
	}

	event := logger.Info().
		Str("event", "detection").
		Str("symbol", symbol).
		Str("pattern", string(r.PatternType)).
		Float64("confidence", r.Confidence).
		Float64("neckline", r.NecklineLevel).
		Float64("target", r.PriceTarget).
		Bool("forming", r.Forming).
		Dur("elapsed", elapsed)
	if r.Breakout != nil {
		event = event.Str("breakout", string(r.Breakout.Status)).Str("breakout_date", r.Breakout.Date)
	}
	event.Msg("Pattern detected")
}

// LogLoad logs a candle load from a file or the store.
func LogLoad(logger zerolog.Logger, source, symbol string, candles int, err error) {
	if err != nil {
		logger.Error().
			Str("event", "load").
			Str("source", source).
			Str("symbol", symbol).
			Err(err).
			Msg("Candle load failed")
		return
	}
	logger.Debug().
		Str("event", "load").
		Str("source", source).
		Str("symbol", symbol).
		Int("candles", candles).
		Msg("Candles loaded")
}
