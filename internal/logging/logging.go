// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"wheel-tracker/internal/config"
	"wheel-tracker/internal/models"
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

	// ConsoleOut defaults to stderr so command output on stdout stays clean.
	ConsoleOut io.Writer
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Console:    false,
		File:       true,
		FilePath:   filepath.Join(config.DefaultConfigDir(), "logs", "wheel-tracker.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
	}
}

// FromConfig converts the [logging] section into a LogConfig. A relative or
// empty file path is placed under configDir.
func FromConfig(cfg config.LoggingConfig, configDir string) LogConfig {
	lc := DefaultLogConfig()
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	lc.Console = cfg.Console

	switch {
	case cfg.File == "":
		lc.FilePath = filepath.Join(configDir, "logs", "wheel-tracker.log")
	case filepath.IsAbs(cfg.File):
		lc.FilePath = cfg.File
	default:
		lc.FilePath = filepath.Join(configDir, cfg.File)
	}

	if cfg.MaxSizeMB > 0 {
		lc.MaxSize = cfg.MaxSizeMB
	}
	if cfg.MaxBackups > 0 {
		lc.MaxBackups = cfg.MaxBackups
	}
	if cfg.MaxAgeDays > 0 {
		lc.MaxAge = cfg.MaxAgeDays
	}
	return lc
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
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
		})
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
		Str("app", "wheel-tracker").
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
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

// WithTicker adds a ticker to the logger context.
func WithTicker(logger zerolog.Logger, ticker string) zerolog.Logger {
	return logger.With().Str("ticker", ticker).Logger()
}

// WithTradeID adds a trade ID to the logger context.
func WithTradeID(logger zerolog.Logger, tradeID string) zerolog.Logger {
	return logger.With().Str("trade_id", tradeID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogRefresh logs the outcome of one refresh pass.
func LogRefresh(logger zerolog.Logger, open, quoted, failed, alerts int, saved bool, took time.Duration) {
	logger.Info().
		Str("event", "refresh").
		Int("open", open).
		Int("quoted", quoted).
		Int("failed", failed).
		Int("alerts", alerts).
		Bool("saved", saved).
		Dur("took", took).
		Msg("Positions refreshed")
}

// LogAlert logs a raised risk alert.
func LogAlert(logger zerolog.Logger, alert models.Alert) {
	ev := logger.Info().
		Str("event", "alert").
		Str("kind", string(alert.Kind)).
		Str("trade_id", alert.TradeID).
		Str("ticker", alert.Ticker).
		Str("level", string(alert.Level))
	if alert.DTE != nil {
		ev = ev.Int("dte", *alert.DTE)
	}
	if alert.Moneyness.Valid {
		ev = ev.Str("moneyness", alert.Moneyness.Decimal.StringFixed(2))
	}
	ev.Msg(alert.Message)
}
