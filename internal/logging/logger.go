// Package logging builds the process logger and carries it through contexts.
package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Level zapcore.Level
	// Format of stdout output; the log file is always JSON.
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type ctxKey struct{}

var (
	mu      sync.Mutex
	current = Config{Level: zapcore.InfoLevel, Format: FormatConsole}
	global  *zap.Logger
)

// SetConfig replaces the configuration of DefaultLogger. Loggers handed out
// earlier keep their old settings.
func SetConfig(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = *c
	global = nil
}

// ParseLevel falls back to info for unknown level names.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func NewLogger(c *Config) *zap.Logger {
	return zap.New(zapcore.NewTee(cores(c, zapcore.Lock(os.Stdout))...))
}

func cores(c *Config, stdout zapcore.WriteSyncer) []zapcore.Core {
	level := zap.NewAtomicLevelAt(c.Level)
	out := []zapcore.Core{zapcore.NewCore(stdoutEncoder(c.Format), stdout, level)}
	if c.FilePath != "" {
		out = append(out, zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()),
			zapcore.AddSync(rotator(c)), level))
	}
	return out
}

func stdoutEncoder(format string) zapcore.Encoder {
	if format == FormatJSON {
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	}
	ec := zap.NewProductionEncoderConfig()
	ec.CallerKey = ""
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	return zapcore.NewConsoleEncoder(ec)
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

func rotator(c *Config) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   c.FilePath,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   true,
	}
	if l.MaxSize <= 0 {
		l.MaxSize = 10
	}
	return l
}

func DefaultLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = NewLogger(&current)
	}
	return global
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return logger
		}
	}
	return DefaultLogger()
}
