// Copyright © NGRSoftlab 2020-2025

package lg

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field
type Field = zapcore.Field

func Any(key string, value any) Field                { return zap.Any(key, value) }
func String(key, value string) Field                 { return zap.String(key, value) }
func Strings(key string, value []string) Field       { return zap.Strings(key, value) }
func Int(key string, value int) Field                { return zap.Int(key, value) }
func Bool(key string, value bool) Field              { return zap.Bool(key, value) }
func Duration(key string, value time.Duration) Field { return zap.Duration(key, value) }
func Err(err error) Field                            { return zap.Error(err) }

// Logger is the minimal structured logging interface used across the module
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Config holds logging options
type Config struct {
	ServiceName string `yaml:"service"`
	Debug       bool   `yaml:"debug"`
	Format      string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// New builds a zap backed Logger writing to stderr.
// stdout is left alone so copy scripts can use it for their result
func New(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var base zap.Config
	if cfg.Debug {
		base = zap.NewDevelopmentConfig()
	} else {
		base = zap.NewProductionConfig()
	}
	if cfg.Format != "" {
		base.Encoding = cfg.Format
	}
	base.OutputPaths = []string{"stderr"}
	base.ErrorOutputPaths = []string{"stderr"}
	base.EncoderConfig.TimeKey = "timestamp"
	base.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	if cfg.ServiceName != "" {
		base.InitialFields = map[string]any{"service": cfg.ServiceName}
	}

	logger, err := base.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &zapLogger{l: logger}, nil
}

// Must is New that falls back to a console logger on stderr on failure
func Must(cfg *Config) Logger {
	l, err := New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize logger: %v\n", err)
		return &zapLogger{l: zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			zapcore.InfoLevel,
		))}
	}
	return l
}

// FromZap wraps an existing *zap.Logger
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

type zapLogger struct{ l *zap.Logger }

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...Field) Logger       { return &zapLogger{l: z.l.With(fields...)} }
func (z *zapLogger) Sync() error                       { return z.l.Sync() }

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}
func (noopLogger) With(...Field) Logger   { return noopLogger{} }
func (noopLogger) Sync() error            { return nil }

// Discard drops everything
var Discard Logger = noopLogger{}

type ctxKey struct{}

// Attach returns a new context carrying l
func Attach(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the attached Logger or Discard
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return Discard
}
