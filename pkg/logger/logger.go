package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel selects the minimum severity a logger emits.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// OutputFormat selects the handler backing a logger.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// LoggerConfig carries everything needed to build a Logger.
type LoggerConfig struct {
	Level      LogLevel     `mapstructure:"level" yaml:"level" json:"level"`
	Format     OutputFormat `mapstructure:"format" yaml:"format" json:"format"`
	AddSource  bool         `mapstructure:"add_source" yaml:"add_source" json:"add_source"`
	Component  string       `mapstructure:"component" yaml:"component" json:"component"`
	Version    string       `mapstructure:"version" yaml:"version" json:"version"`
	TimeFormat string       `mapstructure:"time_format" yaml:"time_format" json:"time_format"`
}

// DefaultConfig returns the configuration used when a caller has no
// preference: info level, colored text, RFC3339 timestamps.
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LevelInfo,
		Format:     FormatText,
		Component:  "wireguard-relay",
		Version:    "unknown",
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with context extraction and structured-error
// enrichment. The embedded logger keeps the plain Info/Debug/Warn/Error
// surface available.
type Logger struct {
	*slog.Logger
	config LoggerConfig
}

// New builds a Logger from the given configuration.
func New(config LoggerConfig) *Logger {
	return &Logger{
		Logger: slog.New(newHandler(config)),
		config: config,
	}
}

// NewDevelopment builds a debug-level text logger with source locations,
// suitable for tests and local runs.
func NewDevelopment(component string) *Logger {
	return New(LoggerConfig{
		Level:      LevelDebug,
		Format:     FormatText,
		AddSource:  true,
		Component:  component,
		Version:    "dev",
		TimeFormat: time.Kitchen,
	})
}

// NewProduction builds an info-level JSON logger.
func NewProduction(component, version string) *Logger {
	return New(LoggerConfig{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Component: component,
		Version:   version,
	})
}

// With returns a logger that attaches the given attributes to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithComponent returns a logger reporting itself as a sub-component.
// The parent logger is not modified.
func (l *Logger) WithComponent(name string) *Logger {
	config := l.config
	config.Component = name
	return &Logger{
		Logger: l.Logger,
		config: config,
	}
}

// WithContext returns a logger that attaches the component, version, and
// any request ID, serial, or operation carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := contextAttrs(ctx)
	attrs = append(attrs,
		slog.String("component", l.config.Component),
		slog.String("version", l.config.Version),
	)

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// Unwrap exposes the underlying slog.Logger for packages that take one
// directly.
func (l *Logger) Unwrap() *slog.Logger {
	return l.Logger
}

// domainError mirrors the shape of the shared structured errors so the
// logger can enrich entries without depending on the errors package.
type domainError interface {
	error
	Domain() string
	Code() string
	Retryable() bool
	Metadata() map[string]any
}

// ErrorCtx logs err at error level. Structured errors contribute their
// domain, code, retryability, and metadata as attributes.
func (l *Logger) ErrorCtx(ctx context.Context, msg string, err error, args ...any) {
	attrs := []any{slog.String("error", err.Error())}

	if derr, ok := err.(domainError); ok {
		attrs = append(attrs,
			slog.String("error_domain", derr.Domain()),
			slog.String("error_code", derr.Code()),
			slog.Bool("retryable", derr.Retryable()),
		)
		for k, v := range derr.Metadata() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	attrs = append(attrs, args...)
	l.WithContext(ctx).Error(msg, attrs...)
}

// HTTPRequest logs a finished HTTP exchange. Server errors log at error
// level, client errors at warn, everything else at info.
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, args ...any) {
	var level slog.Level
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	default:
		level = slog.LevelInfo
	}

	attrs := []any{
		slog.String("http_method", method),
		slog.String("http_path", path),
		slog.Int("http_status", status),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	l.WithContext(ctx).Log(ctx, level, fmt.Sprintf("%s %s %d", method, path, status), attrs...)
}

// slowStoreWrite is the persistence latency above which a store operation
// logs at warn instead of debug.
const slowStoreWrite = 100 * time.Millisecond

// StoreOp logs a registry store operation with its latency.
func (l *Logger) StoreOp(ctx context.Context, operation, path string, duration time.Duration, args ...any) {
	attrs := []any{
		slog.String("store_operation", operation),
		slog.String("store_path", path),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	if duration > slowStoreWrite {
		l.WithContext(ctx).Warn(fmt.Sprintf("store %s (slow)", operation), attrs...)
		return
	}
	l.WithContext(ctx).Debug(fmt.Sprintf("store %s", operation), attrs...)
}

// Context plumbing. Request-scoped identifiers travel on the context and
// surface on every entry logged through WithContext.

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	SerialKey    contextKey = "serial"
	OperationKey contextKey = "operation"
)

// WithRequestID stamps ctx with an HTTP request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithSerial stamps ctx with the device serial an operation concerns.
func WithSerial(ctx context.Context, serial string) context.Context {
	return context.WithValue(ctx, SerialKey, serial)
}

// WithOperation stamps ctx with the name of the running operation.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// GetRequestID returns the request identifier on ctx, or "".
func GetRequestID(ctx context.Context) string {
	return stringFromContext(ctx, RequestIDKey)
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := stringFromContext(ctx, RequestIDKey); id != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), id))
	}
	if serial := stringFromContext(ctx, SerialKey); serial != "" {
		attrs = append(attrs, slog.String(string(SerialKey), serial))
	}
	if op := stringFromContext(ctx, OperationKey); op != "" {
		attrs = append(attrs, slog.String(string(OperationKey), op))
	}
	return attrs
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}

func parseLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(config LoggerConfig) slog.Handler {
	level := parseLogLevel(config.Level)

	if config.Format == FormatText {
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			AddSource:  config.AddSource,
		})
	}

	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	})
}
