// Package logging provides component-scoped structured loggers on top of zap.
package logging

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured key/value pairs for a single log line.
type Fields map[string]interface{}

type ctxKey struct{}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

var (
	baseMu sync.RWMutex
	base   = zap.NewNop()
)

// Init configures the process-wide base logger. Production uses JSON output,
// everything else a console encoder at debug level.
func Init(env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	baseMu.Lock()
	base = l
	baseMu.Unlock()
	return nil
}

// Sync flushes the base logger.
func Sync() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = base.Sync()
}

// Logger is a named logger for one component.
type Logger struct {
	z *zap.Logger
}

// New returns a logger tagged with the component name.
func New(component string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &Logger{z: base.With(zap.String("component", component))}
}

// NewWithZap wraps an existing zap logger. Used by tests with observers.
func NewWithZap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// WithContext returns a logger that also carries the request id stored in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return &Logger{z: l.z.With(zap.String(RequestIDKey, id))}
	}
	return l
}

func (l *Logger) Debug(msg string, fields ...Fields) {
	l.z.Debug(msg, toZap(fields)...)
}

func (l *Logger) Info(msg string, fields ...Fields) {
	l.z.Info(msg, toZap(fields)...)
}

func (l *Logger) Warn(msg string, fields ...Fields) {
	l.z.Warn(msg, toZap(fields)...)
}

func (l *Logger) Error(msg string, fields ...Fields) {
	l.z.Error(msg, toZap(fields)...)
}

func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.z.Fatal(msg, toZap(fields)...)
}

// ContextWithRequestID stores a request id for downstream loggers and events.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func toZap(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	var out []zap.Field
	for _, f := range fields {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err, ok := f[k].(error); ok {
				out = append(out, zap.NamedError(k, err))
				continue
			}
			out = append(out, zap.Any(k, f[k]))
		}
	}
	return out
}
