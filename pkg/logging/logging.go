// Package logging provides the internal logger used for lifecycle events,
// with adapters for slog, zap, zerolog and the standard library logger.
package logging

import (
	"context"
	"slices"
	"strings"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownLevel is returned by ParseLevel for names outside debug, info, warn and error.
var ErrUnknownLevel = ewrap.New("unknown log level")

// Adapter describes the logging contract used within grpc-observability.
type Adapter interface {
	Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue)
	Info(ctx context.Context, msg string, attrs ...attribute.KeyValue)
	Warn(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue)
	Error(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue)
}

// Level orders log severities.
type Level int8

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is the default level.
	LevelInfo
	// LevelWarn reports recoverable failures.
	LevelWarn
	// LevelError reports failures that change lifecycle state.
	LevelError
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel converts a case-insensitive level name. An empty name is LevelInfo.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, ewrap.Wrapf(ErrUnknownLevel, "%q", name)
	}
}

// NoopAdapter discards all logs.
type NoopAdapter struct{}

// NewNoopAdapter returns a logger that drops every log event.
func NewNoopAdapter() Adapter {
	return NoopAdapter{}
}

// Info implements Adapter.
func (NoopAdapter) Info(context.Context, string, ...attribute.KeyValue) {}

// Warn implements Adapter.
func (NoopAdapter) Warn(context.Context, error, string, ...attribute.KeyValue) {}

// Error implements Adapter.
func (NoopAdapter) Error(context.Context, error, string, ...attribute.KeyValue) {}

// Debug implements Adapter.
func (NoopAdapter) Debug(context.Context, string, ...attribute.KeyValue) {}

// With returns an adapter that prepends attrs to every event logged through it.
func With(adapter Adapter, attrs ...attribute.KeyValue) Adapter {
	if adapter == nil {
		return NewNoopAdapter()
	}

	if len(attrs) == 0 {
		return adapter
	}

	if bound, ok := adapter.(boundAdapter); ok {
		return boundAdapter{inner: bound.inner, attrs: append(slices.Clip(bound.attrs), attrs...)}
	}

	return boundAdapter{inner: adapter, attrs: slices.Clone(attrs)}
}

type boundAdapter struct {
	inner Adapter
	attrs []attribute.KeyValue
}

func (b boundAdapter) Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	b.inner.Debug(ctx, msg, b.merge(attrs)...)
}

func (b boundAdapter) Info(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	b.inner.Info(ctx, msg, b.merge(attrs)...)
}

func (b boundAdapter) Warn(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue) {
	b.inner.Warn(ctx, err, msg, b.merge(attrs)...)
}

func (b boundAdapter) Error(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue) {
	b.inner.Error(ctx, err, msg, b.merge(attrs)...)
}

func (b boundAdapter) merge(attrs []attribute.KeyValue) []attribute.KeyValue {
	return append(slices.Clip(b.attrs), attrs...)
}

// backend writes one event to a concrete logger. Level checks happen before it is called.
type backend interface {
	log(ctx context.Context, level Level, err error, msg string, attrs []attribute.KeyValue)
}

// leveled adapts a backend to Adapter. Events below min are dropped, and
// debug and info events are kept only when sample reports true.
type leveled struct {
	out    backend
	min    Level
	sample func() bool
}

func newLeveled(out backend, minLevel Level, sample func() bool) Adapter {
	return &leveled{out: out, min: minLevel, sample: sample}
}

// Debug implements Adapter.
func (l *leveled) Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	l.dispatch(ctx, LevelDebug, nil, msg, attrs)
}

// Info implements Adapter.
func (l *leveled) Info(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	l.dispatch(ctx, LevelInfo, nil, msg, attrs)
}

// Warn implements Adapter.
func (l *leveled) Warn(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue) {
	l.dispatch(ctx, LevelWarn, err, msg, attrs)
}

// Error implements Adapter.
func (l *leveled) Error(ctx context.Context, err error, msg string, attrs ...attribute.KeyValue) {
	l.dispatch(ctx, LevelError, err, msg, attrs)
}

func (l *leveled) dispatch(ctx context.Context, level Level, err error, msg string, attrs []attribute.KeyValue) {
	if level < l.min {
		return
	}

	if level < LevelWarn && l.sample != nil && !l.sample() {
		return
	}

	l.out.log(ctx, level, err, msg, withTrace(ctx, attrs))
}

func withError(attrs []attribute.KeyValue, err error) []attribute.KeyValue {
	if err == nil {
		return attrs
	}

	return append(slices.Clip(attrs), attribute.String("error", err.Error()))
}

func withTrace(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return attrs
	}

	traceAttrs := []attribute.KeyValue{
		attribute.String("trace_id", spanCtx.TraceID().String()),
		attribute.String("span_id", spanCtx.SpanID().String()),
	}

	return append(traceAttrs, attrs...)
}

func attrValue(attr attribute.KeyValue) any {
	//nolint:exhaustive // attribute.INVALID falls through to AsInterface.
	switch attr.Value.Type() {
	case attribute.BOOL:
		return attr.Value.AsBool()
	case attribute.INT64:
		return attr.Value.AsInt64()
	case attribute.FLOAT64:
		return attr.Value.AsFloat64()
	case attribute.STRING:
		return attr.Value.AsString()
	case attribute.STRINGSLICE:
		return attr.Value.AsStringSlice()
	default:
		return attr.Value.AsInterface()
	}
}
