package logging

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSlogAdapter creates a slog-based adapter. A nil logger writes JSON to stderr.
func NewSlogAdapter(logger *slog.Logger) Adapter {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	return newLeveled(slogBackend{logger: logger}, LevelDebug, nil)
}

// NewZapAdapter creates a zap adapter. A nil logger discards output.
func NewZapAdapter(logger *zap.Logger) Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return newLeveled(zapBackend{logger: logger}, LevelDebug, nil)
}

// NewZerologAdapter creates an adapter using zerolog.
func NewZerologAdapter(logger zerolog.Logger) Adapter {
	return newLeveled(zerologBackend{logger: logger}, LevelDebug, nil)
}

// NewStdAdapter creates an adapter around log.Logger. If logger is nil log.Default is used.
func NewStdAdapter(logger *log.Logger) Adapter {
	if logger == nil {
		logger = log.Default()
	}

	return newLeveled(stdBackend{logger: logger}, LevelDebug, nil)
}

type slogBackend struct {
	logger *slog.Logger
}

func (s slogBackend) log(ctx context.Context, level Level, err error, msg string, attrs []attribute.KeyValue) {
	attrs = withError(attrs, err)

	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, slog.Any(string(attr.Key), attrValue(attr)))
	}

	s.logger.LogAttrs(ctx, slogLevel(level), msg, out...)
}

type zapBackend struct {
	logger *zap.Logger
}

func (z zapBackend) log(_ context.Context, level Level, err error, msg string, attrs []attribute.KeyValue) {
	fields := make([]zap.Field, 0, len(attrs)+1)
	for _, attr := range attrs {
		fields = append(fields, zap.Any(string(attr.Key), attrValue(attr)))
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	z.logger.Log(zapLevel(level), msg, fields...)
}

type zerologBackend struct {
	logger zerolog.Logger
}

func (z zerologBackend) log(_ context.Context, level Level, err error, msg string, attrs []attribute.KeyValue) {
	event := z.logger.WithLevel(zerologLevel(level))
	for _, attr := range attrs {
		event = event.Interface(string(attr.Key), attrValue(attr))
	}

	if err != nil {
		event = event.Err(err)
	}

	event.Msg(msg)
}

type stdBackend struct {
	logger *log.Logger
}

func (s stdBackend) log(_ context.Context, level Level, err error, msg string, attrs []attribute.KeyValue) {
	var builder strings.Builder

	builder.WriteString(level.String())
	builder.WriteString(" ")
	builder.WriteString(msg)

	for _, attr := range withError(attrs, err) {
		fmt.Fprintf(&builder, " %s=%v", attr.Key, attrValue(attr))
	}

	s.logger.Println(builder.String())
}

func slogLevel(level Level) slog.Level {
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

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
