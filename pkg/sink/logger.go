package sink

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/grpc-observability/pkg/logging"
)

// LoggerSink writes records through the process logger. It backs
// configurations that disable cloud logging.
type LoggerSink struct {
	logger logging.Adapter
	closed atomic.Bool
}

// NewLogger returns a sink that emits one info entry per record.
func NewLogger(logger logging.Adapter) *LoggerSink {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	return &LoggerSink{logger: logger}
}

// Write implements Sink.
func (l *LoggerSink) Write(ctx context.Context, rec Record) error {
	if l.closed.Load() {
		return ErrClosed
	}

	attrs := []attribute.KeyValue{
		attribute.String("grpc.call_id", rec.CallID.String()),
		attribute.Int64("grpc.sequence", int64(rec.Sequence)),
		attribute.String("grpc.event_type", rec.Event.String()),
		attribute.String("grpc.logger", string(rec.Side)),
		attribute.String("grpc.method", rec.FullMethod()),
	}

	if rec.Peer != "" {
		attrs = append(attrs, attribute.String("grpc.peer", rec.Peer))
	}

	if rec.PayloadSize > 0 {
		attrs = append(attrs,
			attribute.Int("grpc.payload_size", rec.PayloadSize),
			attribute.Bool("grpc.payload_truncated", rec.PayloadTruncated),
		)
	}

	if rec.StatusCode != "" {
		attrs = append(attrs, attribute.String("grpc.status_code", rec.StatusCode))
	}

	for key, value := range rec.Labels {
		attrs = append(attrs, attribute.String("label."+key, value))
	}

	l.logger.Info(ctx, "grpc call event", attrs...)

	return nil
}

// Close implements Sink.
func (l *LoggerSink) Close() error {
	l.closed.Store(true)

	return nil
}
