// Package interceptors builds the client and server gRPC interceptors that
// turn call lifecycle events into sink records.
package interceptors

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
	"github.com/hyp3rd/grpc-observability/pkg/sink"
)

// Option customizes a factory.
type Option func(*emitter)

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger reports sink write failures through logger.
func WithLogger(logger logging.Adapter) Option {
	return func(e *emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

type emitter struct {
	sink   sink.Sink
	cfg    config.Config
	side   sink.Side
	labels map[string]string
	now    func() time.Time
	logger logging.Adapter
}

func newEmitter(
	side sink.Side,
	s sink.Sink,
	locationTags, customTags map[string]string,
	cfg config.Config,
	opts []Option,
) *emitter {
	labels := make(map[string]string, len(locationTags)+len(customTags))
	maps.Copy(labels, locationTags)
	maps.Copy(labels, customTags)

	e := &emitter{
		sink:   s,
		cfg:    cfg,
		side:   side,
		labels: labels,
		now:    time.Now,
		logger: logging.NewNoopAdapter(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// begin returns nil when no filter covers the method.
func (e *emitter) begin(ctx context.Context, fullMethod string) *call {
	filter, ok := e.cfg.MatchFilter(fullMethod)
	if !ok {
		return nil
	}

	service, method := splitFullMethod(fullMethod)

	c := &call{
		emitter: e,
		id:      uuid.New(),
		service: service,
		method:  method,
		filter:  filter,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		c.traceID = sc.TraceID().String()
		c.spanID = sc.SpanID().String()
	}

	return c
}

type call struct {
	emitter *emitter
	id      uuid.UUID
	seq     atomic.Uint64
	service string
	method  string
	filter  config.LogFilter

	authority string
	peer      atomic.Pointer[string]
	traceID   string
	spanID    string
}

func (c *call) emit(ctx context.Context, event config.EventType, fill func(*sink.Record)) {
	e := c.emitter
	if !e.cfg.Captures(event) {
		return
	}

	rec := sink.Record{
		CallID:    c.id,
		Sequence:  c.seq.Add(1),
		Timestamp: e.now(),
		Event:     event,
		Side:      e.side,
		Service:   c.service,
		Method:    c.method,
		Authority: c.authority,
		Peer:      c.peerAddr(),
		TraceID:   c.traceID,
		SpanID:    c.spanID,
		Labels:    e.labels,
	}

	if fill != nil {
		fill(&rec)
	}

	err := e.sink.Write(ctx, rec)
	if err != nil {
		e.logger.Warn(ctx, err, "write call record",
			attribute.String("grpc.method", rec.FullMethod()),
			attribute.String("grpc.event_type", event.String()),
		)
	}
}

func (c *call) setPeer(addr string) {
	c.peer.Store(&addr)
}

func (c *call) peerAddr() string {
	if addr := c.peer.Load(); addr != nil {
		return *addr
	}

	return ""
}

func (c *call) emitMetadata(ctx context.Context, event config.EventType, md metadata.MD) {
	c.emit(ctx, event, c.withMetadata(md))
}

func (c *call) emitMessage(ctx context.Context, event config.EventType, msg any) {
	c.emit(ctx, event, c.withMessage(msg))
}

func (c *call) emitTrailer(ctx context.Context, md metadata.MD, err error) {
	fillMD := c.withMetadata(md)

	c.emit(ctx, config.EventTrailer, func(rec *sink.Record) {
		fillMD(rec)

		st := status.Convert(err)
		rec.StatusCode = st.Code().String()
		rec.StatusMessage = st.Message()
	})
}

func (c *call) withMetadata(md metadata.MD) func(*sink.Record) {
	return func(rec *sink.Record) {
		rec.Metadata, rec.MetadataTruncated = truncateMetadata(md, c.filter)
	}
}

func (c *call) withMessage(msg any) func(*sink.Record) {
	return func(rec *sink.Record) {
		payload := marshalMessage(msg)
		kept, truncated := c.filter.TruncateMessage(len(payload))

		rec.PayloadSize = len(payload)
		rec.PayloadTruncated = truncated

		if kept > 0 {
			rec.Payload = payload[:kept]
		}
	}
}

func marshalMessage(msg any) []byte {
	pm, ok := msg.(proto.Message)
	if !ok || pm == nil {
		return nil
	}

	data, err := proto.Marshal(pm)
	if err != nil {
		return nil
	}

	return data
}

// truncateMetadata keeps whole entries in key order until the header budget
// is spent. Pseudo headers and binary values are skipped.
func truncateMetadata(md metadata.MD, filter config.LogFilter) (map[string]string, bool) {
	if len(md) == 0 {
		return nil, false
	}

	keys := make([]string, 0, len(md))
	total := 0

	for key, values := range md {
		if strings.HasPrefix(key, ":") || strings.HasSuffix(key, "-bin") {
			continue
		}

		keys = append(keys, key)
		total += entrySize(key, values)
	}

	slices.Sort(keys)

	budget, truncated := filter.TruncateHeader(total)
	if budget == 0 {
		return nil, truncated
	}

	out := make(map[string]string, len(keys))
	used := 0

	for _, key := range keys {
		size := entrySize(key, md[key])
		if used+size > budget {
			truncated = true

			break
		}

		used += size
		out[key] = strings.Join(md[key], ",")
	}

	return out, truncated
}

func entrySize(key string, values []string) int {
	size := 0
	for _, value := range values {
		size += len(key) + len(value)
	}

	return size
}

func splitFullMethod(full string) (service, method string) {
	full = strings.TrimPrefix(full, "/")
	if full == "" {
		return "unknown", "unknown"
	}

	service, method, ok := strings.Cut(full, "/")
	if !ok || method == "" || strings.Contains(method, "/") {
		return full, "unknown"
	}

	return service, method
}
