package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/logging"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/hyp3rd/grpc-observability/pkg/config"
)

type recordingLogger struct {
	mu       sync.Mutex
	entries  []logging.Entry
	flushes  int
	flushErr error
}

func (r *recordingLogger) Log(e logging.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
}

func (r *recordingLogger) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushes++

	return r.flushErr
}

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed int
	err    error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}

	w.msgs = append(w.msgs, msgs...)

	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed++

	return nil
}

func sampleRecord() Record {
	return Record{
		CallID:      uuid.MustParse("6f1c1d0e-9a2b-4c3d-8e4f-5a6b7c8d9e0f"),
		Sequence:    3,
		Timestamp:   time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
		Event:       config.EventRequestMessage,
		Side:        SideServer,
		Service:     "pkg.Greeter",
		Method:      "Hello",
		Payload:     []byte("hi"),
		PayloadSize: 10,
		TraceID:     "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:      "00f067aa0ba902b7",
		Labels:      map[string]string{"project_id": "demo"},
	}
}

func TestCloudSinkWritesEntries(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	s := newCloudSink("demo", logger, nil)

	err := s.Write(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	if len(logger.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(logger.entries))
	}

	entry := logger.entries[0]
	if entry.Trace != "projects/demo/traces/4bf92f3577b34da6a3ce929d0e0e4736" || entry.SpanID != "00f067aa0ba902b7" {
		t.Fatalf("unexpected trace correlation %q %q", entry.Trace, entry.SpanID)
	}

	payload, ok := entry.Payload.(wireRecord)
	if !ok {
		t.Fatalf("unexpected payload type %T", entry.Payload)
	}

	if payload.EventType != "GRPC_CALL_REQUEST_MESSAGE" || payload.Logger != "SERVER" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if entry.Labels["project_id"] != "demo" {
		t.Fatalf("expected labels to be forwarded, got %v", entry.Labels)
	}
}

func TestCloudSinkCloseFlushesOnce(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{flushErr: errors.New("flush failed")}
	clientCloses := 0
	s := newCloudSink("demo", logger, func() error {
		clientCloses++

		return nil
	})

	err := s.Close()
	if err == nil {
		t.Fatal("expected flush error to surface")
	}

	if again := s.Close(); !errors.Is(again, logger.flushErr) {
		t.Fatalf("expected the same close error, got %v", again)
	}

	if logger.flushes != 1 || clientCloses != 1 {
		t.Fatalf("expected single flush and close, got %d/%d", logger.flushes, clientCloses)
	}

	if err := s.Write(context.Background(), sampleRecord()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestNewCloudUnresolvedProject(t *testing.T) {
	t.Parallel()

	_, err := NewCloud(context.Background(), "", WithProjectResolver(func(context.Context) (string, error) {
		return "", nil
	}))
	if !errors.Is(err, ErrProjectUnresolved) {
		t.Fatalf("expected ErrProjectUnresolved, got %v", err)
	}

	lookupErr := errors.New("metadata unreachable")

	_, err = NewCloud(context.Background(), " ", WithProjectResolver(func(context.Context) (string, error) {
		return "", lookupErr
	}))
	if !errors.Is(err, ErrProjectUnresolved) || !errors.Is(err, lookupErr) {
		t.Fatalf("expected both sentinel and cause, got %v", err)
	}
}

func TestKafkaSinkPublishesCBOR(t *testing.T) {
	t.Parallel()

	writer := &recordingWriter{}
	s := newKafkaSink(writer, "grpc-logs")
	rec := sampleRecord()

	err := s.Write(context.Background(), rec)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.msgs))
	}

	msg := writer.msgs[0]
	if string(msg.Key) != string(rec.CallID[:]) {
		t.Fatal("expected message key to be the call id")
	}

	var decoded wireRecord

	err = cbor.Unmarshal(msg.Value, &decoded)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	if decoded.CallID != rec.CallID.String() || decoded.EventType != "GRPC_CALL_REQUEST_MESSAGE" {
		t.Fatalf("unexpected decoded record %+v", decoded)
	}

	if !decoded.Timestamp.Equal(rec.Timestamp) {
		t.Fatalf("timestamp mismatch: %v vs %v", decoded.Timestamp, rec.Timestamp)
	}

	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != "GRPC_CALL_REQUEST_MESSAGE" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestKafkaSinkWrapsWriterErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("broker down")
	s := newKafkaSink(&recordingWriter{err: cause}, "grpc-logs")

	err := s.Write(context.Background(), sampleRecord())
	if !errors.Is(err, cause) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestKafkaSinkCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	writer := &recordingWriter{}
	s := newKafkaSink(writer, "grpc-logs")

	_ = s.Close()
	_ = s.Close()

	if writer.closed != 1 {
		t.Fatalf("expected one writer close, got %d", writer.closed)
	}

	if err := s.Write(context.Background(), sampleRecord()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestParseKafkaDestination(t *testing.T) {
	t.Parallel()

	brokers, topic, err := ParseKafkaDestination("kafka://a:9092, b:9092/grpc-logs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(brokers) != 2 || brokers[0] != "a:9092" || brokers[1] != "b:9092" || topic != "grpc-logs" {
		t.Fatalf("unexpected parse result %v %q", brokers, topic)
	}

	for _, bad := range []string{"kafka://", "kafka://a:9092", "kafka:///topic", "http://a/topic"} {
		_, _, err := ParseKafkaDestination(bad)
		if !errors.Is(err, ErrInvalidDestination) {
			t.Fatalf("%q: expected ErrInvalidDestination, got %v", bad, err)
		}
	}
}

func TestNewSelectsSink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	local, err := New(ctx, "my-project", WithCloudLogging(false))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, ok := local.(*LoggerSink); !ok {
		t.Fatalf("expected LoggerSink, got %T", local)
	}

	remote, err := New(ctx, "kafka://localhost:9092/grpc-logs", WithCloudLogging(false))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	kafkaSink, ok := remote.(*KafkaSink)
	if !ok || kafkaSink.Topic() != "grpc-logs" {
		t.Fatalf("expected KafkaSink on grpc-logs, got %T", remote)
	}

	_ = remote.Close()

	_, err = New(ctx, "kafka://", WithCloudLogging(true))
	if !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", err)
	}
}
