// Package sink delivers call-level log records to a backend: Google Cloud
// Logging, a Kafka topic or the process logger.
package sink

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/hyp3rd/grpc-observability/pkg/config"
)

// Side identifies which end of the call produced a record.
type Side string

const (
	// SideClient marks records emitted by the channel interceptor.
	SideClient Side = "CLIENT"
	// SideServer marks records emitted by the server interceptor.
	SideServer Side = "SERVER"
)

// Sink consumes log records. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Record is one captured call event.
type Record struct {
	CallID            uuid.UUID         `json:"call_id"`
	Sequence          uint64            `json:"sequence"`
	Timestamp         time.Time         `json:"timestamp"`
	Event             config.EventType  `json:"event_type"`
	Side              Side              `json:"logger"`
	Service           string            `json:"service_name"`
	Method            string            `json:"method_name"`
	Authority         string            `json:"authority,omitempty"`
	Peer              string            `json:"peer_address,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	MetadataTruncated bool              `json:"metadata_truncated,omitempty"`
	Payload           []byte            `json:"payload,omitempty"`
	PayloadSize       int               `json:"payload_size,omitempty"`
	PayloadTruncated  bool              `json:"payload_truncated,omitempty"`
	StatusCode        string            `json:"status_code,omitempty"`
	StatusMessage     string            `json:"status_message,omitempty"`
	TraceID           string            `json:"trace_id,omitempty"`
	SpanID            string            `json:"span_id,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	out.Metadata = maps.Clone(r.Metadata)
	out.Labels = maps.Clone(r.Labels)

	if r.Payload != nil {
		out.Payload = append([]byte(nil), r.Payload...)
	}

	return out
}

// FullMethod returns "/service/method".
func (r Record) FullMethod() string {
	return "/" + r.Service + "/" + r.Method
}
