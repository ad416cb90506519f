package sink

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var recordEncMode cbor.EncMode

func init() {
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}

	var err error

	recordEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR encoder mode: %v", err))
	}
}

// wireRecord is the serialized shape shared by the Cloud Logging and Kafka sinks.
type wireRecord struct {
	CallID            string            `cbor:"call_id"                      json:"call_id"`
	Sequence          uint64            `cbor:"sequence"                     json:"sequence"`
	Timestamp         time.Time         `cbor:"timestamp"                    json:"timestamp"`
	EventType         string            `cbor:"event_type"                   json:"event_type"`
	Logger            string            `cbor:"logger"                       json:"logger"`
	ServiceName       string            `cbor:"service_name"                 json:"service_name"`
	MethodName        string            `cbor:"method_name"                  json:"method_name"`
	Authority         string            `cbor:"authority,omitempty"          json:"authority,omitempty"`
	PeerAddress       string            `cbor:"peer_address,omitempty"       json:"peer_address,omitempty"`
	Metadata          map[string]string `cbor:"metadata,omitempty"           json:"metadata,omitempty"`
	MetadataTruncated bool              `cbor:"metadata_truncated,omitempty" json:"metadata_truncated,omitempty"`
	Payload           []byte            `cbor:"payload,omitempty"            json:"payload,omitempty"`
	PayloadSize       int               `cbor:"payload_size,omitempty"       json:"payload_size,omitempty"`
	PayloadTruncated  bool              `cbor:"payload_truncated,omitempty"  json:"payload_truncated,omitempty"`
	StatusCode        string            `cbor:"status_code,omitempty"        json:"status_code,omitempty"`
	StatusMessage     string            `cbor:"status_message,omitempty"     json:"status_message,omitempty"`
	TraceID           string            `cbor:"trace_id,omitempty"           json:"trace_id,omitempty"`
	SpanID            string            `cbor:"span_id,omitempty"            json:"span_id,omitempty"`
	Labels            map[string]string `cbor:"labels,omitempty"             json:"labels,omitempty"`
}

func toWire(rec Record) wireRecord {
	return wireRecord{
		CallID:            rec.CallID.String(),
		Sequence:          rec.Sequence,
		Timestamp:         rec.Timestamp.UTC(),
		EventType:         rec.Event.String(),
		Logger:            string(rec.Side),
		ServiceName:       rec.Service,
		MethodName:        rec.Method,
		Authority:         rec.Authority,
		PeerAddress:       rec.Peer,
		Metadata:          rec.Metadata,
		MetadataTruncated: rec.MetadataTruncated,
		Payload:           rec.Payload,
		PayloadSize:       rec.PayloadSize,
		PayloadTruncated:  rec.PayloadTruncated,
		StatusCode:        rec.StatusCode,
		StatusMessage:     rec.StatusMessage,
		TraceID:           rec.TraceID,
		SpanID:            rec.SpanID,
		Labels:            rec.Labels,
	}
}

// EncodeCBOR serializes a record in the canonical CBOR form used on Kafka.
func EncodeCBOR(rec Record) ([]byte, error) {
	return recordEncMode.Marshal(toWire(rec))
}
