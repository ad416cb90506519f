package config

// EventType identifies a point in the lifecycle of a gRPC call that can be logged.
type EventType int

const (
	// EventUnknown is the placeholder event for records that carry no lifecycle information.
	EventUnknown EventType = iota
	// EventRequestHeader is emitted when the client sends, or the server receives, request metadata.
	EventRequestHeader
	// EventResponseHeader is emitted for response metadata.
	EventResponseHeader
	// EventRequestMessage is emitted for each request message.
	EventRequestMessage
	// EventResponseMessage is emitted for each response message.
	EventResponseMessage
	// EventTrailer is emitted with the final status and trailing metadata.
	EventTrailer
	// EventHalfClose is emitted when the client closes its send direction.
	EventHalfClose
	// EventCancel is emitted when the call is cancelled before completion.
	EventCancel
)

var eventTypeNames = [...]string{
	EventUnknown:         "GRPC_CALL_UNKNOWN",
	EventRequestHeader:   "GRPC_CALL_REQUEST_HEADER",
	EventResponseHeader:  "GRPC_CALL_RESPONSE_HEADER",
	EventRequestMessage:  "GRPC_CALL_REQUEST_MESSAGE",
	EventResponseMessage: "GRPC_CALL_RESPONSE_MESSAGE",
	EventTrailer:         "GRPC_CALL_TRAILER",
	EventHalfClose:       "GRPC_CALL_HALF_CLOSE",
	EventCancel:          "GRPC_CALL_CANCEL",
}

// AllEventTypes lists every recognised event type in declaration order.
func AllEventTypes() []EventType {
	out := make([]EventType, len(eventTypeNames))
	for i := range eventTypeNames {
		out[i] = EventType(i)
	}

	return out
}

// ParseEventType converts a configuration string into an EventType.
// Names outside the enumeration are rejected, never defaulted.
func ParseEventType(name string) (EventType, error) {
	for i, candidate := range eventTypeNames {
		if candidate == name {
			return EventType(i), nil
		}
	}

	return EventUnknown, unknownEventTypeError(name)
}

// String returns the configuration name of the event type.
func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventTypeNames) {
		return "GRPC_CALL_UNKNOWN"
	}

	return eventTypeNames[e]
}

// MarshalText implements encoding.TextMarshaler.
func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}

	*e = parsed

	return nil
}
