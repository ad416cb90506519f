// Package config parses the gRPC observability configuration document.
package config

import (
	"slices"
	"strings"
)

// Unlimited disables truncation when used as a LogFilter byte limit.
const Unlimited = -1

// Config is the validated observability configuration. It is immutable once
// built: accessors hand out copies and no setters exist.
type Config struct {
	enableCloudLogging   bool
	destinationProjectID string
	hasDestination       bool
	logFilters           []LogFilter
	eventTypes           []EventType
}

// LogFilter limits which calls are logged and how much of each call is retained.
// Filters keep their declaration order; picking the first match is up to the consumer.
type LogFilter struct {
	// Pattern is "*", "<service>/*" or "<service>/<method>".
	Pattern string `json:"pattern"       yaml:"pattern"`
	// HeaderBytes caps logged metadata bytes. Unlimited logs everything, 0 logs nothing.
	HeaderBytes int `json:"header_bytes"  yaml:"header_bytes"`
	// MessageBytes caps logged message bytes with the same conventions.
	MessageBytes int `json:"message_bytes" yaml:"message_bytes"`
}

// EnableCloudLogging reports whether records are routed to the remote logging backend.
func (c Config) EnableCloudLogging() bool {
	return c.enableCloudLogging
}

// DestinationProjectID returns the configured destination, if any.
func (c Config) DestinationProjectID() (string, bool) {
	return c.destinationProjectID, c.hasDestination
}

// LogFilters returns a copy of the filters in declaration order.
func (c Config) LogFilters() []LogFilter {
	return slices.Clone(c.logFilters)
}

// EventTypes returns a copy of the captured event types in declaration order.
// An empty result means every event type is captured.
func (c Config) EventTypes() []EventType {
	return slices.Clone(c.eventTypes)
}

// CapturesAll reports whether the configuration places no restriction on event types.
func (c Config) CapturesAll() bool {
	return len(c.eventTypes) == 0
}

// Captures reports whether records of the given event type should be emitted.
func (c Config) Captures(event EventType) bool {
	if c.CapturesAll() {
		return true
	}

	return slices.Contains(c.eventTypes, event)
}

// MatchFilter returns the first filter matching fullMethod ("/service/method").
func (c Config) MatchFilter(fullMethod string) (LogFilter, bool) {
	for _, filter := range c.logFilters {
		if filter.Matches(fullMethod) {
			return filter, true
		}
	}

	return LogFilter{}, false
}

// Matches reports whether the filter pattern covers fullMethod.
func (f LogFilter) Matches(fullMethod string) bool {
	pattern := strings.TrimPrefix(strings.TrimSpace(f.Pattern), "/")
	method := strings.TrimPrefix(fullMethod, "/")

	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "/*"):
		service, _, ok := strings.Cut(method, "/")

		return ok && service == strings.TrimSuffix(pattern, "/*")
	default:
		return pattern == method
	}
}

// TruncateHeader reports how many of n metadata bytes the filter retains.
func (f LogFilter) TruncateHeader(n int) (int, bool) {
	return truncate(f.HeaderBytes, n)
}

// TruncateMessage reports how many of n message bytes the filter retains.
func (f LogFilter) TruncateMessage(n int) (int, bool) {
	return truncate(f.MessageBytes, n)
}

func truncate(limit, n int) (kept int, truncated bool) {
	if limit < 0 || n <= limit {
		return n, false
	}

	return limit, true
}
