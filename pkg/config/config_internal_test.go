package config

import (
	"testing"
)

func TestParseEventTypeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, event := range AllEventTypes() {
		parsed, err := ParseEventType(event.String())
		if err != nil {
			t.Fatalf("ParseEventType(%q) returned error: %v", event, err)
		}

		if parsed != event {
			t.Fatalf("expected %v, got %v", event, parsed)
		}
	}
}

func TestParseEventTypeIsCaseSensitive(t *testing.T) {
	t.Parallel()

	_, err := ParseEventType("grpc_call_trailer")
	if err == nil {
		t.Fatal("expected lower-case name to be rejected")
	}
}

func TestLogFilterMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		method  string
		want    bool
	}{
		{"*", "/pkg.Svc/Call", true},
		{"pkg.Svc/*", "/pkg.Svc/Call", true},
		{"pkg.Svc/*", "/pkg.Other/Call", false},
		{"pkg.Svc/Call", "/pkg.Svc/Call", true},
		{"/pkg.Svc/Call", "/pkg.Svc/Call", true},
		{"pkg.Svc/Call", "/pkg.Svc/Other", false},
		{"pkg.Svc/*", "/pkg.Svc", false},
	}

	for _, tc := range tests {
		got := LogFilter{Pattern: tc.pattern}.Matches(tc.method)
		if got != tc.want {
			t.Fatalf("pattern %q on %q: want %v, got %v", tc.pattern, tc.method, tc.want, got)
		}
	}
}

func TestMatchFilterFirstWins(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.logFilters = []LogFilter{
		{Pattern: "pkg.Svc/*", HeaderBytes: 1},
		{Pattern: "*", HeaderBytes: 2},
	}

	filter, ok := cfg.MatchFilter("/pkg.Svc/Call")
	if !ok || filter.HeaderBytes != 1 {
		t.Fatalf("expected first filter, got %+v (ok=%v)", filter, ok)
	}

	filter, ok = cfg.MatchFilter("/pkg.Other/Call")
	if !ok || filter.HeaderBytes != 2 {
		t.Fatalf("expected catch-all filter, got %+v (ok=%v)", filter, ok)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	filter := LogFilter{HeaderBytes: Unlimited, MessageBytes: 4}

	if kept, truncated := filter.TruncateHeader(100); kept != 100 || truncated {
		t.Fatalf("unlimited header: kept=%d truncated=%v", kept, truncated)
	}

	if kept, truncated := filter.TruncateMessage(10); kept != 4 || !truncated {
		t.Fatalf("limited message: kept=%d truncated=%v", kept, truncated)
	}

	if kept, truncated := filter.TruncateMessage(3); kept != 3 || truncated {
		t.Fatalf("short message: kept=%d truncated=%v", kept, truncated)
	}
}

func TestBuildEventTypesDropsDuplicates(t *testing.T) {
	t.Parallel()

	events, err := buildEventTypes([]string{"GRPC_CALL_TRAILER", "GRPC_CALL_CANCEL", "GRPC_CALL_TRAILER"})
	if err != nil {
		t.Fatalf("buildEventTypes returned error: %v", err)
	}

	if len(events) != 2 || events[0] != EventTrailer || events[1] != EventCancel {
		t.Fatalf("unexpected events %v", events)
	}
}
