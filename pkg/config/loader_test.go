package config_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/hyp3rd/grpc-observability/internal/constants"
	"github.com/hyp3rd/grpc-observability/pkg/config"
)

const parseErrorMsg = "Parse returned error: %v"

func assertDefaults(t *testing.T, cfg config.Config) {
	t.Helper()

	if !cfg.EnableCloudLogging() {
		t.Fatal("expected cloud logging enabled by default")
	}

	if dest, ok := cfg.DestinationProjectID(); ok || dest != "" {
		t.Fatalf("expected no destination, got %q", dest)
	}

	if got := cfg.LogFilters(); len(got) != 0 {
		t.Fatalf("expected no filters, got %#v", got)
	}

	if !cfg.CapturesAll() {
		t.Fatalf("expected no event type restriction, got %v", cfg.EventTypes())
	}
}

func TestParseEmptyObjectReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	assertDefaults(t, cfg)
}

func TestParseEmptyLoggingConfigReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{"logging_config": {}, "unrelated": true}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	assertDefaults(t, cfg)
}

func TestParseEmptyStringIsMissing(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "\n\t"} {
		_, err := config.Parse(raw)
		if !errors.Is(err, config.ErrConfigMissing) {
			t.Fatalf("expected ErrConfigMissing for %q, got %v", raw, err)
		}
	}
}

func TestParseEventTypesOnly(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{"logging_config":{"event_types":["GRPC_CALL_REQUEST_HEADER","GRPC_CALL_TRAILER"]}}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	if !cfg.EnableCloudLogging() {
		t.Fatal("event_types must not reset enable_cloud_logging")
	}

	if _, ok := cfg.DestinationProjectID(); ok {
		t.Fatal("expected no destination")
	}

	if len(cfg.LogFilters()) != 0 {
		t.Fatal("expected no filters")
	}

	events := cfg.EventTypes()
	if len(events) != 2 || events[0] != config.EventRequestHeader || events[1] != config.EventTrailer {
		t.Fatalf("unexpected event types: %v", events)
	}

	if !cfg.Captures(config.EventTrailer) || cfg.Captures(config.EventRequestMessage) {
		t.Fatal("Captures does not honour the event type restriction")
	}
}

func TestParseFullDocument(t *testing.T) {
	t.Parallel()

	raw := `{
		"logging_config": {
			"enable_cloud_logging": false,
			"destination_project_id": "projects/demo",
			"log_filters": [
				{"pattern": "pkg.Svc/Method", "header_bytes": 4096, "message_bytes": -1},
				{"pattern": "pkg.Other/*"},
				{"pattern": "*", "header_bytes": 0, "message_bytes": 64}
			],
			"event_types": ["GRPC_CALL_CANCEL"]
		}
	}`

	cfg, err := config.Parse(raw)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	if cfg.EnableCloudLogging() {
		t.Fatal("expected cloud logging disabled")
	}

	if dest, ok := cfg.DestinationProjectID(); !ok || dest != "projects/demo" {
		t.Fatalf("unexpected destination %q (set=%v)", dest, ok)
	}

	want := []config.LogFilter{
		{Pattern: "pkg.Svc/Method", HeaderBytes: 4096, MessageBytes: config.Unlimited},
		{Pattern: "pkg.Other/*"},
		{Pattern: "*", HeaderBytes: 0, MessageBytes: 64},
	}

	got := cfg.LogFilters()
	if len(got) != len(want) {
		t.Fatalf("expected %d filters, got %d", len(want), len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("filter %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseNegativeLimitsPassThrough(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{"logging_config":{"log_filters":[{"pattern":"*","header_bytes":-7,"message_bytes":-1}]}}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	filter := cfg.LogFilters()[0]
	if filter.HeaderBytes != -7 || filter.MessageBytes != -1 {
		t.Fatalf("negative limits must not be clamped, got %+v", filter)
	}
}

func TestParseIntegralExponentLimits(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{"logging_config":{"log_filters":[{"pattern":"*","header_bytes":1e3,"message_bytes":2.0E1}]}}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	filter := cfg.LogFilters()[0]
	if filter.HeaderBytes != 1000 || filter.MessageBytes != 20 {
		t.Fatalf("expected integral exponent limits to decode, got %+v", filter)
	}
}

func TestParseUnknownEventType(t *testing.T) {
	t.Parallel()

	_, err := config.Parse(`{"logging_config":{"event_types":["GRPC_CALL_TRAILER","GRPC_CALL_BOGUS"]}}`)
	if !errors.Is(err, config.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}

	if !config.IsConfigError(err) {
		t.Fatal("expected unknown event type to be a config error")
	}
}

func TestParseFilterWithoutPattern(t *testing.T) {
	t.Parallel()

	_, err := config.Parse(`{"logging_config":{"log_filters":[{"pattern":"*"},{"header_bytes":10}]}}`)
	if !errors.Is(err, config.ErrFilterPatternMissing) {
		t.Fatalf("expected ErrFilterPatternMissing, got %v", err)
	}

	if !errors.Is(err, config.ErrConfigMalformed) {
		t.Fatalf("expected missing pattern to count as malformed, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":              `{logging_config`,
		"array root":            `[1, 2]`,
		"null root":             `null`,
		"trailing data":         `{} {}`,
		"logging_config scalar": `{"logging_config": 5}`,
		"enable not bool":       `{"logging_config":{"enable_cloud_logging":"yes"}}`,
		"destination number":    `{"logging_config":{"destination_project_id":42}}`,
		"event_types scalar":    `{"logging_config":{"event_types":"GRPC_CALL_TRAILER"}}`,
		"event type number":     `{"logging_config":{"event_types":[1]}}`,
		"filters not objects":   `{"logging_config":{"log_filters":[1]}}`,
		"pattern number":        `{"logging_config":{"log_filters":[{"pattern":7}]}}`,
		"fractional limit":      `{"logging_config":{"log_filters":[{"pattern":"*","header_bytes":1.5}]}}`,
		"fractional exponent":   `{"logging_config":{"log_filters":[{"pattern":"*","message_bytes":15e-1}]}}`,
		"limit out of range":    `{"logging_config":{"log_filters":[{"pattern":"*","header_bytes":1e300}]}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse(raw)
			if !errors.Is(err, config.ErrConfigMalformed) {
				t.Fatalf("expected ErrConfigMalformed, got %v", err)
			}
		})
	}
}

func TestParseNullFieldsKeepDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{"logging_config":{"enable_cloud_logging":null,"destination_project_id":null}}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	assertDefaults(t, cfg)
}

func TestConfigAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(`{"logging_config":{"log_filters":[{"pattern":"*"}],"event_types":["GRPC_CALL_TRAILER"]}}`)
	if err != nil {
		t.Fatalf(parseErrorMsg, err)
	}

	filters := cfg.LogFilters()
	filters[0].Pattern = "mutated"

	events := cfg.EventTypes()
	events[0] = config.EventCancel

	if cfg.LogFilters()[0].Pattern != "*" {
		t.Fatal("LogFilters leaked internal state")
	}

	if cfg.EventTypes()[0] != config.EventTrailer {
		t.Fatal("EventTypes leaked internal state")
	}
}

func TestLoadFirstSourceWins(t *testing.T) {
	t.Setenv(constants.ConfigEnvVar, `{"logging_config":{"destination_project_id":"from-env"}}`)

	fs := fstest.MapFS{
		"observability.yaml": {
			Data: []byte(`
logging_config:
  destination_project_id: from-file
`),
		},
	}

	cfg, err := config.Load(context.Background(),
		config.EnvLoader{},
		config.FileLoader{Path: "observability.yaml", FS: fs},
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if dest, _ := cfg.DestinationProjectID(); dest != "from-env" {
		t.Fatalf("expected env document to win, got %q", dest)
	}
}

func TestLoadFallsBackToYAMLFile(t *testing.T) {
	t.Setenv(constants.ConfigEnvVar, "")

	fs := fstest.MapFS{
		"observability.yaml": {
			Data: []byte(`
logging_config:
  enable_cloud_logging: false
  log_filters:
    - pattern: "pkg.Svc/*"
      header_bytes: 128
  event_types:
    - GRPC_CALL_REQUEST_MESSAGE
`),
		},
	}

	cfg, err := config.Load(context.Background(),
		config.EnvLoader{},
		config.FileLoader{Path: "observability.yaml", FS: fs},
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.EnableCloudLogging() {
		t.Fatal("expected cloud logging disabled by file")
	}

	filters := cfg.LogFilters()
	if len(filters) != 1 || filters[0].Pattern != "pkg.Svc/*" || filters[0].HeaderBytes != 128 {
		t.Fatalf("unexpected filters %#v", filters)
	}

	if events := cfg.EventTypes(); len(events) != 1 || events[0] != config.EventRequestMessage {
		t.Fatalf("unexpected event types %v", events)
	}
}

func TestLoadFileFromEnvironmentPath(t *testing.T) {
	t.Setenv(constants.ConfigEnvVar, "")
	t.Setenv(constants.ConfigFileEnvVar, "conf/observability.json")

	fs := fstest.MapFS{
		"conf/observability.json": {Data: []byte(`{"logging_config":{"event_types":["GRPC_CALL_HALF_CLOSE"]}}`)},
	}

	cfg, err := config.Load(context.Background(), config.EnvLoader{}, config.FileLoader{FS: fs})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if !cfg.Captures(config.EventHalfClose) || cfg.CapturesAll() {
		t.Fatalf("unexpected event types %v", cfg.EventTypes())
	}
}

func TestLoadNoSourceIsMissing(t *testing.T) {
	t.Setenv(constants.ConfigEnvVar, "")
	t.Setenv(constants.ConfigFileEnvVar, "")

	_, err := config.FromEnvironment(context.Background())
	if !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestLoadMissingFileIsMissing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(context.Background(), config.FileLoader{Path: "absent.json", FS: fstest.MapFS{}})
	if !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestLoadPropagatesLoaderErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, err := config.Load(context.Background(),
		config.LoaderFunc(func(context.Context) (map[string]any, error) { return nil, config.SkipSource() }),
		config.LoaderFunc(func(context.Context) (map[string]any, error) { return nil, boom }),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestLoadMalformedEnvironment(t *testing.T) {
	t.Setenv(constants.ConfigEnvVar, `{"logging_config":`)

	_, err := config.FromEnvironment(context.Background())
	if !errors.Is(err, config.ErrConfigMalformed) {
		t.Fatalf("expected ErrConfigMalformed, got %v", err)
	}
}
