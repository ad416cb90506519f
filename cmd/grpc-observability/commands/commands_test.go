package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/grpc-observability/internal/constants"
	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/diagnostics"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestValidateFromStdin(t *testing.T) {
	t.Parallel()

	out, err := run(t, `{"logging_config":{"event_types":["GRPC_CALL_REQUEST_HEADER","GRPC_CALL_TRAILER"]}}`,
		"validate", "--stdin")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	var status diagnostics.ConfigStatus

	err = json.Unmarshal([]byte(out), &status)
	if err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}

	if !status.EnableCloudLogging || len(status.LogFilters) != 0 || status.DestinationProjectID != "" {
		t.Fatalf("expected defaults for unset fields, got %+v", status)
	}

	if strings.Join(status.EventTypes, ",") != "GRPC_CALL_REQUEST_HEADER,GRPC_CALL_TRAILER" {
		t.Fatalf("unexpected event types %v", status.EventTypes)
	}
}

func TestValidateRejectsUnknownEventType(t *testing.T) {
	t.Parallel()

	_, err := run(t, `{"logging_config":{"event_types":["GRPC_CALL_EVERYTHING"]}}`, "validate", "--stdin")
	if !errors.Is(err, config.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestValidateYAMLFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "observability.yaml")
	doc := "logging_config:\n  destination_project_id: demo\n  log_filters:\n    - pattern: \"*\"\n      header_bytes: -1\n"

	err := os.WriteFile(path, []byte(doc), 0o600)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := run(t, "", "validate", "--file", path, "-o", "yaml")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	var status diagnostics.ConfigStatus

	err = yaml.Unmarshal([]byte(out), &status)
	if err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}

	if status.DestinationProjectID != "demo" || len(status.LogFilters) != 1 || status.LogFilters[0].HeaderBytes != -1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestValidateFromEnvironment(t *testing.T) {
	t.Setenv(constants.ConfigEnvVar, "")
	t.Setenv(constants.ConfigFileEnvVar, "")

	_, err := run(t, "", "validate")
	if !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}

	t.Setenv(constants.ConfigEnvVar, `{}`)

	out, err := run(t, "", "validate")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	if !strings.Contains(out, `"enable_cloud_logging": true`) {
		t.Fatalf("expected defaults in output, got %s", out)
	}
}

func TestDefaultsAndEventTypes(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "defaults", "-o", "yaml")
	if err != nil {
		t.Fatalf("defaults returned error: %v", err)
	}

	if !strings.Contains(out, "enable_cloud_logging: true") {
		t.Fatalf("unexpected defaults output %s", out)
	}

	out, err = run(t, "", "event-types")
	if err != nil {
		t.Fatalf("event-types returned error: %v", err)
	}

	var names []string

	err = json.Unmarshal([]byte(out), &names)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}

	if len(names) != len(config.AllEventTypes()) || names[0] != "GRPC_CALL_UNKNOWN" {
		t.Fatalf("unexpected event types %v", names)
	}
}

func TestUnsupportedOutputFormat(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "defaults", "-o", "xml")
	if err == nil {
		t.Fatal("expected an error for unsupported output")
	}
}

func TestServeRejectsUnknownLogLevel(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "serve", "--log-level", "loud")
	if !errors.Is(err, logging.ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
}
