// Package constants provides common constants used across the grpc-observability project.
package constants

import "time"

const (
	// DefaultTimeout is the default timeout for requests.
	DefaultTimeout = 5 * time.Second
	// DefaultShutdownTimeout is the default timeout for shutdown operations.
	DefaultShutdownTimeout = 30 * time.Second

	// ConfigEnvVar holds the inline JSON observability configuration.
	ConfigEnvVar = "GRPC_CONFIG_OBSERVABILITY"
	// ConfigFileEnvVar points at a JSON or YAML file holding the same document.
	ConfigFileEnvVar = "GRPC_CONFIG_OBSERVABILITY_FILE"
	// CustomTagPrefix marks environment variables exported as custom logging tags.
	CustomTagPrefix = "GRPC_OBSERVABILITY_"

	// CloudLogID is the Cloud Logging log name records are written under.
	CloudLogID = "microservices.googleapis.com/observability/grpc"
	// MetadataLookupTimeout bounds each GCE metadata request made during tag detection.
	MetadataLookupTimeout = 500 * time.Millisecond
)
