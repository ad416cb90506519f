package sink

import (
	"context"

	"cloud.google.com/go/compute/metadata"
	"google.golang.org/api/option"

	"github.com/hyp3rd/grpc-observability/internal/constants"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
)

// ProjectResolver returns the project used when no destination is configured.
type ProjectResolver func(ctx context.Context) (string, error)

type settings struct {
	cloudLogging   bool
	logger         logging.Adapter
	logID          string
	clientOptions  []option.ClientOption
	resolveProject ProjectResolver
}

// Option customizes sink construction.
type Option func(*settings)

func defaultSettings() settings {
	return settings{
		cloudLogging:   true,
		logger:         logging.NewNoopAdapter(),
		logID:          constants.CloudLogID,
		resolveProject: metadataProject,
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	return s
}

// WithCloudLogging selects Cloud Logging (true) or the local logger sink (false).
func WithCloudLogging(enabled bool) Option {
	return func(s *settings) {
		s.cloudLogging = enabled
	}
}

// WithLogger sets the adapter used by the local sink and for background errors.
func WithLogger(logger logging.Adapter) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLogID overrides the Cloud Logging log name.
func WithLogID(logID string) Option {
	return func(s *settings) {
		if logID != "" {
			s.logID = logID
		}
	}
}

// WithClientOptions forwards options to the Cloud Logging client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// WithProjectResolver replaces the metadata server lookup of the default project.
func WithProjectResolver(resolve ProjectResolver) Option {
	return func(s *settings) {
		if resolve != nil {
			s.resolveProject = resolve
		}
	}
}

func metadataProject(ctx context.Context) (string, error) {
	if !metadata.OnGCE() {
		return "", ErrProjectUnresolved
	}

	ctx, cancel := context.WithTimeout(ctx, constants.MetadataLookupTimeout)
	defer cancel()

	return metadata.ProjectIDWithContext(ctx)
}
