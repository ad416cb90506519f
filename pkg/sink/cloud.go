package sink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/logging"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
)

// entryLogger is the subset of *logging.Logger the sink relies on.
type entryLogger interface {
	Log(e logging.Entry)
	Flush() error
}

// CloudSink buffers records into Google Cloud Logging.
type CloudSink struct {
	projectID   string
	logger      entryLogger
	closeClient func() error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewCloud creates a Cloud Logging client for projectID. An empty projectID
// is resolved through the configured ProjectResolver, which defaults to the
// GCE metadata server.
func NewCloud(ctx context.Context, projectID string, opts ...Option) (*CloudSink, error) {
	s := applyOptions(opts)

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		resolved, err := s.resolveProject(ctx)
		if err != nil {
			return nil, ewrap.Wrap(errors.Join(ErrProjectUnresolved, err), "resolve default project")
		}

		projectID = strings.TrimSpace(resolved)
		if projectID == "" {
			return nil, ErrProjectUnresolved
		}
	}

	client, err := logging.NewClient(ctx, projectID, s.clientOptions...)
	if err != nil {
		return nil, ewrap.Wrapf(err, "create cloud logging client for project %q", projectID)
	}

	logger := s.logger
	client.OnError = func(err error) {
		logger.Error(context.Background(), err, "cloud logging background error",
			attribute.String("project_id", projectID))
	}

	return newCloudSink(projectID, client.Logger(s.logID), client.Close), nil
}

func newCloudSink(projectID string, logger entryLogger, closeClient func() error) *CloudSink {
	return &CloudSink{
		projectID:   projectID,
		logger:      logger,
		closeClient: closeClient,
	}
}

// ProjectID returns the project the sink writes to.
func (c *CloudSink) ProjectID() string {
	return c.projectID
}

// Write implements Sink. Entries are buffered by the client and sent in the background.
func (c *CloudSink) Write(_ context.Context, rec Record) error {
	if c.closed.Load() {
		return ErrClosed
	}

	entry := logging.Entry{
		Timestamp: rec.Timestamp,
		Severity:  logging.Debug,
		Payload:   toWire(rec),
		Labels:    rec.Labels,
	}

	if rec.TraceID != "" {
		entry.Trace = "projects/" + c.projectID + "/traces/" + rec.TraceID
		entry.SpanID = rec.SpanID
	}

	c.logger.Log(entry)

	return nil
}

// Close flushes buffered entries and releases the client.
func (c *CloudSink) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		var errs []error

		err := c.logger.Flush()
		if err != nil {
			errs = append(errs, ewrap.Wrap(err, "flush cloud logging entries"))
		}

		if c.closeClient != nil {
			err = c.closeClient()
			if err != nil {
				errs = append(errs, ewrap.Wrap(err, "close cloud logging client"))
			}
		}

		c.closeErr = errors.Join(errs...)
	})

	return c.closeErr
}
