// Package diagnostics exposes the observability lifecycle state over HTTP.
package diagnostics

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/grpc-observability/internal/constants"
	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
)

// StatusPath is the route serving the JSON snapshot.
const StatusPath = "/observability/status"

// Config controls the diagnostics listener.
type Config struct {
	HTTPAddr  string
	AuthToken string
}

// Snapshot captures the lifecycle state for diagnostics endpoints.
type Snapshot struct {
	Active            bool          `json:"active"`
	Source            string        `json:"source,omitempty"`
	Sink              string        `json:"sink,omitempty"`
	ActivatedAt       time.Time     `json:"activated_at"`
	Activations       int64         `json:"activations"`
	Shutdowns         int64         `json:"shutdowns"`
	FailedActivations int64         `json:"failed_activations"`
	LastError         string        `json:"last_error,omitempty"`
	LastErrorTime     time.Time     `json:"last_error_time"`
	Config            *ConfigStatus `json:"config,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
}

// ConfigStatus summarizes the configuration of the active instance.
type ConfigStatus struct {
	EnableCloudLogging   bool         `json:"enable_cloud_logging"             yaml:"enable_cloud_logging"`
	DestinationProjectID string       `json:"destination_project_id,omitempty" yaml:"destination_project_id,omitempty"`
	LogFilters           []FilterView `json:"log_filters"                      yaml:"log_filters"`
	EventTypes           []string     `json:"event_types"                      yaml:"event_types"`
}

// FilterView mirrors a log filter in the snapshot.
type FilterView struct {
	Pattern      string `json:"pattern"       yaml:"pattern"`
	HeaderBytes  int    `json:"header_bytes"  yaml:"header_bytes"`
	MessageBytes int    `json:"message_bytes" yaml:"message_bytes"`
}

// NewConfigStatus summarizes cfg for a snapshot.
func NewConfigStatus(cfg config.Config) *ConfigStatus {
	status := &ConfigStatus{
		EnableCloudLogging: cfg.EnableCloudLogging(),
		LogFilters:         []FilterView{},
		EventTypes:         []string{},
	}

	status.DestinationProjectID, _ = cfg.DestinationProjectID()

	for _, filter := range cfg.LogFilters() {
		status.LogFilters = append(status.LogFilters, FilterView(filter))
	}

	for _, event := range cfg.EventTypes() {
		status.EventTypes = append(status.EventTypes, event.String())
	}

	return status
}

// SnapshotProvider supplies diagnostic snapshots.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// Server exposes lifecycle status over HTTP.
type Server struct {
	cfg      Config
	provider SnapshotProvider
	logger   logging.Adapter

	server *http.Server
	mu     sync.Mutex
	start  sync.Once
	stop   sync.Once
}

// NewServer constructs a diagnostics server. A nil logger discards server errors.
func NewServer(cfg Config, provider SnapshotProvider, logger logging.Adapter) *Server {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		logger:   logging.With(logger, attribute.String("component", "diagnostics")),
	}
}

// Start begins serving until ctx is canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.HTTPAddr == "" {
		return ewrap.New("diagnostics http_addr is required")
	}

	var startErr error

	s.start.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc(StatusPath, s.HandleStatus)

		lc := net.ListenConfig{}

		ln, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
		if err != nil {
			startErr = ewrap.Wrap(err, "listen diagnostics")

			return
		}

		srv := &http.Server{
			Addr:              ln.Addr().String(),
			Handler:           mux,
			ReadHeaderTimeout: constants.DefaultTimeout,
		}

		s.mu.Lock()
		s.server = srv
		s.mu.Unlock()

		go func() {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
			defer cancel()

			err := s.Shutdown(shutdownCtx)
			if err != nil {
				s.logger.Error(shutdownCtx, err, "shutdown diagnostics server")
			}
		}()

		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error(ctx, err, "diagnostics server stopped", attribute.String("addr", srv.Addr))
			}
		}()
	})

	return startErr
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return ""
	}

	return s.server.Addr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.stop.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.server == nil {
			return
		}

		ctxShutdown, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
		defer cancel()

		shutdownErr = s.server.Shutdown(ctxShutdown)
		s.server = nil
	})

	if shutdownErr != nil {
		return ewrap.Wrap(shutdownErr, "shutdown diagnostics server")
	}

	return nil
}

// HandleStatus serves the JSON snapshot.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthToken != "" && !validAuth(r.Header.Get("Authorization"), s.cfg.AuthToken) {
		w.WriteHeader(http.StatusUnauthorized)

		return
	}

	snapshot := s.provider.Snapshot()
	snapshot.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(snapshot)
	if err != nil {
		s.logger.Error(r.Context(), err, "encode diagnostics snapshot")
	}
}

func validAuth(header, token string) bool {
	const prefix = "Bearer "

	if !strings.HasPrefix(header, prefix) {
		return false
	}

	presented := strings.TrimSpace(header[len(prefix):])

	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
