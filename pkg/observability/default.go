package observability

import (
	"context"
	"sync"

	"github.com/hyp3rd/grpc-observability/pkg/logging"
	"github.com/hyp3rd/grpc-observability/pkg/registry"
	"github.com/hyp3rd/grpc-observability/pkg/sink"
)

var (
	defaultOnce       sync.Once
	defaultController *Controller
)

// Default returns the process-wide controller bound to registry.Default and
// the environment loaders.
func Default() *Controller {
	defaultOnce.Do(func() {
		defaultController = NewController(
			WithRegistry(registry.Default()),
			WithLogger(logging.FromSettings(logging.DefaultSettings())),
		)
	})

	return defaultController
}

// Init activates the default controller. Callers must invoke Shutdown when finished.
func Init(ctx context.Context) (*Observability, error) {
	return Default().Activate(ctx)
}

// InitWith activates the default controller with pre-built collaborators.
func InitWith(
	s sink.Sink,
	clientFactory registry.ClientInterceptorFactory,
	serverFactory registry.ServerInterceptorFactory,
) (*Observability, error) {
	return Default().ActivateWith(s, clientFactory, serverFactory)
}

// Shutdown shuts down the default controller.
func Shutdown(ctx context.Context) error {
	return Default().Shutdown(ctx)
}
