package observability

import (
	"context"
	"time"

	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/interceptors"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
	"github.com/hyp3rd/grpc-observability/pkg/registry"
	"github.com/hyp3rd/grpc-observability/pkg/sink"
	"github.com/hyp3rd/grpc-observability/pkg/tags"
)

// Registry is the pair of extension points factories are registered with.
// *registry.Registry satisfies it.
type Registry interface {
	RegisterChannelInterceptorProvider(f registry.ClientInterceptorFactory) error
	RegisterServerInterceptorProvider(f registry.ServerInterceptorFactory) error
	UnregisterChannelInterceptorProvider()
	UnregisterServerInterceptorProvider()
}

// SinkBuilder constructs the sink for a loaded configuration.
type SinkBuilder func(ctx context.Context, cfg config.Config) (sink.Sink, error)

// TagsResolver supplies the global logging tags at activation time.
type TagsResolver func(ctx context.Context) tags.Provider

// Option mutates controller settings.
type Option func(*options)

type options struct {
	loaders         []config.Loader
	registry        Registry
	logger          logging.Adapter
	resolveTags     TagsResolver
	buildSink       SinkBuilder
	now             func() time.Time
	interceptorOpts []interceptors.Option
}

func defaultOptions() options {
	return options{
		loaders:  config.DefaultLoaders(),
		registry: registry.Default(),
		logger:   logging.NewNoopAdapter(),
		resolveTags: func(ctx context.Context) tags.Provider {
			return tags.Detect(ctx)
		},
		now: time.Now,
	}
}

func (o options) sinkBuilder() SinkBuilder {
	if o.buildSink != nil {
		return o.buildSink
	}

	logger := o.logger

	return func(ctx context.Context, cfg config.Config) (sink.Sink, error) {
		destination, _ := cfg.DestinationProjectID()

		return sink.New(ctx, destination,
			sink.WithCloudLogging(cfg.EnableCloudLogging()),
			sink.WithLogger(logger),
		)
	}
}

// WithLoaders replaces the default loader chain (environment variable, then file).
func WithLoaders(loaders ...config.Loader) Option {
	return func(opt *options) {
		opt.loaders = append([]config.Loader{}, loaders...)
	}
}

// WithRegistry selects the extension points factories are registered with.
func WithRegistry(reg Registry) Option {
	return func(opt *options) {
		if reg != nil {
			opt.registry = reg
		}
	}
}

// WithLogger specifies the adapter used for lifecycle events.
func WithLogger(adapter logging.Adapter) Option {
	return func(opt *options) {
		if adapter != nil {
			opt.logger = adapter
		}
	}
}

// WithTagsProvider uses a fixed tag provider instead of environment detection.
func WithTagsProvider(provider tags.Provider) Option {
	return func(opt *options) {
		if provider != nil {
			opt.resolveTags = func(context.Context) tags.Provider { return provider }
		}
	}
}

// WithSinkBuilder replaces the destination-driven sink construction.
func WithSinkBuilder(build SinkBuilder) Option {
	return func(opt *options) {
		opt.buildSink = build
	}
}

// WithClock overrides the time source used for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(opt *options) {
		if now != nil {
			opt.now = now
		}
	}
}

// WithInterceptorOptions forwards options to the factories built by Activate.
func WithInterceptorOptions(opts ...interceptors.Option) Option {
	return func(opt *options) {
		opt.interceptorOpts = append(opt.interceptorOpts, opts...)
	}
}
