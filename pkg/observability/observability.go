// Package observability activates call-level gRPC logging from configuration
// and manages its process-wide lifecycle.
//
// A Controller moves between two states. Activate loads the configuration,
// builds the sink and both interceptor factories and registers the factories;
// further Activate calls return the same instance until Shutdown unregisters
// the factories and closes the sink. A failed activation leaves nothing
// registered and no resources held. Shutdown while inactive fails with
// ErrNotActive.
package observability

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/diagnostics"
	"github.com/hyp3rd/grpc-observability/pkg/interceptors"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
	"github.com/hyp3rd/grpc-observability/pkg/registry"
	"github.com/hyp3rd/grpc-observability/pkg/sink"
)

const (
	sourceConfig   = "config"
	sourceInjected = "injected"
)

// Controller owns one active-instance slot and serializes every transition on it.
type Controller struct {
	mu     sync.Mutex
	active *Observability
	opts   options
	stats  lifecycleStats
	log    logging.Adapter
}

type lifecycleStats struct {
	activations       int64
	shutdowns         int64
	failedActivations int64
	lastError         string
	lastErrorTime     time.Time
}

// Observability is an active instance: the sink and the two registered factories.
type Observability struct {
	controller  *Controller
	cfg         config.Config
	hasConfig   bool
	sink        sink.Sink
	client      registry.ClientInterceptorFactory
	server      registry.ServerInterceptorFactory
	source      string
	activatedAt time.Time
}

// NewController returns an inactive controller.
func NewController(opts ...Option) *Controller {
	settings := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	return &Controller{
		opts: settings,
		log:  logging.With(settings.logger, attribute.String("component", "lifecycle")),
	}
}

// Activate builds and registers observability from the configured loaders.
// While active it returns the existing instance and does nothing else.
// Configuration errors are returned as produced by the config package; sink
// failures satisfy errors.Is(err, ErrSinkConstruction).
func (c *Controller) Activate(ctx context.Context) (*Observability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return c.active, nil
	}

	cfg, err := config.Load(ctx, c.opts.loaders...)
	if err != nil {
		c.recordFailure(ctx, err)

		return nil, err
	}

	return c.activateLocked(ctx, cfg)
}

// ActivateWith registers pre-built collaborators. While active it returns the
// existing instance. Nil collaborators are rejected with ErrNilCollaborator
// before that check, so a nil argument fails even when already active. The
// sink is closed by a later Shutdown but not when registration fails here.
func (c *Controller) ActivateWith(
	s sink.Sink,
	clientFactory registry.ClientInterceptorFactory,
	serverFactory registry.ServerInterceptorFactory,
) (*Observability, error) {
	if isNil(s) || isNil(clientFactory) || isNil(serverFactory) {
		return nil, ErrNilCollaborator
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return c.active, nil
	}

	ctx := context.Background()

	obs, err := c.install(ctx, s, clientFactory, serverFactory)
	if err != nil {
		c.recordFailure(ctx, err)

		return nil, err
	}

	obs.source = sourceInjected

	return obs, nil
}

// Shutdown unregisters both factories, closes the sink and returns the
// controller to the inactive state. It fails with ErrNotActive when inactive.
// A sink close error is returned after the state has been cleared.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrNotActive
	}

	return c.shutdownLocked(ctx)
}

// Reactivate loads the configuration and replaces the active instance with
// one built from it. The new sink and factories are built before the current
// instance is touched: an invalid configuration, a sink failure or a rejected
// registration leaves the current instance registered and its sink open.
func (c *Controller) Reactivate(ctx context.Context) (*Observability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := config.Load(ctx, c.opts.loaders...)
	if err != nil {
		c.recordFailure(ctx, err)

		return nil, err
	}

	if c.active == nil {
		return c.activateLocked(ctx, cfg)
	}

	s, clientFactory, serverFactory, err := c.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	previous := c.active

	c.opts.registry.UnregisterServerInterceptorProvider()
	c.opts.registry.UnregisterChannelInterceptorProvider()
	c.active = nil

	obs, err := c.install(ctx, s, clientFactory, serverFactory)
	if err != nil {
		err = errors.Join(err, closeSink(s, "close sink after failed reactivation"))

		restoreErr := c.restore(previous)
		if restoreErr != nil {
			c.stats.shutdowns++
			err = errors.Join(err, restoreErr, closeSink(previous.sink, "close previous observability sink"))
		}

		c.recordFailure(ctx, err)

		return nil, err
	}

	obs.cfg = cfg
	obs.hasConfig = true
	obs.source = sourceConfig
	c.stats.shutdowns++

	closeErr := closeSink(previous.sink, "close previous observability sink")
	if closeErr != nil {
		c.log.Warn(ctx, closeErr, "previous observability instance closed with error")
	}

	return obs, nil
}

// restore re-registers the factories of a replaced instance and makes it active again.
func (c *Controller) restore(previous *Observability) error {
	reg := c.opts.registry

	err := reg.RegisterChannelInterceptorProvider(previous.client)
	if err != nil {
		return ewrap.Wrap(err, "restore channel interceptor provider")
	}

	err = reg.RegisterServerInterceptorProvider(previous.server)
	if err != nil {
		reg.UnregisterChannelInterceptorProvider()

		return ewrap.Wrap(err, "restore server interceptor provider")
	}

	c.active = previous

	return nil
}

// Active returns the current instance, if any.
func (c *Controller) Active() (*Observability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active, c.active != nil
}

func (c *Controller) activateLocked(ctx context.Context, cfg config.Config) (*Observability, error) {
	s, clientFactory, serverFactory, err := c.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := c.install(ctx, s, clientFactory, serverFactory)
	if err != nil {
		err = errors.Join(err, closeSink(s, "close sink after failed activation"))
		c.recordFailure(ctx, err)

		return nil, err
	}

	obs.cfg = cfg
	obs.hasConfig = true
	obs.source = sourceConfig

	return obs, nil
}

// build creates the sink and both factories for cfg without registering anything.
func (c *Controller) build(
	ctx context.Context,
	cfg config.Config,
) (sink.Sink, *interceptors.ClientFactory, *interceptors.ServerFactory, error) {
	provider := c.opts.resolveTags(ctx)

	s, err := c.opts.sinkBuilder()(ctx, cfg)
	if err == nil && isNil(s) {
		err = ewrap.New("sink builder returned nil sink")
	}

	if err != nil {
		err = newSinkConstructionError(err)
		c.recordFailure(ctx, err)

		return nil, nil, nil, err
	}

	var location, custom map[string]string
	if provider != nil {
		location, custom = provider.LocationTags(), provider.CustomTags()
	}

	factoryOpts := append([]interceptors.Option{interceptors.WithLogger(
		logging.With(c.opts.logger, attribute.String("component", "interceptors")),
	)}, c.opts.interceptorOpts...)

	return s,
		interceptors.NewClientFactory(s, location, custom, cfg, factoryOpts...),
		interceptors.NewServerFactory(s, location, custom, cfg, factoryOpts...),
		nil
}

// install registers both factories or neither.
func (c *Controller) install(
	ctx context.Context,
	s sink.Sink,
	clientFactory registry.ClientInterceptorFactory,
	serverFactory registry.ServerInterceptorFactory,
) (*Observability, error) {
	reg := c.opts.registry

	err := reg.RegisterChannelInterceptorProvider(clientFactory)
	if err != nil {
		return nil, ewrap.Wrap(err, "register channel interceptor provider")
	}

	err = reg.RegisterServerInterceptorProvider(serverFactory)
	if err != nil {
		reg.UnregisterChannelInterceptorProvider()

		return nil, ewrap.Wrap(err, "register server interceptor provider")
	}

	obs := &Observability{
		controller:  c,
		sink:        s,
		client:      clientFactory,
		server:      serverFactory,
		activatedAt: c.opts.now().UTC(),
	}

	c.active = obs
	c.stats.activations++

	c.log.Info(ctx, "observability activated", attribute.String("sink", sinkKind(s)))

	return obs, nil
}

func (c *Controller) shutdownLocked(ctx context.Context) error {
	obs := c.active

	c.opts.registry.UnregisterServerInterceptorProvider()
	c.opts.registry.UnregisterChannelInterceptorProvider()

	c.active = nil
	c.stats.shutdowns++

	err := obs.sink.Close()
	if err != nil {
		err = ewrap.Wrap(err, "close observability sink")
		c.log.Error(ctx, err, "observability shut down with sink error")

		return err
	}

	c.log.Info(ctx, "observability shut down")

	return nil
}

func (c *Controller) recordFailure(ctx context.Context, err error) {
	c.stats.failedActivations++
	c.stats.lastError = err.Error()
	c.stats.lastErrorTime = c.opts.now().UTC()

	c.log.Error(ctx, err, "observability activation failed")
}

// Snapshot implements diagnostics.SnapshotProvider.
func (c *Controller) Snapshot() diagnostics.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := diagnostics.Snapshot{
		Active:            c.active != nil,
		Activations:       c.stats.activations,
		Shutdowns:         c.stats.shutdowns,
		FailedActivations: c.stats.failedActivations,
		LastError:         c.stats.lastError,
		LastErrorTime:     c.stats.lastErrorTime,
	}

	if c.active == nil {
		return snap
	}

	snap.Source = c.active.source
	snap.Sink = sinkKind(c.active.sink)
	snap.ActivatedAt = c.active.activatedAt

	if c.active.hasConfig {
		snap.Config = diagnostics.NewConfigStatus(c.active.cfg)
	}

	return snap
}

// Config returns the configuration the instance was built from. Instances
// created by ActivateWith report false.
func (o *Observability) Config() (config.Config, bool) {
	return o.cfg, o.hasConfig
}

// Sink returns the sink records are written to.
func (o *Observability) Sink() sink.Sink {
	return o.sink
}

// ClientFactory returns the registered channel-side factory.
func (o *Observability) ClientFactory() registry.ClientInterceptorFactory {
	return o.client
}

// ServerFactory returns the registered server-side factory.
func (o *Observability) ServerFactory() registry.ServerInterceptorFactory {
	return o.server
}

// ActivatedAt returns when the instance was registered.
func (o *Observability) ActivatedAt() time.Time {
	return o.activatedAt
}

// Shutdown shuts down the controller that created o. It fails with
// ErrNotActive when o is no longer the active instance.
func (o *Observability) Shutdown(ctx context.Context) error {
	c := o.controller

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != o {
		return ErrNotActive
	}

	return c.shutdownLocked(ctx)
}

func closeSink(s sink.Sink, msg string) error {
	err := s.Close()
	if err != nil {
		return ewrap.Wrap(err, msg)
	}

	return nil
}

func sinkKind(s sink.Sink) string {
	switch s.(type) {
	case *sink.CloudSink:
		return "cloud_logging"
	case *sink.KafkaSink:
		return "kafka"
	case *sink.LoggerSink:
		return "logger"
	default:
		return "custom"
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
