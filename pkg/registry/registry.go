// Package registry holds the process-wide interceptor provider slots that
// gRPC channels and servers consult on every call.
//
// Channels and servers opt in once, at construction, through DialOptions and
// ServerOptions. The installed interceptors delegate to whatever provider is
// registered at call time and pass calls through untouched when the slot is
// empty, so providers can come and go without rebuilding connections.
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"
	"google.golang.org/grpc"
)

var (
	// ErrSlotOccupied is returned when a provider is already registered in the slot.
	ErrSlotOccupied = ewrap.New("interceptor provider slot already occupied")
	// ErrNilProvider is returned when registering a nil provider.
	ErrNilProvider = ewrap.New("interceptor provider is nil")
)

// ClientInterceptorFactory supplies channel-side interceptors.
type ClientInterceptorFactory interface {
	UnaryClient() grpc.UnaryClientInterceptor
	StreamClient() grpc.StreamClientInterceptor
}

// ServerInterceptorFactory supplies server-side interceptors.
type ServerInterceptorFactory interface {
	UnaryServer() grpc.UnaryServerInterceptor
	StreamServer() grpc.StreamServerInterceptor
}

type clientSlot struct {
	factory ClientInterceptorFactory
	unary   grpc.UnaryClientInterceptor
	stream  grpc.StreamClientInterceptor
}

type serverSlot struct {
	factory ServerInterceptorFactory
	unary   grpc.UnaryServerInterceptor
	stream  grpc.StreamServerInterceptor
}

// Registry is a pair of provider slots. The zero value is ready to use.
type Registry struct {
	channel atomic.Pointer[clientSlot]
	server  atomic.Pointer[serverSlot]
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})

	return defaultRegistry
}

// RegisterChannelInterceptorProvider fills the channel slot.
func (r *Registry) RegisterChannelInterceptorProvider(f ClientInterceptorFactory) error {
	if f == nil {
		return ErrNilProvider
	}

	slot := &clientSlot{factory: f, unary: f.UnaryClient(), stream: f.StreamClient()}
	if !r.channel.CompareAndSwap(nil, slot) {
		return ErrSlotOccupied
	}

	return nil
}

// RegisterServerInterceptorProvider fills the server slot.
func (r *Registry) RegisterServerInterceptorProvider(f ServerInterceptorFactory) error {
	if f == nil {
		return ErrNilProvider
	}

	slot := &serverSlot{factory: f, unary: f.UnaryServer(), stream: f.StreamServer()}
	if !r.server.CompareAndSwap(nil, slot) {
		return ErrSlotOccupied
	}

	return nil
}

// UnregisterChannelInterceptorProvider empties the channel slot.
func (r *Registry) UnregisterChannelInterceptorProvider() {
	r.channel.Store(nil)
}

// UnregisterServerInterceptorProvider empties the server slot.
func (r *Registry) UnregisterServerInterceptorProvider() {
	r.server.Store(nil)
}

// ChannelProvider returns the registered channel provider, if any.
func (r *Registry) ChannelProvider() (ClientInterceptorFactory, bool) {
	slot := r.channel.Load()
	if slot == nil {
		return nil, false
	}

	return slot.factory, true
}

// ServerProvider returns the registered server provider, if any.
func (r *Registry) ServerProvider() (ServerInterceptorFactory, bool) {
	slot := r.server.Load()
	if slot == nil {
		return nil, false
	}

	return slot.factory, true
}

// DialOptions installs the delegating client interceptors on a channel.
func (r *Registry) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(r.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(r.StreamClientInterceptor()),
	}
}

// ServerOptions installs the delegating server interceptors on a server.
func (r *Registry) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(r.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(r.StreamServerInterceptor()),
	}
}

// UnaryClientInterceptor delegates to the channel provider registered at call time.
func (r *Registry) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		slot := r.channel.Load()
		if slot == nil || slot.unary == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		return slot.unary(ctx, method, req, reply, cc, invoker, opts...)
	}
}

// StreamClientInterceptor delegates to the channel provider registered at call time.
func (r *Registry) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		slot := r.channel.Load()
		if slot == nil || slot.stream == nil {
			return streamer(ctx, desc, cc, method, opts...)
		}

		return slot.stream(ctx, desc, cc, method, streamer, opts...)
	}
}

// UnaryServerInterceptor delegates to the server provider registered at call time.
func (r *Registry) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		slot := r.server.Load()
		if slot == nil || slot.unary == nil {
			return handler(ctx, req)
		}

		return slot.unary(ctx, req, info, handler)
	}
}

// StreamServerInterceptor delegates to the server provider registered at call time.
func (r *Registry) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		slot := r.server.Load()
		if slot == nil || slot.stream == nil {
			return handler(srv, ss)
		}

		return slot.stream(srv, ss, info, handler)
	}
}
