package interceptors

import (
	"context"
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/sink"
)

// ServerFactory produces server-side interceptors bound to one sink and configuration.
type ServerFactory struct {
	emitter *emitter
}

// NewServerFactory binds the server interceptors to their collaborators.
func NewServerFactory(
	s sink.Sink,
	locationTags, customTags map[string]string,
	cfg config.Config,
	opts ...Option,
) *ServerFactory {
	return &ServerFactory{emitter: newEmitter(sink.SideServer, s, locationTags, customTags, cfg, opts)}
}

// UnaryServer returns the unary server interceptor.
func (f *ServerFactory) UnaryServer() grpc.UnaryServerInterceptor {
	e := f.emitter

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		c := e.begin(ctx, info.FullMethod)
		if c == nil {
			return handler(ctx, req)
		}

		incoming := c.inbound(ctx)
		c.emitMetadata(ctx, config.EventRequestHeader, incoming)
		c.emitMessage(ctx, config.EventRequestMessage, req)
		c.emit(ctx, config.EventHalfClose, nil)

		resp, err := handler(ctx, req)

		c.emitMetadata(ctx, config.EventResponseHeader, nil)

		if err == nil {
			c.emitMessage(ctx, config.EventResponseMessage, resp)
		}

		if errors.Is(ctx.Err(), context.Canceled) {
			c.emit(ctx, config.EventCancel, nil)
		}

		c.emitTrailer(ctx, nil, err)

		return resp, err
	}
}

// StreamServer returns the streaming server interceptor.
func (f *ServerFactory) StreamServer() grpc.StreamServerInterceptor {
	e := f.emitter

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()

		c := e.begin(ctx, info.FullMethod)
		if c == nil {
			return handler(srv, ss)
		}

		c.emitMetadata(ctx, config.EventRequestHeader, c.inbound(ctx))

		wrapped := &serverStream{ServerStream: ss, call: c, ctx: ctx}

		err := handler(srv, wrapped)

		wrapped.recordHeader(nil)

		if errors.Is(ctx.Err(), context.Canceled) {
			c.emit(ctx, config.EventCancel, nil)
		}

		c.emitTrailer(ctx, nil, err)

		return err
	}
}

// inbound captures peer and authority and returns the request metadata.
func (c *call) inbound(ctx context.Context) metadata.MD {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		c.setPeer(p.Addr.String())
	}

	md, _ := metadata.FromIncomingContext(ctx)
	if values := md.Get(":authority"); len(values) > 0 {
		c.authority = values[0]
	}

	return md
}

type serverStream struct {
	grpc.ServerStream

	call *call
	ctx  context.Context

	headerOnce sync.Once
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}

func (s *serverStream) SendHeader(md metadata.MD) error {
	err := s.ServerStream.SendHeader(md)
	if err == nil {
		s.recordHeader(md)
	}

	return err
}

func (s *serverStream) SendMsg(m any) error {
	s.recordHeader(nil)

	err := s.ServerStream.SendMsg(m)
	if err == nil {
		s.call.emitMessage(s.ctx, config.EventResponseMessage, m)
	}

	return err
}

func (s *serverStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)

	switch {
	case err == nil:
		s.call.emitMessage(s.ctx, config.EventRequestMessage, m)
	case errors.Is(err, io.EOF):
		s.call.emit(s.ctx, config.EventHalfClose, nil)
	}

	return err
}

func (s *serverStream) recordHeader(md metadata.MD) {
	s.headerOnce.Do(func() {
		s.call.emitMetadata(s.ctx, config.EventResponseHeader, md)
	})
}
