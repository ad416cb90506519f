package interceptors

import (
	"context"
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/hyp3rd/grpc-observability/pkg/config"
	"github.com/hyp3rd/grpc-observability/pkg/sink"
)

// ClientFactory produces channel-side interceptors bound to one sink and configuration.
type ClientFactory struct {
	emitter *emitter
}

// NewClientFactory binds the client interceptors to their collaborators.
func NewClientFactory(
	s sink.Sink,
	locationTags, customTags map[string]string,
	cfg config.Config,
	opts ...Option,
) *ClientFactory {
	return &ClientFactory{emitter: newEmitter(sink.SideClient, s, locationTags, customTags, cfg, opts)}
}

// UnaryClient returns the unary client interceptor.
func (f *ClientFactory) UnaryClient() grpc.UnaryClientInterceptor {
	e := f.emitter

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		c := e.begin(ctx, method)
		if c == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		if cc != nil {
			c.authority = cc.Target()
		}

		outgoing, _ := metadata.FromOutgoingContext(ctx)
		c.emitMetadata(ctx, config.EventRequestHeader, outgoing)
		c.emitMessage(ctx, config.EventRequestMessage, req)
		c.emit(ctx, config.EventHalfClose, nil)

		var (
			header, trailer metadata.MD
			remote          peer.Peer
		)

		opts = append(opts, grpc.Header(&header), grpc.Trailer(&trailer), grpc.Peer(&remote))

		err := invoker(ctx, method, req, reply, cc, opts...)

		if remote.Addr != nil {
			c.setPeer(remote.Addr.String())
		}

		if err == nil || len(header) > 0 {
			c.emitMetadata(ctx, config.EventResponseHeader, header)
		}

		if err == nil {
			c.emitMessage(ctx, config.EventResponseMessage, reply)
		}

		if status.Code(err) == codes.Canceled {
			c.emit(ctx, config.EventCancel, nil)
		}

		c.emitTrailer(ctx, trailer, err)

		return err
	}
}

// StreamClient returns the streaming client interceptor.
func (f *ClientFactory) StreamClient() grpc.StreamClientInterceptor {
	e := f.emitter

	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		c := e.begin(ctx, method)
		if c == nil {
			return streamer(ctx, desc, cc, method, opts...)
		}

		if cc != nil {
			c.authority = cc.Target()
		}

		outgoing, _ := metadata.FromOutgoingContext(ctx)
		c.emitMetadata(ctx, config.EventRequestHeader, outgoing)

		var remote peer.Peer

		opts = append(opts, grpc.Peer(&remote))

		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			if status.Code(err) == codes.Canceled {
				c.emit(ctx, config.EventCancel, nil)
			}

			c.emitTrailer(ctx, nil, err)

			return nil, err
		}

		return &clientStream{ClientStream: cs, call: c, ctx: ctx, remote: &remote}, nil
	}
}

type clientStream struct {
	grpc.ClientStream

	call   *call
	ctx    context.Context
	remote *peer.Peer

	headerOnce sync.Once
	finishOnce sync.Once
}

func (s *clientStream) Header() (metadata.MD, error) {
	md, err := s.ClientStream.Header()
	if err == nil {
		s.recordHeader(md)
	}

	return md, err
}

func (s *clientStream) SendMsg(m any) error {
	err := s.ClientStream.SendMsg(m)
	if err == nil {
		s.call.emitMessage(s.ctx, config.EventRequestMessage, m)
	}

	return err
}

func (s *clientStream) CloseSend() error {
	err := s.ClientStream.CloseSend()
	if err == nil {
		s.call.emit(s.ctx, config.EventHalfClose, nil)
	}

	return err
}

func (s *clientStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err == nil {
		s.recordHeader(nil)
		s.call.emitMessage(s.ctx, config.EventResponseMessage, m)

		return nil
	}

	s.finish(err)

	return err
}

func (s *clientStream) recordHeader(md metadata.MD) {
	s.headerOnce.Do(func() {
		if md == nil {
			md, _ = s.ClientStream.Header()
		}

		if s.remote != nil && s.remote.Addr != nil {
			s.call.setPeer(s.remote.Addr.String())
		}

		s.call.emitMetadata(s.ctx, config.EventResponseHeader, md)
	})
}

func (s *clientStream) finish(err error) {
	s.finishOnce.Do(func() {
		if errors.Is(err, io.EOF) {
			err = nil

			s.recordHeader(nil)
		}

		if s.remote != nil && s.remote.Addr != nil {
			s.call.setPeer(s.remote.Addr.String())
		}

		if status.Code(err) == codes.Canceled {
			s.call.emit(s.ctx, config.EventCancel, nil)
		}

		s.call.emitTrailer(s.ctx, s.ClientStream.Trailer(), err)
	})
}
