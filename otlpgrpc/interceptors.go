// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package otlpgrpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pjscruggs/slogotlp"
)

// UnaryServerInterceptor derives a logger per unary RPC and installs it in
// the handler's context.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = extractSpanContext(ctx, cfg)

		ri := newRPCInfo(info.FullMethod, "unary", false, start)
		ri.spanContext = trace.SpanContextFromContext(ctx)
		classify(ctx, cfg, ri)
		if cfg.includeSizes {
			ri.recordRequest(req)
		}

		ctx, logger := attachLogger(ctx, cfg, ri)
		resp, err := handler(ctx, req)
		if cfg.includeSizes && err == nil {
			ri.recordResponse(resp)
		}
		ri.finalize(status.Code(err), time.Since(start))
		logCompletion(cfg, logger, ri, err)
		return resp, err
	}
}

// StreamServerInterceptor derives a logger per streaming RPC. The wrapped
// stream's Context carries the logger.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	cfg := applyOptions(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := extractSpanContext(ss.Context(), cfg)

		ri := newRPCInfo(info.FullMethod, streamKind(info.IsClientStream, info.IsServerStream), false, start)
		ri.spanContext = trace.SpanContextFromContext(ctx)
		classify(ctx, cfg, ri)

		ctx, logger := attachLogger(ctx, cfg, ri)
		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx, info: ri, cfg: cfg})
		ri.finalize(status.Code(err), time.Since(start))
		logCompletion(cfg, logger, ri, err)
		return err
	}
}

// UnaryClientInterceptor injects trace context into outgoing metadata and
// logs each call through the logger in ctx.
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		start := time.Now()
		ri := newRPCInfo(method, "unary", true, start)
		if cfg.includeSizes {
			ri.recordRequest(req)
		}
		ctx = injectSpanContext(ctx, cfg)

		err := invoker(ctx, method, req, reply, cc, callOpts...)
		if cfg.includeSizes && err == nil {
			ri.recordResponse(reply)
		}
		ri.finalize(status.Code(err), time.Since(start))
		logCompletion(cfg, clientLogger(ctx, cfg, ri), ri, err)
		return err
	}
}

// StreamClientInterceptor injects trace context into outgoing metadata for
// streaming calls and logs when the stream ends.
func StreamClientInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()
		ri := newRPCInfo(method, streamKind(desc.ClientStreams, desc.ServerStreams), true, start)
		ctx = injectSpanContext(ctx, cfg)
		logger := clientLogger(ctx, cfg, ri)

		cs, err := streamer(ctx, desc, cc, method, callOpts...)
		if err != nil {
			ri.finalize(status.Code(err), time.Since(start))
			logCompletion(cfg, logger, ri, err)
			return nil, err
		}
		return &clientStream{ClientStream: cs, cfg: cfg, info: ri, logger: logger}, nil
	}
}

// ServerOptions returns grpc.ServerOptions installing the otelgrpc stats
// handler (when enabled) and both server interceptors.
func ServerOptions(opts ...Option) []grpc.ServerOption {
	cfg := applyOptions(opts)
	var serverOpts []grpc.ServerOption
	if cfg.enableOTel {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(statsHandlerOptions(cfg)...)))
	}
	return append(serverOpts,
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(opts...)),
	)
}

// DialOptions returns grpc.DialOptions installing the otelgrpc stats handler
// (when enabled) and both client interceptors.
func DialOptions(opts ...Option) []grpc.DialOption {
	cfg := applyOptions(opts)
	var dialOpts []grpc.DialOption
	if cfg.enableOTel {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler(statsHandlerOptions(cfg)...)))
	}
	return append(dialOpts,
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(opts...)),
		grpc.WithChainStreamInterceptor(StreamClientInterceptor(opts...)),
	)
}

func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if p := cfg.propagator(); p != nil {
		opts = append(opts, otelgrpc.WithPropagators(p))
	} else {
		opts = append(opts, otelgrpc.WithPropagators(propagation.NewCompositeTextMapPropagator()))
	}
	for _, f := range cfg.filters {
		opts = append(opts, otelgrpc.WithFilter(f))
	}
	return opts
}

// attachLogger derives the RPC logger and stores it with ri in ctx.
func attachLogger(ctx context.Context, cfg *config, ri *RPCInfo) (context.Context, *slogotlp.Logger) {
	base := cfg.logger
	if base == nil {
		base = slogotlp.FromContext(ctx)
	}
	logger := base.NewContext(cfg.contextName(ri.fullMethod)).With(ri.loggerArgs(cfg)...)

	ctx = slogotlp.ContextWithLogger(ctx, logger)
	ctx = context.WithValue(ctx, rpcInfoKey{}, ri)
	return ctx, logger
}

// clientLogger returns the caller's logger bound to the outgoing RPC.
func clientLogger(ctx context.Context, cfg *config, ri *RPCInfo) *slogotlp.Logger {
	base := cfg.logger
	if base == nil {
		base = slogotlp.FromContext(ctx)
	}
	return base.With(ri.loggerArgs(cfg)...)
}

// classify records the peer and the health-check decision for a server RPC.
func classify(ctx context.Context, cfg *config, ri *RPCInfo) {
	addr := peerAddress(ctx)
	if cfg.includePeer {
		ri.peer = addr
	}
	var ua string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("user-agent"); len(vals) > 0 {
			ua = vals[0]
		}
	}
	ri.probe = cfg.healthCheck.MatchGRPC(ri.fullMethod, ua, addr)
}

// logCompletion writes the per-RPC summary. Server-side faults log at ERROR,
// other failures at WARN and successes at INFO (DEBUG for client calls).
// Health-check RPCs are tagged, demoted or dropped per the configured filter.
func logCompletion(cfg *config, l *slogotlp.Logger, ri *RPCInfo, err error) {
	if !cfg.logCompletion || ri.probe.Drop() {
		return
	}
	args := append(ri.completionArgs(cfg), ri.probe.Args()...)
	level := slogotlp.LevelInfo
	switch ri.Status() {
	case codes.OK:
		if ri.client {
			level = slogotlp.LevelDebug
		}
	case codes.Unknown, codes.Internal, codes.DataLoss, codes.Unimplemented, codes.Unavailable:
		level = slogotlp.LevelError
	default:
		level = slogotlp.LevelWarn
		args = append(args, "error", status.Convert(err).Message())
	}
	switch ri.probe.ApplyLevel(level) {
	case slogotlp.LevelError:
		l.Error("rpc completed", err, args...)
	case slogotlp.LevelWarn:
		l.Warn("rpc completed", args...)
	case slogotlp.LevelInfo:
		l.Info("rpc completed", args...)
	default:
		l.Debug("rpc completed", args...)
	}
}

// extractSpanContext reads the caller's trace from incoming metadata when ctx
// has none yet (otelgrpc has usually done this already).
func extractSpanContext(ctx context.Context, cfg *config) context.Context {
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	p := cfg.propagator()
	if p == nil {
		return ctx
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return p.Extract(ctx, metadataCarrier(md))
}

// injectSpanContext writes ctx's trace into a copy of the outgoing metadata.
func injectSpanContext(ctx context.Context, cfg *config) context.Context {
	p := cfg.propagator()
	if p == nil || !trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	p.Inject(ctx, metadataCarrier(md))
	return metadata.NewOutgoingContext(ctx, md)
}

// metadataCarrier adapts gRPC metadata to propagation.TextMapCarrier.
type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// peerAddress returns the remote host of the peer in ctx.
func peerAddress(ctx context.Context) string {
	pr, ok := peer.FromContext(ctx)
	if !ok || pr == nil || pr.Addr == nil {
		return ""
	}
	addr := pr.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func streamKind(clientStreams, serverStreams bool) string {
	switch {
	case clientStreams && serverStreams:
		return "bidi_stream"
	case clientStreams:
		return "client_stream"
	case serverStreams:
		return "server_stream"
	default:
		return "unary"
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx  context.Context
	info *RPCInfo
	cfg  *config
}

// Context returns the context carrying the RPC logger.
func (s *serverStream) Context() context.Context {
	return s.ctx
}

// RecvMsg counts inbound messages.
func (s *serverStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err == nil && s.cfg.includeSizes {
		s.info.recordRequest(m)
	}
	return err
}

// SendMsg counts outbound messages.
func (s *serverStream) SendMsg(m any) error {
	if s.cfg.includeSizes {
		s.info.recordResponse(m)
	}
	return s.ServerStream.SendMsg(m)
}

type clientStream struct {
	grpc.ClientStream
	cfg    *config
	info   *RPCInfo
	logger *slogotlp.Logger
	once   sync.Once
}

// SendMsg counts outbound messages and finishes the call on error.
func (c *clientStream) SendMsg(m any) error {
	if c.cfg.includeSizes {
		c.info.recordRequest(m)
	}
	err := c.ClientStream.SendMsg(m)
	if err != nil && !errors.Is(err, io.EOF) {
		c.finish(err)
	}
	return err
}

// RecvMsg counts inbound messages and finishes the call when the stream ends.
func (c *clientStream) RecvMsg(m any) error {
	err := c.ClientStream.RecvMsg(m)
	switch {
	case err == nil:
		if c.cfg.includeSizes {
			c.info.recordResponse(m)
		}
	case errors.Is(err, io.EOF):
		c.finish(nil)
	default:
		c.finish(err)
	}
	return err
}

// finish records the outcome exactly once.
func (c *clientStream) finish(err error) {
	c.once.Do(func() {
		c.info.finalize(status.Code(err), time.Since(c.info.start))
		logCompletion(c.cfg, c.logger, c.info, err)
	})
}
