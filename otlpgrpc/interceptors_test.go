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
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/healthcheck"
	"github.com/pjscruggs/slogotlp/otlp"
)

const (
	testTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	testSpanID  = "00f067aa0ba902b7"
)

func newQueueLogger(t *testing.T) *slogotlp.Logger {
	t.Helper()
	return slogotlp.New(
		slogotlp.WithEndpoint("http://127.0.0.1:1/v1/logs"),
		slogotlp.WithConsoleWriter(io.Discard),
		slogotlp.WithTransportOptions(otlp.WithRetry(0, 0), otlp.WithDiagnostics(nil)),
	)
}

func findRecord(t *testing.T, l *slogotlp.Logger, body string) otlp.Record {
	t.Helper()
	for _, r := range l.Transport().Pending() {
		if r.Body == body {
			return r
		}
	}
	t.Fatalf("no queued record with body %q", body)
	return otlp.Record{}
}

// attrMap returns the named attributes of r.
func attrMap(r otlp.Record, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := r.Attr(key); ok {
			out[key] = v
		}
	}
	return out
}

func peerContext() context.Context {
	return peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5000},
	})
}

func remoteSpanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex(testTraceID)
	if err != nil {
		t.Fatalf("TraceIDFromHex: %v", err)
	}
	spanID, err := trace.SpanIDFromHex(testSpanID)
	if err != nil {
		t.Fatalf("SpanIDFromHex: %v", err)
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
}

// TestUnaryServerInterceptorInstallsLogger verifies the handler sees an RPC
// logger with method and peer attributes and that a completion record follows.
func TestUnaryServerInterceptorInstallsLogger(t *testing.T) {
	t.Parallel()

	root := newQueueLogger(t)
	interceptor := UnaryServerInterceptor(WithLogger(root))
	req := wrapperspb.String("item-7")
	resp := wrapperspb.Int64(42)

	_, err := interceptor(peerContext(), req, &grpc.UnaryServerInfo{FullMethod: "/shop.Catalog/Get"},
		func(ctx context.Context, _ any) (any, error) {
			if info, ok := InfoFromContext(ctx); !ok || info.Method() != "Get" {
				t.Errorf("InfoFromContext() = %v, %v", info, ok)
			}
			slogotlp.FromContext(ctx).Info("loading item")
			return resp, nil
		})
	if err != nil {
		t.Fatalf("interceptor returned %v", err)
	}

	r := findRecord(t, root, "[grpc] loading item")
	want := map[string]string{
		"rpc.system":  "grpc",
		"rpc.service": "shop.Catalog",
		"rpc.method":  "Get",
		"grpc.type":   "unary",
		"net.peer.ip": "10.0.0.1",
	}
	if diff := cmp.Diff(want, attrMap(r, "rpc.system", "rpc.service", "rpc.method", "grpc.type", "net.peer.ip")); diff != "" {
		t.Fatalf("rpc attributes mismatch (-want +got):\n%s", diff)
	}

	done := findRecord(t, root, "[grpc] rpc completed")
	wantDone := map[string]string{
		"grpc.status_code":  "OK",
		"rpc.request_size":  strconv.Itoa(proto.Size(req)),
		"rpc.response_size": strconv.Itoa(proto.Size(resp)),
	}
	if diff := cmp.Diff(wantDone, attrMap(done, "grpc.status_code", "rpc.request_size", "rpc.response_size")); diff != "" {
		t.Fatalf("completion attributes mismatch (-want +got):\n%s", diff)
	}
	if done.SeverityText != "INFO" {
		t.Fatalf("completion severity = %s, want INFO", done.SeverityText)
	}
}

func TestUnaryServerInterceptorCompletionLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code codes.Code
		want string
	}{
		{codes.NotFound, "WARN"},
		{codes.InvalidArgument, "WARN"},
		{codes.Internal, "ERROR"},
		{codes.Unavailable, "ERROR"},
	}
	for _, tt := range tests {
		root := newQueueLogger(t)
		interceptor := UnaryServerInterceptor(WithLogger(root), WithPeerInfo(false))
		handlerErr := status.Error(tt.code, "nope")
		_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/shop.Catalog/Get"},
			func(context.Context, any) (any, error) { return nil, handlerErr })
		if err != handlerErr {
			t.Fatalf("%v: interceptor changed the handler error: %v", tt.code, err)
		}

		done := findRecord(t, root, "[grpc] rpc completed")
		if done.SeverityText != tt.want {
			t.Errorf("%v: severity = %s, want %s", tt.code, done.SeverityText, tt.want)
		}
		if got, _ := done.Attr("grpc.status_code"); got != tt.code.String() {
			t.Errorf("%v: grpc.status_code = %q", tt.code, got)
		}
	}
}

func TestUnaryServerInterceptorDemotesHealthChecks(t *testing.T) {
	t.Parallel()

	root := newQueueLogger(t)
	interceptor := UnaryServerInterceptor(WithLogger(root), WithHealthCheck(healthcheck.NewFilter(healthcheck.DefaultConfig())))
	_, err := interceptor(peerContext(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(context.Context, any) (any, error) { return wrapperspb.Bool(true), nil })
	if err != nil {
		t.Fatalf("interceptor returned %v", err)
	}

	done := findRecord(t, root, "[grpc] rpc completed")
	if done.SeverityText != "DEBUG" {
		t.Fatalf("health check severity = %s, want DEBUG", done.SeverityText)
	}
	if got, _ := done.Attr(healthcheck.DefaultTagKey); got != "true" {
		t.Fatalf("%s = %q, want true", healthcheck.DefaultTagKey, got)
	}
}

func TestUnaryServerInterceptorExtractsTraceparent(t *testing.T) {
	t.Parallel()

	root := newQueueLogger(t)
	interceptor := UnaryServerInterceptor(
		WithLogger(root),
		WithPropagators(propagation.TraceContext{}),
		WithCompletionLog(false),
		WithContextName(func(fullMethod string) string { return fullMethod }),
	)
	md := metadata.Pairs("traceparent", "00-"+testTraceID+"-"+testSpanID+"-01")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	_, _ = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/shop.Catalog/List"},
		func(ctx context.Context, _ any) (any, error) {
			slogotlp.FromContext(ctx).Info("traced")
			return nil, nil
		})

	r := findRecord(t, root, "[/shop.Catalog/List] traced")
	want := map[string]string{"rpc.trace_id": testTraceID, "rpc.span_id": testSpanID}
	if diff := cmp.Diff(want, attrMap(r, "rpc.trace_id", "rpc.span_id")); diff != "" {
		t.Fatalf("trace attributes mismatch (-want +got):\n%s", diff)
	}
	if root.Transport().Len() != 1 {
		t.Fatalf("queued %d records with completion log disabled", root.Transport().Len())
	}
}

// fakeServerStream yields msgs from RecvMsg, then io.EOF.
type fakeServerStream struct {
	grpc.ServerStream
	ctx  context.Context
	msgs []string
	sent int
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func (s *fakeServerStream) RecvMsg(m any) error {
	if len(s.msgs) == 0 {
		return io.EOF
	}
	m.(*wrapperspb.StringValue).Value = s.msgs[0]
	s.msgs = s.msgs[1:]
	return nil
}

func (s *fakeServerStream) SendMsg(any) error {
	s.sent++
	return nil
}

func TestStreamServerInterceptorCountsMessages(t *testing.T) {
	t.Parallel()

	root := newQueueLogger(t)
	interceptor := StreamServerInterceptor(WithLogger(root))
	stream := &fakeServerStream{ctx: peerContext(), msgs: []string{"a", "b"}}

	err := interceptor(nil, stream, &grpc.StreamServerInfo{FullMethod: "/shop.Catalog/Sync", IsClientStream: true, IsServerStream: true},
		func(_ any, ss grpc.ServerStream) error {
			slogotlp.FromContext(ss.Context()).Info("streaming")
			for {
				var in wrapperspb.StringValue
				if err := ss.RecvMsg(&in); err == io.EOF {
					return ss.SendMsg(wrapperspb.Bool(true))
				} else if err != nil {
					return err
				}
			}
		})
	if err != nil {
		t.Fatalf("interceptor returned %v", err)
	}

	if got, _ := findRecord(t, root, "[grpc] streaming").Attr("grpc.type"); got != "bidi_stream" {
		t.Fatalf("grpc.type = %q, want bidi_stream", got)
	}
	done := findRecord(t, root, "[grpc] rpc completed")
	want := map[string]string{"rpc.request_count": "2", "rpc.response_count": "1"}
	if diff := cmp.Diff(want, attrMap(done, "rpc.request_count", "rpc.response_count")); diff != "" {
		t.Fatalf("message counts mismatch (-want +got):\n%s", diff)
	}
}

func TestUnaryClientInterceptorInjectsTrace(t *testing.T) {
	t.Parallel()

	root := newQueueLogger(t)
	interceptor := UnaryClientInterceptor(WithLogger(root), WithPropagators(propagation.TraceContext{}))
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), remoteSpanContext(t))
	ctx = metadata.AppendToOutgoingContext(ctx, "x-tenant", "acme")

	var outgoing metadata.MD
	err := interceptor(ctx, "/shop.Catalog/Get", wrapperspb.String("x"), &wrapperspb.Int64Value{}, nil,
		func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
			outgoing, _ = metadata.FromOutgoingContext(ctx)
			return nil
		})
	if err != nil {
		t.Fatalf("interceptor returned %v", err)
	}

	if got := outgoing.Get("traceparent"); len(got) != 1 || got[0] != "00-"+testTraceID+"-"+testSpanID+"-01" {
		t.Fatalf("traceparent = %v", got)
	}
	if got := outgoing.Get("x-tenant"); len(got) != 1 || got[0] != "acme" {
		t.Fatalf("existing metadata lost: %v", outgoing)
	}

	done := findRecord(t, root, "rpc completed")
	if done.SeverityText != "DEBUG" {
		t.Fatalf("client completion severity = %s, want DEBUG", done.SeverityText)
	}
}

func TestServerAndDialOptions(t *testing.T) {
	t.Parallel()

	if got := len(ServerOptions()); got != 3 {
		t.Fatalf("len(ServerOptions()) = %d, want 3", got)
	}
	if got := len(ServerOptions(WithOTel(false))); got != 2 {
		t.Fatalf("len(ServerOptions(WithOTel(false))) = %d, want 2", got)
	}
	if got := len(DialOptions(WithOTel(false))); got != 2 {
		t.Fatalf("len(DialOptions(WithOTel(false))) = %d, want 2", got)
	}
}

func TestSplitFullMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, service, method string
	}{
		{"/pkg.Service/Method", "pkg.Service", "Method"},
		{"/pkg.Service", "pkg.Service", ""},
		{"Method", "", "Method"},
	}
	for _, tt := range tests {
		service, method := splitFullMethod(tt.in)
		if service != tt.service || method != tt.method {
			t.Errorf("splitFullMethod(%q) = (%q, %q), want (%q, %q)", tt.in, service, method, tt.service, tt.method)
		}
	}
}
