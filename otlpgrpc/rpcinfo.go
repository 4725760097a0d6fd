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
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"

	"github.com/pjscruggs/slogotlp/healthcheck"
)

const unsetLatency = int64(-1)

// RPCInfo captures per-RPC metadata: method, kind, payload sizes, status and
// latency.
type RPCInfo struct {
	fullMethod  string
	service     string
	method      string
	kind        string
	client      bool
	start       time.Time
	peer        string
	spanContext trace.SpanContext
	probe       healthcheck.Decision

	status    atomic.Uint32
	latencyNS atomic.Int64
	reqBytes  atomic.Int64
	respBytes atomic.Int64
	reqCount  atomic.Int64
	respCount atomic.Int64
}

type rpcInfoKey struct{}

// InfoFromContext returns the RPCInfo installed by the interceptors.
func InfoFromContext(ctx context.Context) (*RPCInfo, bool) {
	if ctx == nil {
		return nil, false
	}
	info, ok := ctx.Value(rpcInfoKey{}).(*RPCInfo)
	return info, ok && info != nil
}

func newRPCInfo(fullMethod, kind string, client bool, start time.Time) *RPCInfo {
	service, method := splitFullMethod(fullMethod)
	info := &RPCInfo{
		fullMethod: fullMethod,
		service:    service,
		method:     method,
		kind:       kind,
		client:     client,
		start:      start,
	}
	info.status.Store(uint32(codes.OK))
	info.latencyNS.Store(unsetLatency)
	return info
}

func (ri *RPCInfo) recordRequest(msg any) {
	if msg == nil {
		return
	}
	ri.reqBytes.Add(messageSize(msg))
	ri.reqCount.Add(1)
}

func (ri *RPCInfo) recordResponse(msg any) {
	if msg == nil {
		return
	}
	ri.respBytes.Add(messageSize(msg))
	ri.respCount.Add(1)
}

func (ri *RPCInfo) finalize(code codes.Code, d time.Duration) {
	ri.status.Store(uint32(code))
	ri.latencyNS.Store(max(d, 0).Nanoseconds())
}

// loggerArgs lists the attributes bound to the RPC logger.
func (ri *RPCInfo) loggerArgs(cfg *config) []any {
	args := []any{"rpc.system", "grpc"}
	if ri.service != "" {
		args = append(args, "rpc.service", ri.service)
	}
	if ri.method != "" {
		args = append(args, "rpc.method", ri.method)
	}
	args = append(args, "grpc.type", ri.kind)
	if cfg.includePeer && ri.peer != "" {
		args = append(args, "net.peer.ip", ri.peer)
	}
	if ri.spanContext.IsValid() {
		args = append(args,
			"rpc.trace_id", ri.spanContext.TraceID().String(),
			"rpc.span_id", ri.spanContext.SpanID().String(),
		)
	}
	return args
}

// completionArgs lists the attributes of the completion record.
func (ri *RPCInfo) completionArgs(cfg *config) []any {
	args := []any{
		"grpc.status_code", ri.Status().String(),
		"rpc.duration", ri.Latency(),
	}
	if cfg.includeSizes {
		args = append(args,
			"rpc.request_size", ri.RequestBytes(),
			"rpc.response_size", ri.ResponseBytes(),
			"rpc.request_count", ri.reqCount.Load(),
			"rpc.response_count", ri.respCount.Load(),
		)
	}
	return args
}

// FullMethod returns the fully-qualified method, e.g. "/pkg.Service/Method".
func (ri *RPCInfo) FullMethod() string { return ri.fullMethod }

// Service returns the service component of the method.
func (ri *RPCInfo) Service() string { return ri.service }

// Method returns the method component.
func (ri *RPCInfo) Method() string { return ri.method }

// Kind returns unary, client_stream, server_stream or bidi_stream.
func (ri *RPCInfo) Kind() string { return ri.kind }

// IsClient reports whether the info describes an outgoing call.
func (ri *RPCInfo) IsClient() bool { return ri.client }

// Peer returns the remote host, if known.
func (ri *RPCInfo) Peer() string { return ri.peer }

// Status returns the gRPC status code, OK until the RPC finishes.
func (ri *RPCInfo) Status() codes.Code { return codes.Code(ri.status.Load()) }

// Latency returns the final latency, or the elapsed time while the RPC runs.
func (ri *RPCInfo) Latency() time.Duration {
	if ns := ri.latencyNS.Load(); ns != unsetLatency {
		return time.Duration(ns)
	}
	return time.Since(ri.start)
}

// RequestBytes returns the total encoded size of request messages.
func (ri *RPCInfo) RequestBytes() int64 { return ri.reqBytes.Load() }

// ResponseBytes returns the total encoded size of response messages.
func (ri *RPCInfo) ResponseBytes() int64 { return ri.respBytes.Load() }

// splitFullMethod parses "/pkg.Service/Method".
func splitFullMethod(full string) (service, method string) {
	if !strings.HasPrefix(full, "/") {
		return "", strings.TrimSpace(full)
	}
	service, method, ok := strings.Cut(full[1:], "/")
	if !ok {
		return service, ""
	}
	return service, method
}

// messageSize returns the encoded size of a message when it can be computed.
func messageSize(msg any) int64 {
	switch m := msg.(type) {
	case proto.Message:
		return int64(proto.Size(m))
	case interface{ Size() int }:
		return int64(m.Size())
	default:
		return 0
	}
}
