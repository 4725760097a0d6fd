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

package otlphttp

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"

	unsetLatency = int64(-1)
)

// RequestScope captures request metadata for handlers and for the completion
// record. Status, size and latency are updated as the response is written.
type RequestScope struct {
	start       time.Time
	requestID   string
	method      string
	route       string
	target      string
	query       string
	scheme      string
	host        string
	clientIP    string
	userAgent   string
	requestSize int64
	spanContext trace.SpanContext

	status    atomic.Int64
	respBytes atomic.Int64
	latencyNS atomic.Int64
}

type requestScopeKey struct{}

// ScopeFromContext returns the RequestScope installed by Middleware.
func ScopeFromContext(ctx context.Context) (*RequestScope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(requestScopeKey{}).(*RequestScope)
	return scope, ok && scope != nil
}

// newRequestScope builds a scope for an inbound request.
func newRequestScope(r *http.Request, start time.Time, cfg *config) *RequestScope {
	scope := &RequestScope{
		start:       start,
		requestID:   requestIDFromHeader(r.Header.Get(cfg.requestIDHeader)),
		method:      r.Method,
		host:        r.Host,
		requestSize: r.ContentLength,
		scheme:      schemeHTTP,
		spanContext: trace.SpanContextFromContext(r.Context()),
	}
	if r.TLS != nil {
		scope.scheme = schemeHTTPS
	}
	if r.URL != nil {
		scope.target = r.URL.Path
		scope.query = r.URL.RawQuery
	}
	if cfg.includeUserAgent {
		scope.userAgent = r.UserAgent()
	}
	if cfg.includeClientIP {
		scope.clientIP = extractIP(r.RemoteAddr)
	}
	if cfg.routeGetter != nil {
		scope.route = strings.TrimSpace(cfg.routeGetter(r))
	}
	scope.status.Store(http.StatusOK)
	scope.latencyNS.Store(unsetLatency)
	return scope
}

// requestIDFromHeader keeps a usable caller id or mints a new one.
func requestIDFromHeader(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxRequestIDLength || strings.ContainsAny(v, "\r\n") {
		return uuid.NewString()
	}
	return v
}

// loggerArgs lists the attributes bound to the request logger.
func (rs *RequestScope) loggerArgs(cfg *config) []any {
	args := []any{"request_id", rs.requestID}
	add := func(key, value string) {
		if value != "" {
			args = append(args, key, value)
		}
	}
	add("http.method", rs.method)
	add("http.target", rs.target)
	if cfg.includeQuery {
		add("http.query", rs.query)
	}
	add("http.route", rs.route)
	add("http.scheme", rs.scheme)
	add("http.host", rs.host)
	add("network.peer.ip", rs.clientIP)
	add("http.user_agent", rs.userAgent)
	if rs.requestSize > 0 {
		args = append(args, "http.request_size", rs.requestSize)
	}
	if rs.spanContext.IsValid() {
		args = append(args,
			"http.trace_id", rs.spanContext.TraceID().String(),
			"http.span_id", rs.spanContext.SpanID().String(),
		)
	}
	return args
}

// completionArgs lists the attributes of the completion record.
func (rs *RequestScope) completionArgs() []any {
	lat, _ := rs.Latency()
	return []any{
		"http.status_code", rs.Status(),
		"http.response_size", rs.ResponseSize(),
		"http.latency", lat,
	}
}

// RequestID returns the caller-supplied or generated request id.
func (rs *RequestScope) RequestID() string { return rs.requestID }

// Method returns the HTTP method.
func (rs *RequestScope) Method() string { return rs.method }

// Target returns the request path.
func (rs *RequestScope) Target() string { return rs.target }

// Route returns the resolved route template, if any.
func (rs *RequestScope) Route() string { return rs.route }

// SpanContext returns the request's span context: the server span when
// otelhttp is active, otherwise the one extracted from the caller's headers.
// It is invalid when neither exists.
func (rs *RequestScope) SpanContext() trace.SpanContext { return rs.spanContext }

// Status returns the response status code, 200 until one is written.
func (rs *RequestScope) Status() int {
	code := rs.status.Load()
	if code == 0 {
		return http.StatusOK
	}
	return int(code)
}

// ResponseSize returns the number of body bytes written so far.
func (rs *RequestScope) ResponseSize() int64 { return rs.respBytes.Load() }

// Latency returns the request latency and whether the request has finished.
func (rs *RequestScope) Latency() (time.Duration, bool) {
	if ns := rs.latencyNS.Load(); ns != unsetLatency {
		return time.Duration(ns), true
	}
	return time.Since(rs.start), false
}

func (rs *RequestScope) setStatus(code int) {
	if code <= 0 {
		code = http.StatusOK
	}
	rs.status.Store(int64(code))
}

func (rs *RequestScope) addResponseBytes(delta int64) {
	if delta > 0 {
		rs.respBytes.Add(delta)
	}
}

// finalize freezes the latency. Status and size are already current.
func (rs *RequestScope) finalize(d time.Duration) {
	rs.latencyNS.Store(max(d, 0).Nanoseconds())
}

// extractIP strips the port from a host:port string.
func extractIP(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
