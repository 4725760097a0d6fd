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
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/healthcheck"
)

const instrumentationName = "github.com/pjscruggs/slogotlp/otlphttp"

// Middleware returns net/http middleware that gives every request its own
// child logger. The child is derived with NewContext, carries request
// attributes and a request id, and is installed in the request context where
// handlers retrieve it with slogotlp.FromContext. The request id is echoed in
// the response header.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := applyOptions(opts)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		chain := wrapWithOTel(cfg, scopedHandler(cfg, next))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if newCtx := ensureSpanContext(ctx, r, cfg); newCtx != ctx {
				r = r.WithContext(newCtx)
			}
			chain.ServeHTTP(w, r)
		})
	}
}

// scopedHandler installs the request logger and scope around next.
func scopedHandler(cfg *config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		scope := newRequestScope(r, start, cfg)
		w.Header().Set(cfg.requestIDHeader, scope.requestID)

		base := cfg.logger
		if base == nil {
			base = slogotlp.FromContext(ctx)
		}
		reqLogger := base.NewContext(cfg.contextName(r)).With(scope.loggerArgs(cfg)...)

		ctx = slogotlp.ContextWithLogger(ctx, reqLogger)
		ctx = context.WithValue(ctx, requestScopeKey{}, scope)
		r = r.WithContext(ctx)
		rec := wrapResponseWriter(w, scope)
		probe := cfg.healthCheck.MatchHTTP(r)

		finish := func() {
			scope.finalize(time.Since(start))
			if cfg.logCompletion {
				logCompletion(reqLogger, scope, probe)
			}
		}

		if !cfg.flushEachRequest {
			defer finish()
			next.ServeHTTP(rec, r)
			return
		}
		_ = reqLogger.Run(ctx, func(context.Context) error {
			defer finish()
			next.ServeHTTP(rec, r)
			return nil
		})
	})
}

// logCompletion writes the per-request summary at a level chosen from the
// status, adjusted by the health-check decision.
func logCompletion(l *slogotlp.Logger, scope *RequestScope, probe healthcheck.Decision) {
	if probe.Drop() {
		return
	}
	level := slogotlp.LevelInfo
	switch status := scope.Status(); {
	case status >= http.StatusInternalServerError:
		level = slogotlp.LevelError
	case status >= http.StatusBadRequest:
		level = slogotlp.LevelWarn
	}
	args := append(scope.completionArgs(), probe.Args()...)
	switch probe.ApplyLevel(level) {
	case slogotlp.LevelError:
		l.Error("request completed", nil, args...)
	case slogotlp.LevelWarn:
		l.Warn("request completed", args...)
	case slogotlp.LevelInfo:
		l.Info("request completed", args...)
	default:
		l.Debug("request completed", args...)
	}
}

// wrapWithOTel wraps handler with otelhttp when enabled.
func wrapWithOTel(cfg *config, handler http.Handler) http.Handler {
	if !cfg.enableOTel {
		return handler
	}
	return otelhttp.NewHandler(handler, instrumentationName, otelOptions(cfg)...)
}

// otelOptions builds otelhttp options from configuration.
func otelOptions(cfg *config) []otelhttp.Option {
	var otelOpts []otelhttp.Option
	if cfg.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
	}
	if !cfg.propagateTrace {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()))
	} else if cfg.propagatorsSet && cfg.propagators != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(cfg.propagators))
	}
	if cfg.spanNameFormatter != nil {
		otelOpts = append(otelOpts, otelhttp.WithSpanNameFormatter(cfg.spanNameFormatter))
	}
	for _, filter := range cfg.filters {
		otelOpts = append(otelOpts, otelhttp.WithFilter(filter))
	}
	return otelOpts
}

// propagator returns the configured propagator, the global one, or nil when
// propagation is off.
func (cfg *config) propagator() propagation.TextMapPropagator {
	if !cfg.propagateTrace {
		return nil
	}
	if cfg.propagatorsSet {
		return cfg.propagators
	}
	return otel.GetTextMapPropagator()
}

// ensureSpanContext extracts the caller's span context from the headers when
// ctx does not already carry one.
func ensureSpanContext(ctx context.Context, r *http.Request, cfg *config) context.Context {
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	p := cfg.propagator()
	if p == nil {
		return ctx
	}
	extracted := p.Extract(ctx, propagation.HeaderCarrier(r.Header))
	if !trace.SpanContextFromContext(extracted).IsValid() {
		return ctx
	}
	return extracted
}

// responseRecorder tracks the status and body size written by the handler.
type responseRecorder struct {
	http.ResponseWriter
	scope       *RequestScope
	wroteHeader bool
}

// wrapResponseWriter decorates w so scope sees the response metadata.
func wrapResponseWriter(w http.ResponseWriter, scope *RequestScope) *responseRecorder {
	scope.setStatus(http.StatusOK)
	return &responseRecorder{ResponseWriter: w, scope: scope}
}

// WriteHeader records the first status code and forwards the call.
func (rr *responseRecorder) WriteHeader(status int) {
	if !rr.wroteHeader {
		rr.scope.setStatus(status)
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(status)
}

// Write counts body bytes.
func (rr *responseRecorder) Write(p []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.scope.addResponseBytes(int64(n))
	if err != nil {
		return n, fmt.Errorf("write response body: %w", err)
	}
	return n, nil
}

// ReadFrom streams src to the client while counting bytes.
func (rr *responseRecorder) ReadFrom(src io.Reader) (int64, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	var (
		n   int64
		err error
	)
	if rf, ok := rr.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(src)
	} else {
		n, err = io.Copy(rr.ResponseWriter, src)
	}
	rr.scope.addResponseBytes(n)
	if err != nil {
		return n, fmt.Errorf("copy response body: %w", err)
	}
	return n, nil
}

// Unwrap exposes the underlying ResponseWriter for http.ResponseController.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// Flush forwards to the wrapped writer when it supports http.Flusher.
func (rr *responseRecorder) Flush() {
	if flusher, ok := rr.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack delegates to the wrapped Hijacker when supported.
func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("hijack connection: %w", err)
	}
	return conn, rw, nil
}
