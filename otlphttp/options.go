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
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/healthcheck"
)

// DefaultRequestIDHeader carries the request id in both directions.
const DefaultRequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds caller-supplied request ids; longer ones are replaced.
const maxRequestIDLength = 128

// Option configures the middleware or the client transport.
type Option func(*config)

type config struct {
	logger            *slogotlp.Logger
	contextName       func(*http.Request) string
	requestIDHeader   string
	enableOTel        bool
	tracerProvider    trace.TracerProvider
	propagators       propagation.TextMapPropagator
	propagatorsSet    bool
	propagateTrace    bool
	spanNameFormatter func(string, *http.Request) string
	filters           []otelhttp.Filter
	routeGetter       func(*http.Request) string
	includeClientIP   bool
	includeQuery      bool
	includeUserAgent  bool
	logCompletion     bool
	flushEachRequest  bool
	healthCheck       *healthcheck.Filter
}

// defaultConfig returns the baseline configuration.
func defaultConfig() *config {
	return &config{
		contextName:     func(*http.Request) string { return "http" },
		requestIDHeader: DefaultRequestIDHeader,
		enableOTel:      true,
		propagateTrace:  true,
		includeClientIP: true,
		logCompletion:   true,
	}
}

// applyOptions applies the provided options on top of defaultConfig.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLogger sets the logger that request loggers are derived from. When
// unset, the logger already carried by the request context is used.
func WithLogger(logger *slogotlp.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithContextName sets how the request logger's context name is chosen. The
// default is "http".
func WithContextName(fn func(*http.Request) string) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.contextName = fn
		}
	}
}

// WithRequestIDHeader changes the header used to read and echo request ids.
func WithRequestIDHeader(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.requestIDHeader = http.CanonicalHeaderKey(name)
		}
	}
}

// WithOTel enables or disables otelhttp instrumentation. Enabled by default.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider sets the tracer provider handed to otelhttp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators supplies the propagator used to extract (server) or inject
// (client) trace context. When omitted, otel.GetTextMapPropagator() is used.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
		cfg.propagatorsSet = true
	}
}

// WithTracePropagation toggles extraction and injection of trace context.
// Enabled by default.
func WithTracePropagation(enabled bool) Option {
	return func(cfg *config) {
		cfg.propagateTrace = enabled
	}
}

// WithSpanNameFormatter customizes otelhttp span naming.
func WithSpanNameFormatter(formatter func(string, *http.Request) string) Option {
	return func(cfg *config) {
		cfg.spanNameFormatter = formatter
	}
}

// WithFilter appends an otelhttp filter.
func WithFilter(filter otelhttp.Filter) Option {
	return func(cfg *config) {
		if filter != nil {
			cfg.filters = append(cfg.filters, filter)
		}
	}
}

// WithRouteGetter resolves the route template for a request, for example
// r.Pattern on Go 1.22+ muxes.
func WithRouteGetter(fn func(*http.Request) string) Option {
	return func(cfg *config) {
		cfg.routeGetter = fn
	}
}

// WithClientIP toggles the network.peer.ip attribute. Enabled by default.
func WithClientIP(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeClientIP = enabled
	}
}

// WithIncludeQuery toggles the raw query attribute. Queries are omitted by
// default to avoid logging sensitive data.
func WithIncludeQuery(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeQuery = enabled
	}
}

// WithUserAgent toggles the http.user_agent attribute. Off by default.
func WithUserAgent(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeUserAgent = enabled
	}
}

// WithCompletionLog toggles the "request completed" record written after the
// handler returns. Enabled by default.
func WithCompletionLog(enabled bool) Option {
	return func(cfg *config) {
		cfg.logCompletion = enabled
	}
}

// WithFlushEachRequest runs every request through Logger.Run so the queue is
// flushed when the handler returns or panics. Off by default; long-running
// servers usually flush on a timer instead.
func WithFlushEachRequest(enabled bool) Option {
	return func(cfg *config) {
		cfg.flushEachRequest = enabled
	}
}

// WithHealthCheck classifies probe requests with f so their completion
// records are tagged, demoted or dropped according to its mode.
func WithHealthCheck(f *healthcheck.Filter) Option {
	return func(cfg *config) {
		cfg.healthCheck = f
	}
}
