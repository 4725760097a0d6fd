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
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/healthcheck"
)

// Option configures the interceptors.
type Option func(*config)

type config struct {
	logger         *slogotlp.Logger
	contextName    func(fullMethod string) string
	enableOTel     bool
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
	propagatorsSet bool
	propagateTrace bool
	filters        []otelgrpc.Filter
	includePeer    bool
	includeSizes   bool
	logCompletion  bool
	healthCheck    *healthcheck.Filter
}

func defaultConfig() *config {
	return &config{
		contextName:    func(string) string { return "grpc" },
		enableOTel:     true,
		propagateTrace: true,
		includePeer:    true,
		includeSizes:   true,
		logCompletion:  true,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
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

// WithLogger sets the logger RPC loggers are derived from. When unset, the
// logger carried by the incoming context is used.
func WithLogger(logger *slogotlp.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithContextName sets how an RPC logger's context name is chosen from the
// full method. The default is "grpc".
func WithContextName(fn func(fullMethod string) string) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.contextName = fn
		}
	}
}

// WithOTel toggles the otelgrpc stats handlers installed by ServerOptions and
// DialOptions. Enabled by default.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider sets the tracer provider handed to otelgrpc.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators supplies the propagator used for metadata extraction and
// injection. When omitted, otel.GetTextMapPropagator() is used.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
		cfg.propagatorsSet = true
	}
}

// WithTracePropagation toggles trace context extraction and injection.
func WithTracePropagation(enabled bool) Option {
	return func(cfg *config) {
		cfg.propagateTrace = enabled
	}
}

// WithFilter appends an otelgrpc filter.
func WithFilter(filter otelgrpc.Filter) Option {
	return func(cfg *config) {
		if filter != nil {
			cfg.filters = append(cfg.filters, filter)
		}
	}
}

// WithPeerInfo toggles the net.peer.ip attribute. Enabled by default.
func WithPeerInfo(enabled bool) Option {
	return func(cfg *config) {
		cfg.includePeer = enabled
	}
}

// WithPayloadSizes toggles message size and count tracking. Enabled by default.
func WithPayloadSizes(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeSizes = enabled
	}
}

// WithCompletionLog toggles the "rpc completed" record. Enabled by default.
func WithCompletionLog(enabled bool) Option {
	return func(cfg *config) {
		cfg.logCompletion = enabled
	}
}

// WithHealthCheck classifies server RPCs with f so health probes are tagged,
// demoted or dropped according to its mode.
func WithHealthCheck(f *healthcheck.Filter) Option {
	return func(cfg *config) {
		cfg.healthCheck = f
	}
}
