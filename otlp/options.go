// Copyright 2025-2026 Patrick J. Scruggs
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

package otlp

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultMaxRetries is the number of retries after the first failed POST.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the linear backoff unit: retry n waits n*DefaultBaseDelay.
	DefaultBaseDelay = time.Second
	// DefaultTimeout bounds a single export POST.
	DefaultTimeout = 10 * time.Second

	// ContentType is always sent and cannot be overridden by caller headers.
	ContentType = "application/json"

	maxResponseBytes = 64 << 10
)

// DiagLogger receives transport diagnostics. *log.Logger satisfies it.
type DiagLogger interface {
	Printf(format string, args ...any)
}

// DefaultDiagLogger writes diagnostics to stderr with a "slogotlp: " prefix.
var DefaultDiagLogger DiagLogger = log.New(os.Stderr, "slogotlp: ", log.LstdFlags)

// Config identifies the collector and the emitting resource.
type Config struct {
	// Endpoint is the full OTLP/HTTP logs URL. Empty disables delivery.
	Endpoint string
	// Headers are sent with every export request, typically for auth.
	Headers map[string]string
	// ServiceName populates service.name.
	ServiceName string
	// Environment populates deployment.environment and the environment attribute.
	Environment string
}

// Option customizes a Transport.
type Option func(*options)

type options struct {
	client         *http.Client
	maxRetries     int
	baseDelay      time.Duration
	gzip           bool
	diag           DiagLogger
	registerer     prometheus.Registerer
	rootSpanRecord bool
	clock          func() time.Time
	userAgent      string
}

// WithHTTPClient sets the client used for export requests. The default client
// has a 10s timeout and an otelhttp-instrumented transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithRetry overrides the retry budget and the linear backoff unit. Negative
// values are clamped to zero.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.maxRetries = max(maxRetries, 0)
		o.baseDelay = max(baseDelay, 0)
	}
}

// WithGzip toggles gzip request bodies (Content-Encoding: gzip).
func WithGzip(enabled bool) Option {
	return func(o *options) {
		o.gzip = enabled
	}
}

// WithDiagnostics routes transport diagnostics to d. Nil silences them.
func WithDiagnostics(d DiagLogger) Option {
	return func(o *options) {
		if d == nil {
			d = log.New(io.Discard, "", 0)
		}
		o.diag = d
	}
}

// WithMetrics registers transport counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithRootSpanRecord queues a record for the root span when the Transport is
// created. It is the only record without a parent.id attribute.
func WithRootSpanRecord(enabled bool) Option {
	return func(o *options) {
		o.rootSpanRecord = enabled
	}
}

// WithClock replaces the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithUserAgent sets the User-Agent header sent when callers do not supply one.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// buildOptions applies opts over the defaults.
func buildOptions(opts []Option) options {
	o := options{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		diag:       DefaultDiagLogger,
		clock:      time.Now,
		userAgent:  "slogotlp",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.client == nil {
		o.client = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return o
}
