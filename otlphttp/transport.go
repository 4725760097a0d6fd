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
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/pjscruggs/slogotlp"
)

// Transport returns an http.RoundTripper for outbound calls made while
// serving a request. It injects trace context, forwards the current request
// id and logs each call through the logger in the request context.
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripper{base: base, cfg: applyOptions(opts)}
}

type roundTripper struct {
	base http.RoundTripper
	cfg  *config
}

// RoundTrip forwards req after decorating its headers.
func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("otlphttp: nil request")
	}
	ctx := req.Context()

	req = req.Clone(ctx)
	if p := t.cfg.propagator(); p != nil {
		p.Inject(ctx, propagation.HeaderCarrier(req.Header))
	}
	if scope, ok := ScopeFromContext(ctx); ok && req.Header.Get(t.cfg.requestIDHeader) == "" {
		req.Header.Set(t.cfg.requestIDHeader, scope.RequestID())
	}

	logger := t.cfg.logger
	if logger == nil {
		logger = slogotlp.FromContext(ctx)
	}
	args := []any{"http.method", req.Method, "server.address", req.URL.Host, "http.target", req.URL.Path}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	args = append(args, "http.latency", time.Since(start))
	if err != nil {
		logger.Warn("outbound request failed", append(args, "error", err.Error())...)
		return nil, fmt.Errorf("round trip request: %w", err)
	}
	logger.Debug("outbound request completed", append(args, "http.status_code", resp.StatusCode)...)
	return resp, nil
}
