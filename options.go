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

package slogotlp

import (
	"io"
	"log/slog"
	"maps"
	"os"

	"github.com/pjscruggs/slogotlp/otlp"
)

// Option configures a Logger during New. Options are applied in order, so
// later options override earlier ones.
type Option func(*options)

type options struct {
	cfg           Config
	consoleWriter io.Writer
	consoleLevel  slog.Leveler
	transportOpts []otlp.Option
}

// WithConfig replaces the whole configuration, for example with the result of
// LoadConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		cfg.Headers = maps.Clone(cfg.Headers)
		o.cfg = cfg
	}
}

// WithEnv overlays SLOGOTLP_* environment variables onto the configuration
// assembled so far. Invalid values are reported as a diagnostic and ignored.
func WithEnv() Option {
	return func(o *options) {
		overlay, err := LoadConfig(nil)
		if err != nil {
			diagLogger.Printf("ignoring environment configuration: %v", err)
			return
		}
		mergeEnvConfig(&o.cfg, overlay)
	}
}

// WithEndpoint sets the OTLP/HTTP logs URL. An empty endpoint disables export.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.cfg.Endpoint = endpoint
	}
}

// WithHeaders merges headers into the export request headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if len(headers) == 0 {
			return
		}
		if o.cfg.Headers == nil {
			o.cfg.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(o.cfg.Headers, headers)
	}
}

// WithHeader adds a single export request header.
func WithHeader(key, value string) Option {
	return WithHeaders(map[string]string{key: value})
}

// WithServiceName sets service.name.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.cfg.ServiceName = name
	}
}

// WithEnvironment sets the deployment environment.
func WithEnvironment(environment string) Option {
	return func(o *options) {
		o.cfg.Environment = environment
	}
}

// WithConsoleWriter redirects console output. Nil discards it.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) {
		if w == nil {
			w = io.Discard
		}
		o.consoleWriter = w
	}
}

// WithConsoleLevel sets the minimum level written to the console. Records
// below it are still exported.
func WithConsoleLevel(level Level) Option {
	return func(o *options) {
		o.consoleLevel = slogLevel(level)
	}
}

// WithTransportOptions passes options through to otlp.New.
func WithTransportOptions(opts ...otlp.Option) Option {
	return func(o *options) {
		o.transportOpts = append(o.transportOpts, opts...)
	}
}

// buildOptions applies opts over the defaults.
func buildOptions(opts []Option) options {
	o := options{
		cfg:           DefaultConfig(),
		consoleWriter: os.Stderr,
		consoleLevel:  slog.LevelDebug,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.cfg.ServiceName == "" {
		o.cfg.ServiceName = defaultServiceName
	}
	if o.cfg.Environment == "" {
		o.cfg.Environment = defaultEnvironment
	}
	return o
}

// transportOptions derives otlp options from the config, followed by any
// explicit WithTransportOptions.
func (o options) transportOptions() []otlp.Option {
	out := []otlp.Option{
		otlp.WithRetry(o.cfg.MaxRetries, o.cfg.BaseDelay),
		otlp.WithGzip(o.cfg.Gzip),
		otlp.WithUserAgent(UserAgent),
		otlp.WithDiagnostics(diagLogger),
	}
	return append(out, o.transportOpts...)
}

// mergeEnvConfig copies values that differ from the defaults in overlay.
func mergeEnvConfig(dst *Config, overlay Config) {
	def := DefaultConfig()
	if overlay.Endpoint != "" {
		dst.Endpoint = overlay.Endpoint
	}
	if overlay.ServiceName != def.ServiceName {
		dst.ServiceName = overlay.ServiceName
	}
	if overlay.Environment != def.Environment {
		dst.Environment = overlay.Environment
	}
	if overlay.MaxRetries != def.MaxRetries {
		dst.MaxRetries = overlay.MaxRetries
	}
	if overlay.BaseDelay != def.BaseDelay {
		dst.BaseDelay = overlay.BaseDelay
	}
	if overlay.Gzip {
		dst.Gzip = true
	}
	if len(overlay.Headers) > 0 {
		if dst.Headers == nil {
			dst.Headers = make(map[string]string, len(overlay.Headers))
		}
		maps.Copy(dst.Headers, overlay.Headers)
	}
}
