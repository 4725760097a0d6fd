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
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/pjscruggs/slogotlp/otlp"
)

const (
	envPrefix = "SLOGOTLP_"

	// headersEnvKey receives SLOGOTLP_HEADERS, which is parsed separately
	// because it is a "k=v,k2=v2" list rather than a nested map.
	headersEnvKey = "headers_env"

	defaultServiceName = "unknown-service"
	defaultEnvironment = "development"
)

// ErrInvalidConfig reports a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("slogotlp: invalid config")

// Config is the recognized configuration surface. An empty Endpoint keeps the
// logger console-only.
type Config struct {
	Endpoint    string            `koanf:"endpoint"`
	Headers     map[string]string `koanf:"headers"`
	ServiceName string            `koanf:"service_name"`
	Environment string            `koanf:"environment"`
	MaxRetries  int               `koanf:"max_retries"`
	BaseDelay   time.Duration     `koanf:"base_delay"`
	Gzip        bool              `koanf:"gzip"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		Environment: defaultEnvironment,
		MaxRetries:  otlp.DefaultMaxRetries,
		BaseDelay:   otlp.DefaultBaseDelay,
	}
}

// LoadConfig builds a Config from defaults, then the optional YAML document
// in raw, then SLOGOTLP_* environment variables:
//
//	SLOGOTLP_ENDPOINT      -> endpoint
//	SLOGOTLP_SERVICE_NAME  -> service_name
//	SLOGOTLP_ENVIRONMENT   -> environment
//	SLOGOTLP_HEADERS       -> headers, as "Key=Value,Other=Value"
//	SLOGOTLP_MAX_RETRIES   -> max_retries
//	SLOGOTLP_BASE_DELAY    -> base_delay (Go duration)
//	SLOGOTLP_GZIP          -> gzip
func LoadConfig(raw []byte) (Config, error) {
	k := koanf.New(".")

	if len(raw) > 0 {
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load yaml config: %w", err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if rawHeaders := k.String(headersEnvKey); rawHeaders != "" {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for key, value := range parseHeaderList(rawHeaders) {
			cfg.Headers[key] = value
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps SLOGOTLP_SERVICE_NAME to service_name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if key == "headers" {
		return headersEnvKey
	}
	return key
}

// parseHeaderList parses "Key=Value,Other=Value". Entries without '=' are skipped.
func parseHeaderList(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// Validate checks the configuration for values the transport cannot use.
func (c Config) Validate() error {
	if endpoint := strings.TrimSpace(c.Endpoint); endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("%w: endpoint %q: %w", ErrInvalidConfig, endpoint, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: endpoint %q must use http or https", ErrInvalidConfig, endpoint)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: endpoint %q has no host", ErrInvalidConfig, endpoint)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("%w: base_delay must be >= 0, got %s", ErrInvalidConfig, c.BaseDelay)
	}
	return nil
}

// transportConfig extracts the otlp.Config portion.
func (c Config) transportConfig() otlp.Config {
	return otlp.Config{
		Endpoint:    c.Endpoint,
		Headers:     c.Headers,
		ServiceName: c.ServiceName,
		Environment: c.Environment,
	}
}
