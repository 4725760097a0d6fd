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

package slogotlp_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pjscruggs/slogotlp"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := slogotlp.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig(nil) = %v", err)
	}
	if diff := cmp.Diff(slogotlp.DefaultConfig(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	t.Parallel()

	raw := []byte(`
endpoint: https://collector.example.com/v1/logs
service_name: billing
environment: staging
max_retries: 5
base_delay: 250ms
gzip: true
headers:
  Authorization: Bearer abc
`)
	cfg, err := slogotlp.LoadConfig(raw)
	if err != nil {
		t.Fatalf("LoadConfig() = %v", err)
	}
	want := slogotlp.Config{
		Endpoint:    "https://collector.example.com/v1/logs",
		Headers:     map[string]string{"Authorization": "Bearer abc"},
		ServiceName: "billing",
		Environment: "staging",
		MaxRetries:  5,
		BaseDelay:   250 * time.Millisecond,
		Gzip:        true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

// TestLoadConfigEnvOverridesYAML uses t.Setenv and therefore runs serially.
func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	t.Setenv("SLOGOTLP_ENDPOINT", "http://localhost:4318/v1/logs")
	t.Setenv("SLOGOTLP_SERVICE_NAME", "from-env")
	t.Setenv("SLOGOTLP_HEADERS", "X-Tenant=acme, Authorization=Basic xyz,broken")
	t.Setenv("SLOGOTLP_MAX_RETRIES", "1")

	cfg, err := slogotlp.LoadConfig([]byte("service_name: from-yaml\nenvironment: qa\n"))
	if err != nil {
		t.Fatalf("LoadConfig() = %v", err)
	}
	if cfg.ServiceName != "from-env" || cfg.Environment != "qa" {
		t.Fatalf("service/environment = %q/%q, want from-env/qa", cfg.ServiceName, cfg.Environment)
	}
	if cfg.Endpoint != "http://localhost:4318/v1/logs" || cfg.MaxRetries != 1 {
		t.Fatalf("endpoint/retries = %q/%d", cfg.Endpoint, cfg.MaxRetries)
	}
	wantHeaders := map[string]string{"X-Tenant": "acme", "Authorization": "Basic xyz"}
	if diff := cmp.Diff(wantHeaders, cfg.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestWithEnvConfiguresLogger(t *testing.T) {
	t.Setenv("SLOGOTLP_ENDPOINT", "http://localhost:4318/v1/logs")
	t.Setenv("SLOGOTLP_ENVIRONMENT", "ci")

	logger := slogotlp.New(
		slogotlp.WithServiceName("explicit"),
		slogotlp.WithEnv(),
		slogotlp.WithConsoleWriter(&bytes.Buffer{}),
	)
	if logger.Transport() == nil {
		t.Fatal("WithEnv did not configure a transport")
	}
	if got := logger.Transport().Endpoint(); got != "http://localhost:4318/v1/logs" {
		t.Fatalf("Endpoint() = %q", got)
	}
	if logger.ServiceName() != "explicit" || logger.Environment() != "ci" {
		t.Fatalf("service/environment = %q/%q, want explicit/ci", logger.ServiceName(), logger.Environment())
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  slogotlp.Config
		ok   bool
	}{
		{"empty endpoint", slogotlp.Config{}, true},
		{"https", slogotlp.Config{Endpoint: "https://c.example.com/v1/logs"}, true},
		{"bad scheme", slogotlp.Config{Endpoint: "grpc://c.example.com"}, false},
		{"no host", slogotlp.Config{Endpoint: "http:///v1/logs"}, false},
		{"negative retries", slogotlp.Config{MaxRetries: -1}, false},
		{"negative delay", slogotlp.Config{BaseDelay: -time.Second}, false},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: Validate() = %v, want nil", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, slogotlp.ErrInvalidConfig) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidConfig", tt.name, err)
		}
	}
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := slogotlp.LoadConfig([]byte("max_retries: -2\n")); !errors.Is(err, slogotlp.ErrInvalidConfig) {
		t.Fatalf("LoadConfig() = %v, want ErrInvalidConfig", err)
	}
	if _, err := slogotlp.LoadConfig([]byte("endpoint: [unterminated")); err == nil {
		t.Fatal("LoadConfig() accepted malformed YAML")
	}
}
