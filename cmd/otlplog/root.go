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

package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pjscruggs/slogotlp"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath  string
	endpoint    string
	service     string
	environment string
	headers     map[string]string
	gzip        bool
	maxRetries  int
	baseDelay   time.Duration
	quiet       bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "otlplog",
		Short: "Ship log lines to an OpenTelemetry collector",
		Long: `otlplog sends log records to an OTLP/HTTP logs endpoint as JSON.

Configuration is read from an optional YAML file (--config), then SLOGOTLP_*
environment variables, then flags. Without an endpoint records are only
written to stderr.`,
		Version:       slogotlp.GetVersion(),
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&flags.endpoint, "endpoint", "", "OTLP/HTTP logs URL, e.g. http://localhost:4318/v1/logs")
	pf.StringVar(&flags.service, "service", "", "service.name resource attribute")
	pf.StringVar(&flags.environment, "environment", "", "deployment.environment resource attribute")
	pf.StringToStringVar(&flags.headers, "header", nil, "extra request header as key=value (repeatable)")
	pf.BoolVar(&flags.gzip, "gzip", false, "gzip request bodies")
	pf.IntVar(&flags.maxRetries, "max-retries", 0, "retries after the first failed export")
	pf.DurationVar(&flags.baseDelay, "base-delay", 0, "linear backoff unit between retries")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "do not echo records to stderr")

	cmd.AddCommand(newSendCmd(flags), newRunCmd(flags))
	return cmd
}

// loadConfig merges the config file, environment and explicitly set flags.
func (f *rootFlags) loadConfig(cmd *cobra.Command) (slogotlp.Config, error) {
	var raw []byte
	if f.configPath != "" {
		b, err := os.ReadFile(f.configPath)
		if err != nil {
			return slogotlp.Config{}, fmt.Errorf("read config: %w", err)
		}
		raw = b
	}
	cfg, err := slogotlp.LoadConfig(raw)
	if err != nil {
		return slogotlp.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("endpoint") {
		cfg.Endpoint = f.endpoint
	}
	if changed("service") {
		cfg.ServiceName = f.service
	}
	if changed("environment") {
		cfg.Environment = f.environment
	}
	if changed("header") {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.headers))
		}
		maps.Copy(cfg.Headers, f.headers)
	}
	if changed("gzip") {
		cfg.Gzip = f.gzip
	}
	if changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if changed("base-delay") {
		cfg.BaseDelay = f.baseDelay
	}
	if err := cfg.Validate(); err != nil {
		return slogotlp.Config{}, err
	}
	return cfg, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newLogger builds the root logger for a subcommand.
func (f *rootFlags) newLogger(cmd *cobra.Command) (*slogotlp.Logger, error) {
	cfg, err := f.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := []slogotlp.Option{
		slogotlp.WithConfig(cfg),
		slogotlp.WithConsoleWriter(cmd.ErrOrStderr()),
	}
	if f.quiet {
		opts = append(opts, slogotlp.WithConsoleWriter(nil))
	}
	return slogotlp.New(opts...), nil
}
