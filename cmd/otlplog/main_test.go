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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/otlp"
)

// collector records every export request it receives.
type collector struct {
	srv    *httptest.Server
	status int

	mu       sync.Mutex
	requests []otlp.ExportRequest
}

func newCollector(t *testing.T, status int) *collector {
	t.Helper()
	c := &collector{status: status}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req otlp.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.requests = append(c.requests, req)
		c.mu.Unlock()
		w.WriteHeader(c.status)
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *collector) url() string { return c.srv.URL + "/v1/logs" }

func (c *collector) records() []otlp.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []otlp.LogRecord
	for _, req := range c.requests {
		for _, rl := range req.ResourceLogs {
			for _, sl := range rl.ScopeLogs {
				out = append(out, sl.LogRecords...)
			}
		}
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func attr(r otlp.LogRecord, key string) string {
	for _, kv := range r.Attributes {
		if kv.Key == key {
			return kv.Value.StringValue
		}
	}
	return ""
}

// execute runs the CLI with args and stdin, discarding console output.
func execute(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestSendSingleMessage(t *testing.T) {
	t.Parallel()

	c := newCollector(t, http.StatusOK)
	err := execute(t, "", "send", "-q",
		"--endpoint", c.url(),
		"--service", "cli",
		"--environment", "ci",
		"--level", "warn",
		"--attr", "host=db-1",
		"disk", "almost", "full")
	if err != nil {
		t.Fatalf("send returned %v", err)
	}

	records := c.records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.Body.StringValue != "disk almost full" || r.SeverityText != "WARN" {
		t.Fatalf("record = %q/%s, want %q/WARN", r.Body.StringValue, r.SeverityText, "disk almost full")
	}
	if got := attr(r, "host"); got != "db-1" {
		t.Fatalf("host attribute = %q", got)
	}
	if got := attr(r, "service.name"); got != "cli" {
		t.Fatalf("service.name = %q", got)
	}
}

func TestSendStdinLines(t *testing.T) {
	t.Parallel()

	c := newCollector(t, http.StatusOK)
	if err := execute(t, "first\n\n  \nsecond\r\n", "send", "-q", "--endpoint", c.url(), "--context", "tail", "-"); err != nil {
		t.Fatalf("send returned %v", err)
	}
	if got := c.count(); got != 1 {
		t.Fatalf("export requests = %d, want 1 batch", got)
	}
	var bodies []string
	for _, r := range c.records() {
		bodies = append(bodies, r.Body.StringValue)
	}
	if diff := cmp.Diff([]string{"[tail] first", "[tail] second"}, bodies); diff != "" {
		t.Fatalf("bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestSendFailsWhenCollectorRejects(t *testing.T) {
	t.Parallel()

	c := newCollector(t, http.StatusInternalServerError)
	err := execute(t, "", "send", "-q", "--endpoint", c.url(), "--max-retries", "0", "boom")
	if !errors.Is(err, otlp.ErrDeliveryAbandoned) {
		t.Fatalf("send returned %v, want ErrDeliveryAbandoned", err)
	}
	if got := c.count(); got != 1 {
		t.Fatalf("export attempts = %d, want 1", got)
	}
}

func TestSendRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if err := execute(t, "", "send", "-q", "--level", "loud", "x"); err == nil {
		t.Fatal("send accepted an unknown level")
	}
}

func TestSendWithoutEndpointIsConsoleOnly(t *testing.T) {
	t.Parallel()

	if err := execute(t, "", "send", "-q", "hello"); err != nil {
		t.Fatalf("console-only send returned %v", err)
	}
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	t.Parallel()

	c := newCollector(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "otlplog.yaml")
	yaml := "endpoint: " + c.url() + "\nservice_name: from-file\nenvironment: staging\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := execute(t, "", "send", "-q", "--config", path, "--service", "from-flag", "hi"); err != nil {
		t.Fatalf("send returned %v", err)
	}
	records := c.records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	got := map[string]string{
		"service.name": attr(records[0], "service.name"),
		"environment":  attr(records[0], "environment"),
	}
	want := map[string]string{"service.name": "from-flag", "environment": "staging"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resource mismatch (-want +got):\n%s", diff)
	}
}

func TestRunShipsOutputAndExitStatus(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	c := newCollector(t, http.StatusOK)
	err := execute(t, "", "run", "-q", "--endpoint", c.url(), "--", "sh", "-c", "echo out; echo err 1>&2; exit 3")

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("run returned %v, want exit status 3", err)
	}
	if got := c.count(); got != 1 {
		t.Fatalf("export requests = %d, want 1", got)
	}

	type line struct{ Body, Severity, Stream string }
	var got []line
	for _, r := range c.records() {
		got = append(got, line{r.Body.StringValue, r.SeverityText, attr(r, "stream")})
	}
	want := []line{
		{"[sh] out", "INFO", "stdout"},
		{"[sh] err", "WARN", "stderr"},
		{"[sh] scoped execution failed", "ERROR", ""},
	}
	sortLines := cmpopts.SortSlices(func(a, b line) bool { return a.Body < b.Body })
	if diff := cmp.Diff(want, got, sortLines); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"send", "run"} {
		if !names[want] {
			t.Errorf("subcommand %q missing", want)
		}
	}
	for _, flag := range []string{"config", "endpoint", "service", "environment", "header", "gzip", "max-retries", "base-delay"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

// queueLogger keeps records queued so tests can inspect them.
func queueLogger() *slogotlp.Logger {
	return slogotlp.New(
		slogotlp.WithEndpoint("http://127.0.0.1:1/v1/logs"),
		slogotlp.WithConsoleWriter(nil),
		slogotlp.WithTransportOptions(otlp.WithRetry(0, 0), otlp.WithDiagnostics(nil)),
	)
}

func TestSendLinesTruncatesLongLines(t *testing.T) {
	t.Parallel()

	logger := queueLogger()
	input := strings.Repeat("a", maxLineBytes+4096) + "\nnext\n"
	n, err := sendLines(logger, slogotlp.LevelInfo, strings.NewReader(input))
	if err != nil || n != 2 {
		t.Fatalf("sendLines = %d, %v; want 2, nil", n, err)
	}

	pending := logger.Transport().Pending()
	if got := len(pending[0].Body); got != maxLineBytes {
		t.Fatalf("long line body length = %d, want %d", got, maxLineBytes)
	}
	if v, _ := pending[0].Attr("truncated"); v != "true" {
		t.Fatalf("truncated attribute = %q, want true", v)
	}
	if pending[1].Body != "next" {
		t.Fatalf("second body = %q, want next", pending[1].Body)
	}
	if _, ok := pending[1].Attr("truncated"); ok {
		t.Fatal("short line marked truncated")
	}
}

func TestSendLinesReportsReadError(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken pipe")
	logger := queueLogger()
	r := io.MultiReader(strings.NewReader("first\n"), iotest.ErrReader(errBroken))
	n, err := sendLines(logger, slogotlp.LevelInfo, r)
	if !errors.Is(err, errBroken) || n != 1 {
		t.Fatalf("sendLines = %d, %v; want 1, %v", n, err, errBroken)
	}
}

// TestRunSurvivesOversizedOutputLine writes a line past the record limit and
// then more than a pipe buffer of short lines; run must finish and ship all
// of them.
func TestRunSurvivesOversizedOutputLine(t *testing.T) {
	t.Parallel()

	for _, tool := range []string{"sh", "head", "tr", "seq"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}

	c := newCollector(t, http.StatusOK)
	script := `head -c 2000000 /dev/zero | tr "\0" a; echo; seq 1 20000`
	done := make(chan error, 1)
	go func() {
		done <- execute(t, "", "run", "-q", "--endpoint", c.url(), "--context", "gen", "--", "sh", "-c", script)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("run did not finish")
	}

	records := c.records()
	var truncated, numbered int
	for _, r := range records {
		switch {
		case attr(r, "truncated") == "true":
			truncated++
		case attr(r, "stream") == "stdout":
			numbered++
		}
	}
	if truncated != 1 || numbered != 20000 {
		t.Fatalf("truncated=%d numbered=%d, want 1 and 20000", truncated, numbered)
	}
}
