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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ErrDeliveryAbandoned reports that a batch could not be delivered within the
// retry budget and was returned to the front of the queue.
var ErrDeliveryAbandoned = errors.New("otlp: delivery abandoned")

// StatusError is returned for a non-2xx export response.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("collector responded %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Transport batches Records in memory and exports them as OTLP/JSON.
//
// One Transport serves a whole logging tree: every Logger derived from a root
// shares the same *Transport, so all records join one queue and one root
// trace. Enqueue is safe for concurrent use. Flush calls are serialized.
type Transport struct {
	endpoint    string
	headers     http.Header
	serviceName string
	environment string

	traceID  trace.TraceID
	spanID   trace.SpanID
	traceHex string
	spanHex  string

	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	gzip       bool
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
	diag       DiagLogger
	metrics    *metrics

	mu            sync.Mutex
	queue         []Record
	lastTimestamp int64

	flushMu sync.Mutex
}

// New returns a Transport for cfg with freshly generated root trace and span
// identifiers.
func New(cfg Config, opts ...Option) *Transport {
	o := buildOptions(opts)

	headers := make(http.Header, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	if headers.Get("User-Agent") == "" && o.userAgent != "" {
		headers.Set("User-Agent", o.userAgent)
	}
	headers.Set("Content-Type", ContentType)

	t := &Transport{
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		headers:     headers,
		serviceName: cfg.ServiceName,
		environment: cfg.Environment,
		traceID:     NewTraceID(),
		spanID:      NewSpanID(),
		client:      o.client,
		maxRetries:  o.maxRetries,
		baseDelay:   o.baseDelay,
		gzip:        o.gzip,
		now:         o.clock,
		sleep:       sleepContext,
		diag:        o.diag,
		metrics:     newMetrics(o.registerer),
	}
	t.traceHex = t.traceID.String()
	t.spanHex = t.spanID.String()

	if o.rootSpanRecord {
		t.enqueueStamped(t.newRecord(LevelInfo, "root span started", nil, true))
	}
	return t
}

// Endpoint returns the configured collector URL, empty when delivery is off.
func (t *Transport) Endpoint() string { return t.endpoint }

// TraceID returns the root trace identifier as 32 lowercase hex characters.
func (t *Transport) TraceID() string { return t.traceHex }

// SpanID returns the root span identifier as 16 lowercase hex characters.
func (t *Transport) SpanID() string { return t.spanHex }

// SpanContext returns the root identifiers as an OpenTelemetry span context.
func (t *Transport) SpanContext() trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: t.traceID,
		SpanID:  t.spanID,
	})
}

// Enqueue appends r to the in-memory queue. It never blocks on I/O and never
// fails; the queue is unbounded.
func (t *Transport) Enqueue(r Record) {
	t.mu.Lock()
	t.queue = append(t.queue, r)
	n := len(t.queue)
	t.mu.Unlock()
	t.metrics.recordEnqueue(n)
}

// Log builds a non-root record and enqueues it. The timestamp is assigned
// under the queue lock, so queue order always matches timestamp order.
func (t *Transport) Log(level Level, msg string, attrs []Attr) {
	t.enqueueStamped(t.newRecord(level, msg, attrs, false))
}

// enqueueStamped stamps r and queues it in one critical section.
func (t *Transport) enqueueStamped(r Record) {
	t.mu.Lock()
	r.stamp(t.nextTimestampLocked())
	t.queue = append(t.queue, r)
	n := len(t.queue)
	t.mu.Unlock()
	t.metrics.recordEnqueue(n)
}

// Len returns the number of queued records.
func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Pending returns a copy of the queued records in export order.
func (t *Transport) Pending() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.queue))
	copy(out, t.queue)
	return out
}

// Flush exports everything queued at the time of the call.
//
// The queue is swapped out first, so records enqueued while the export is in
// flight wait for the next Flush. With no endpoint the batch is dropped after
// a diagnostic. Failed POSTs (transport errors or non-2xx responses) are
// retried up to the retry budget with linear backoff; once the budget is
// spent, or ctx ends during a backoff, the batch goes back to the front of the
// queue and an error wrapping ErrDeliveryAbandoned is returned.
func (t *Transport) Flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	batch := t.swap()
	if len(batch) == 0 {
		return nil
	}

	if t.endpoint == "" {
		t.diag.Printf("no OTLP endpoint configured, discarding %d log records", len(batch))
		t.metrics.recordDelivered(0, t.Len())
		return nil
	}

	body, err := encodeBody(NewExportRequest(t.serviceName, t.environment, batch), t.gzip)
	if err != nil {
		t.requeue(batch)
		return fmt.Errorf("encode %d log records: %w", len(batch), err)
	}

	if err := t.deliver(ctx, body); err != nil {
		t.requeue(batch)
		t.metrics.recordRequeued(len(batch), t.Len())
		t.diag.Printf("failed to export %d log records, requeued: %v", len(batch), err)
		return err
	}

	t.metrics.recordDelivered(len(batch), t.Len())
	return nil
}

// deliver runs the retry loop: one attempt, then up to maxRetries retries
// waiting baseDelay*retry before each.
func (t *Transport) deliver(ctx context.Context, body []byte) error {
	for retry := 0; ; {
		err := t.post(ctx, body)
		t.metrics.recordAttempt(err == nil)
		if err == nil {
			return nil
		}

		retry++
		if retry > t.maxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryAbandoned, retry, err)
		}
		if waitErr := t.sleep(ctx, t.baseDelay*time.Duration(retry)); waitErr != nil {
			return fmt.Errorf("%w: %w (last failure: %v)", ErrDeliveryAbandoned, waitErr, err)
		}
	}
}

// post issues a single export request.
func (t *Transport) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	req.Header = t.headers.Clone()
	if t.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post export request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if ps, ok := parsePartialSuccess(respBody); ok && (ps.RejectedLogRecords > 0 || ps.ErrorMessage != "") {
		t.diag.Printf("collector rejected %d log records: %s", ps.RejectedLogRecords, ps.ErrorMessage)
	}
	return nil
}

// swap detaches the live queue and leaves an empty one in its place.
func (t *Transport) swap() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	batch := t.queue
	t.queue = nil
	return batch
}

// requeue puts batch back ahead of anything enqueued since the swap.
func (t *Transport) requeue(batch []Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	merged := make([]Record, 0, len(batch)+len(t.queue))
	merged = append(merged, batch...)
	merged = append(merged, t.queue...)
	t.queue = merged
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
