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
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/pjscruggs/slogotlp/otlp"
)

// Logger writes every record to the console and, when an endpoint is
// configured, also queues it on a shared OTLP transport.
//
// Loggers are cheap values. NewContext returns a child with a longer context
// path that shares the parent's *otlp.Transport, so a whole tree of loggers
// funnels into one queue and one root trace. Only the root's configuration
// decides whether a transport exists; children never create or close one.
//
// Call Flush (or scope work with Run) to ship queued records.
type Logger struct {
	transport   *otlp.Transport
	serviceName string
	environment string
	path        string
	attrs       []otlp.Attr
	console     *slog.Logger
}

// New returns a root Logger. Without an endpoint the logger is console-only
// and every transport operation is a no-op.
func New(opts ...Option) *Logger {
	o := buildOptions(opts)

	l := &Logger{
		serviceName: o.cfg.ServiceName,
		environment: o.cfg.Environment,
		console:     newConsole(o),
	}
	if strings.TrimSpace(o.cfg.Endpoint) != "" {
		l.transport = otlp.New(o.cfg.transportConfig(), o.transportOptions()...)
	}
	return l
}

// newConsole builds the slog text logger used for console lines.
func newConsole(o options) *slog.Logger {
	h := slog.NewTextHandler(o.consoleWriter, &slog.HandlerOptions{Level: o.consoleLevel})
	return slog.New(h).With(
		slog.String("service", o.cfg.ServiceName),
		slog.String("environment", o.cfg.Environment),
	)
}

// Debug logs msg at DEBUG. args are slog-style key/value pairs or attributes.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, otlp.Attrs(args...))
}

// Info logs msg at INFO.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, otlp.Attrs(args...))
}

// Warn logs msg at WARN.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, otlp.Attrs(args...))
}

// Error logs msg at ERROR. When err is non-nil its type, message and stack
// are added as errorName, errorMessage and errorStack.
func (l *Logger) Error(msg string, err error, args ...any) {
	attrs := otlp.Attrs(args...)
	if err != nil {
		attrs = append(attrs, ErrorAttrs(err)...)
	}
	l.log(LevelError, msg, attrs)
}

// Log logs msg at level with pre-built attributes.
func (l *Logger) Log(level Level, msg string, attrs ...otlp.Attr) {
	l.log(level, msg, attrs)
}

// log queues the record (if a transport exists) and always writes the console line.
func (l *Logger) log(level Level, msg string, attrs []otlp.Attr) {
	msg = l.formatMessage(msg)
	if len(l.attrs) > 0 {
		attrs = append(slices.Clip(l.attrs), attrs...)
	}
	if l.transport != nil {
		l.transport.Log(level, msg, attrs)
	}
	l.writeConsole(level, msg, attrs)
}

// formatMessage prefixes msg with "[path] " when the logger has a context path.
func (l *Logger) formatMessage(msg string) string {
	if l.path == "" {
		return msg
	}
	return "[" + l.path + "] " + msg
}

func (l *Logger) writeConsole(level Level, msg string, attrs []otlp.Attr) {
	ctx := context.Background()
	sl := slogLevel(level)
	if !l.console.Enabled(ctx, sl) {
		return
	}
	consoleAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		consoleAttrs[i] = slog.String(a.Key, a.Value)
	}
	l.console.LogAttrs(ctx, sl, msg, consoleAttrs...)
}

// NewContext returns a child logger whose context path is "parent:name" (or
// name at the root). The child shares the parent's transport, service name,
// environment, console and bound attributes.
func (l *Logger) NewContext(name string) *Logger {
	child := *l
	if l.path == "" {
		child.path = name
	} else {
		child.path = l.path + ":" + name
	}
	return &child
}

// With returns a copy of l that adds args to every record it logs. Bound
// attributes come before per-call attributes. The copy keeps l's context path
// and transport.
func (l *Logger) With(args ...any) *Logger {
	attrs := otlp.Attrs(args...)
	if len(attrs) == 0 {
		return l
	}
	child := *l
	child.attrs = append(slices.Clone(l.attrs), attrs...)
	return &child
}

// Flush ships queued records. It returns nil for console-only loggers. A
// non-nil error means the batch was requeued; the caller decides whether that
// matters.
func (l *Logger) Flush(ctx context.Context) error {
	if l.transport == nil {
		return nil
	}
	return l.transport.Flush(ctx)
}

// Run calls fn with a context carrying l, then flushes exactly once whether
// fn succeeds, fails or panics. A failure is logged with Error before the
// flush, and fn's error (or panic value) is passed through unchanged. Flush
// failures are reported as diagnostics only.
//
// The flush ignores cancellation of ctx so records from a cancelled scope are
// still attempted.
func (l *Logger) Run(ctx context.Context, fn func(context.Context) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scoped := ContextWithLogger(ctx, l)

	defer func() {
		if r := recover(); r != nil {
			l.Error("scoped execution panicked", panicError(r))
			l.flushScope(ctx)
			panic(r)
		}
	}()

	err = fn(scoped)
	if err != nil {
		l.Error("scoped execution failed", err)
	}
	l.flushScope(ctx)
	return err
}

// flushScope flushes after a Run scope; the transport already reports failures.
func (l *Logger) flushScope(ctx context.Context) {
	_ = l.Flush(context.WithoutCancel(ctx))
}

// ServiceName returns the service.name reported by this logger.
func (l *Logger) ServiceName() string { return l.serviceName }

// Environment returns the deployment environment reported by this logger.
func (l *Logger) Environment() string { return l.environment }

// ContextPath returns the colon-joined context names, empty at the root.
func (l *Logger) ContextPath() string { return l.path }

// Transport returns the shared transport, or nil for a console-only logger.
func (l *Logger) Transport() *otlp.Transport { return l.transport }

// TraceID returns the root trace id, or "" for a console-only logger.
func (l *Logger) TraceID() string {
	if l.transport == nil {
		return ""
	}
	return l.transport.TraceID()
}

// SpanID returns the root span id, or "" for a console-only logger.
func (l *Logger) SpanID() string {
	if l.transport == nil {
		return ""
	}
	return l.transport.SpanID()
}
