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

// Package otlpzap routes go.uber.org/zap entries into a slogotlp Logger, so
// code that already logs through zap shares the same console output,
// transport and trace.
//
//	root := slogotlp.New(slogotlp.WithEnv())
//	zl := otlpzap.New(root, zap.AddCaller())
//	defer zl.Sync() // flushes the transport
//	zl.Named("worker").Info("started", zap.Int("shards", 4))
package otlpzap

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pjscruggs/slogotlp"
	"github.com/pjscruggs/slogotlp/otlp"
)

// Core is a zapcore.Core backed by a *slogotlp.Logger. Named zap loggers
// become context paths: zap name "a.b" logs as "[a:b] msg".
type Core struct {
	logger  *slogotlp.Logger
	enabler zapcore.LevelEnabler
	fields  []zapcore.Field
}

var _ zapcore.Core = (*Core)(nil)

// NewCore returns a Core writing entries at or above enabler to logger.
func NewCore(logger *slogotlp.Logger, enabler zapcore.LevelEnabler) *Core {
	if enabler == nil {
		enabler = zapcore.DebugLevel
	}
	return &Core{logger: logger, enabler: enabler}
}

// New returns a *zap.Logger writing every level to logger.
func New(logger *slogotlp.Logger, opts ...zap.Option) *zap.Logger {
	return zap.New(NewCore(logger, zapcore.DebugLevel), opts...)
}

// Enabled reports whether lvl passes the core's level enabler.
func (c *Core) Enabled(lvl zapcore.Level) bool {
	return c.enabler.Enabled(lvl)
}

// With returns a core that adds fields to every entry.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	next := *c
	next.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &next
}

// Check adds c to ce when the entry's level is enabled.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write converts ent and its fields into a Logger call. Entries above ERROR
// (DPanic, Panic, Fatal) also flush the transport, since zap may exit next.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	logger := c.logger
	if ent.LoggerName != "" {
		logger = logger.NewContext(strings.ReplaceAll(ent.LoggerName, ".", ":"))
	}

	all := fields
	if len(c.fields) > 0 {
		all = append(append([]zapcore.Field(nil), c.fields...), fields...)
	}
	attrs, err := fieldAttrs(all)
	if ent.Caller.Defined {
		attrs = append(attrs, otlp.String("caller", ent.Caller.TrimmedPath()))
	}
	if ent.Stack != "" {
		attrs = append(attrs, otlp.String("stacktrace", ent.Stack))
	}

	level := levelFromZap(ent.Level)
	if level == slogotlp.LevelError && err != nil {
		attrs = append(attrs, slogotlp.ErrorAttrs(err)...)
	}
	logger.Log(level, ent.Message, attrs...)

	if ent.Level > zapcore.ErrorLevel {
		return c.Sync()
	}
	return nil
}

// Sync flushes the logger's transport.
func (c *Core) Sync() error {
	if err := c.logger.Flush(context.Background()); err != nil {
		return fmt.Errorf("flush log transport: %w", err)
	}
	return nil
}

// fieldAttrs encodes fields with keys sorted; namespaces become dotted
// prefixes. The first error field is also returned so ERROR entries can carry
// errorName and errorStack.
func fieldAttrs(fields []zapcore.Field) ([]otlp.Attr, error) {
	var firstErr error
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Type == zapcore.ErrorType && firstErr == nil {
			if err, ok := f.Interface.(error); ok {
				firstErr = err
			}
		}
		f.AddTo(enc)
	}
	return appendEncoded(nil, "", enc.Fields), firstErr
}

// appendEncoded flattens encoder output in key order.
func appendEncoded(dst []otlp.Attr, prefix string, m map[string]any) []otlp.Attr {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := m[k].(map[string]any); ok {
			dst = appendEncoded(dst, key, nested)
			continue
		}
		dst = append(dst, otlp.Any(key, m[k]))
	}
	return dst
}

// levelFromZap folds zap's levels into the four Logger levels.
func levelFromZap(l zapcore.Level) slogotlp.Level {
	switch {
	case l <= zapcore.DebugLevel:
		return slogotlp.LevelDebug
	case l == zapcore.InfoLevel:
		return slogotlp.LevelInfo
	case l == zapcore.WarnLevel:
		return slogotlp.LevelWarn
	default:
		return slogotlp.LevelError
	}
}
