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

	"github.com/pjscruggs/slogotlp/otlp"
)

// Handler adapts a Logger to slog.Handler so code written against log/slog
// feeds the same console and transport. Groups become dotted key prefixes.
type Handler struct {
	logger *Logger
	attrs  []otlp.Attr
	prefix string
}

var _ slog.Handler = (*Handler)(nil)

// Handler returns a slog.Handler backed by l.
func (l *Logger) Handler() slog.Handler {
	return &Handler{logger: l}
}

// Slog returns a *slog.Logger backed by l.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(l.Handler())
}

// Enabled reports true for every level; console filtering happens in the
// Logger and the transport keeps everything.
func (h *Handler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle converts r into a Logger call. slog levels between the defined ones
// round down.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := slices.Clip(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		attrs = otlp.AppendSlogAttr(attrs, h.prefix, a)
		return true
	})
	h.logger.log(levelFromSlog(r.Level), r.Message, attrs)
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		next.attrs = otlp.AppendSlogAttr(next.attrs, h.prefix, a)
	}
	return &next
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.prefix == "" {
		next.prefix = name
	} else {
		next.prefix = h.prefix + "." + name
	}
	return &next
}
