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
	"sync"

	"github.com/pjscruggs/slogotlp/otlp"
)

type contextKey int

const (
	loggerContextKey contextKey = iota
)

var (
	// diagLogger receives library diagnostics such as the fallback warning.
	diagLogger otlp.DiagLogger = otlp.DefaultDiagLogger

	fallbackWarnOnce sync.Once
)

// ContextWithLogger returns a child context that carries logger, making it
// the current logger for everything that receives the returned context.
// Concurrent scopes hold separate contexts and never see each other's logger.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the logger carried by ctx. When there is none it
// returns a fresh console-only Logger; the first such fallback in the process
// emits a single warning.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok && logger != nil {
			return logger
		}
	}
	fallbackWarnOnce.Do(func() {
		diagLogger.Printf("no logger in context, using a console-only logger; scope work with Logger.Run or ContextWithLogger")
	})
	return New()
}

// Derive returns FromContext(ctx).NewContext(name).
func Derive(ctx context.Context, name string) *Logger {
	return FromContext(ctx).NewContext(name)
}
