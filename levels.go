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
	"log/slog"

	"github.com/pjscruggs/slogotlp/otlp"
)

// Level is the closed set of severities a Logger emits. It is shared with
// the otlp package so records need no conversion.
type Level = otlp.Level

// Supported levels, ordered by severity.
const (
	LevelDebug = otlp.LevelDebug
	LevelInfo  = otlp.LevelInfo
	LevelWarn  = otlp.LevelWarn
	LevelError = otlp.LevelError
)

// ParseLevel converts a case-insensitive level name ("debug", "info",
// "warn"/"warning", "error") into a Level.
func ParseLevel(s string) (Level, bool) {
	return otlp.ParseLevel(s)
}

// slogLevel maps a Level onto the matching slog.Level for console output.
func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelFromSlog folds arbitrary slog levels into the four supported ones.
// Intermediate levels round down to the nearest defined level.
func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}
