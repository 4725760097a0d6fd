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

import "strings"

// Level is the closed set of severities a Record can carry.
type Level int

const (
	// LevelDebug maps to OTLP SEVERITY_NUMBER_DEBUG (5).
	LevelDebug Level = iota
	// LevelInfo maps to OTLP SEVERITY_NUMBER_INFO (9).
	LevelInfo
	// LevelWarn maps to OTLP SEVERITY_NUMBER_WARN (13).
	LevelWarn
	// LevelError maps to OTLP SEVERITY_NUMBER_ERROR (17).
	LevelError
)

// SeverityNumber returns the OTLP severity number for l. Values outside the
// defined set report INFO.
func (l Level) SeverityNumber() int {
	switch l {
	case LevelDebug:
		return 5
	case LevelInfo:
		return 9
	case LevelWarn:
		return 13
	case LevelError:
		return 17
	default:
		return 9
	}
}

// String returns the OTLP severity text ("DEBUG", "INFO", "WARN", "ERROR").
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel converts a case-insensitive level name into a Level. It accepts
// "warning" as an alias for WARN.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}
