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

// Keys of the attributes every Record carries ahead of caller attributes.
const (
	LevelKey       = "level"
	ServiceNameKey = "service.name"
	EnvironmentKey = "environment"
	ParentIDKey    = "parent.id"
)

// Record is a wire-shaped OTLP log record. Records are built by a Transport
// and are not modified afterwards.
type Record struct {
	TimeUnixNano         int64
	ObservedTimeUnixNano int64
	SeverityNumber       int
	SeverityText         string
	Body                 string
	TraceID              string
	SpanID               string
	Attributes           []Attr
}

// Attr returns the value of the first attribute named key.
func (r Record) Attr(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Build turns level, msg and attrs into a Record correlated with the
// transport's root trace. The root record reuses the root span id and carries
// no parent; every other record gets a fresh span id and a parent.id pointing
// at the root span. Timestamps are strictly increasing per Transport.
func (t *Transport) Build(level Level, msg string, attrs []Attr, root bool) Record {
	r := t.newRecord(level, msg, attrs, root)
	t.mu.Lock()
	r.stamp(t.nextTimestampLocked())
	t.mu.Unlock()
	return r
}

// newRecord builds everything but the timestamps.
func (t *Transport) newRecord(level Level, msg string, attrs []Attr, root bool) Record {
	builtins := 3
	if !root {
		builtins++
	}
	all := make([]Attr, 0, builtins+len(attrs))
	all = append(all,
		Attr{Key: LevelKey, Value: levelAttrValue(level)},
		Attr{Key: ServiceNameKey, Value: t.serviceName},
		Attr{Key: EnvironmentKey, Value: t.environment},
	)

	spanID := t.spanHex
	if !root {
		spanID = NewSpanID().String()
		all = append(all, Attr{Key: ParentIDKey, Value: t.spanHex})
	}
	all = append(all, attrs...)

	return Record{
		SeverityNumber: level.SeverityNumber(),
		SeverityText:   level.String(),
		Body:           msg,
		TraceID:        t.traceHex,
		SpanID:         spanID,
		Attributes:     all,
	}
}

func (r *Record) stamp(ts int64) {
	r.TimeUnixNano = ts
	r.ObservedTimeUnixNano = ts
}

// nextTimestampLocked returns the wall clock in nanoseconds, bumped past the
// last assigned value when the clock has not advanced. t.mu must be held.
func (t *Transport) nextTimestampLocked() int64 {
	now := t.now().UnixNano()
	if now <= t.lastTimestamp {
		now = t.lastTimestamp + 1
	}
	t.lastTimestamp = now
	return now
}

func levelAttrValue(l Level) string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
