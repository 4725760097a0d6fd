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
	crand "crypto/rand"
	"encoding/hex"
	"math/rand/v2"

	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDLength is the hex length of a trace identifier (16 bytes).
	TraceIDLength = 32
	// SpanIDLength is the hex length of a span identifier (8 bytes).
	SpanIDLength = 16
)

// randRead fills b from the strongest available source. It is a variable so
// tests can simulate a missing crypto source.
var randRead = crand.Read

// GenerateID returns a lowercase hex string of exactly length characters
// drawn from ceil(length/2) random bytes. crypto/rand is used when it works;
// math/rand/v2 is only a fallback for constrained runtimes.
func GenerateID(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, (length+1)/2)
	fillRandom(buf)
	return hex.EncodeToString(buf)[:length]
}

// fillRandom fills b, falling back to the weaker generator on failure.
func fillRandom(b []byte) {
	if _, err := randRead(b); err == nil {
		return
	}
	for i := range b {
		b[i] = byte(rand.Uint32())
	}
}

// NewTraceID returns a random, valid OpenTelemetry trace identifier.
func NewTraceID() trace.TraceID {
	var id trace.TraceID
	for !id.IsValid() {
		fillRandom(id[:])
	}
	return id
}

// NewSpanID returns a random, valid OpenTelemetry span identifier.
func NewSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		fillRandom(id[:])
	}
	return id
}
