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
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TestAttrsCoercesValuesToStrings covers key/value pairs, slog attrs and bad keys.
func TestAttrsCoercesValuesToStrings(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	got := Attrs(
		"user", "ada",
		"count", 3,
		"ratio", 0.5,
		"ok", true,
		"err", errors.New("boom"),
		"when", ts,
		"point", point{X: 1, Y: 2},
		"tags", []string{"a", "b"},
		"meta", map[string]int{"n": 1},
		"nothing", nil,
		slog.Int64("big", 1<<40),
		slog.Group("http", slog.String("method", "GET"), slog.Int("status", 200)),
		String("direct", "yes"),
		"dangling",
	)

	want := []Attr{
		{Key: "user", Value: "ada"},
		{Key: "count", Value: "3"},
		{Key: "ratio", Value: "0.5"},
		{Key: "ok", Value: "true"},
		{Key: "err", Value: "boom"},
		{Key: "when", Value: "2025-01-02T03:04:05.000000006Z"},
		{Key: "point", Value: `{"x":1,"y":2}`},
		{Key: "tags", Value: `["a","b"]`},
		{Key: "meta", Value: `{"n":1}`},
		{Key: "nothing", Value: "null"},
		{Key: "big", Value: "1099511627776"},
		{Key: "http.method", Value: "GET"},
		{Key: "http.status", Value: "200"},
		{Key: "direct", Value: "yes"},
		{Key: badKey, Value: "dangling"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Attrs mismatch (-want +got):\n%s", diff)
	}
}

// TestAttrsEmpty returns nil for no arguments.
func TestAttrsEmpty(t *testing.T) {
	t.Parallel()

	if got := Attrs(); got != nil {
		t.Fatalf("Attrs() = %v, want nil", got)
	}
}

// TestStringifyGroupValue renders slog groups as JSON objects.
func TestStringifyGroupValue(t *testing.T) {
	t.Parallel()

	v := slog.GroupValue(slog.String("a", "1"), slog.Int("b", 2))
	if got, want := Stringify(v), `{"a":"1","b":"2"}`; got != want {
		t.Fatalf("Stringify(group) = %q, want %q", got, want)
	}
	if got, want := Stringify(3*time.Second), "3s"; got != want {
		t.Fatalf("Stringify(duration) = %q, want %q", got, want)
	}
}
