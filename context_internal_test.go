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
	"fmt"
	"sync"
	"testing"
)

type countingDiag struct {
	mu    sync.Mutex
	lines []string
}

func (d *countingDiag) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// TestFromContextWarnsOnce swaps package state and must not run in parallel.
func TestFromContextWarnsOnce(t *testing.T) {
	origDiag := diagLogger
	diag := &countingDiag{}
	diagLogger = diag
	fallbackWarnOnce = sync.Once{}
	t.Cleanup(func() {
		diagLogger = origDiag
	})

	for range 5 {
		_ = FromContext(context.Background())
	}
	//nolint:staticcheck // nil context is part of the contract
	_ = FromContext(nil)

	diag.mu.Lock()
	defer diag.mu.Unlock()
	if len(diag.lines) != 1 {
		t.Fatalf("fallback warnings = %d, want 1: %q", len(diag.lines), diag.lines)
	}
}
