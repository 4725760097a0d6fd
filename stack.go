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

package slogotlp

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const (
	maxStackFrames = 64

	modulePath = "github.com/pjscruggs/slogotlp"
)

// stackTracer is implemented by errors that record the program counters of
// the place they were created.
type stackTracer interface {
	StackTrace() []uintptr
}

// originStack formats the stack recorded by err or any error it wraps, or
// returns "" when none carries one.
func originStack(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	pcs := st.StackTrace()
	if len(pcs) > maxStackFrames {
		pcs = pcs[:maxStackFrames]
	}
	return formatStack(pcs, false)
}

// callerStack formats the current goroutine's stack starting at the first
// frame outside this module's logging internals.
func callerStack() string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(1, pcs)
	return formatStack(pcs[:n], true)
}

// formatStack renders pcs the way runtime/debug prints a goroutine:
//
//	goroutine 7 [running]:
//	main.handle
//		/src/main.go:42 +0x1d
//
// With trimInternal set, leading frames matching internalFrame are dropped.
func formatStack(pcs []uintptr, trimInternal bool) string {
	if len(pcs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(goroutineHeader())
	sb.WriteByte('\n')

	frames := runtime.CallersFrames(pcs)
	leading := trimInternal
	written := 0
	for {
		f, more := frames.Next()
		if leading && internalFrame(f.Function) {
			if !more {
				break
			}
			continue
		}
		leading = false

		if f.Function != "" && f.Function != "runtime.goexit" {
			fmt.Fprintf(&sb, "%s\n\t%s:%d", f.Function, f.File, f.Line)
			if f.Entry != 0 && f.PC > f.Entry {
				fmt.Fprintf(&sb, " +0x%x", f.PC-f.Entry)
			}
			sb.WriteByte('\n')
			written++
		}
		if !more || written >= maxStackFrames {
			break
		}
	}
	return sb.String()
}

// internalFrame reports whether a frame belongs to the runtime, log/slog or
// the logging code of this module. Test functions are never internal.
func internalFrame(fn string) bool {
	switch {
	case fn == "":
		return false
	case strings.HasPrefix(fn, "runtime."), strings.HasPrefix(fn, "log/slog."):
		return true
	case strings.HasPrefix(fn, modulePath+"."), strings.HasPrefix(fn, modulePath+"/otlp."):
		return !strings.Contains(fn, ".Test")
	}
	return false
}

// goroutineHeader returns the first line runtime.Stack prints for the
// current goroutine.
func goroutineHeader() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header, _, _ := strings.Cut(string(buf[:n]), "\n")
	if header = strings.TrimSpace(header); header == "" {
		return "goroutine 0 [running]:"
	}
	return header
}
