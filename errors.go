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
	"fmt"
	"strings"

	"github.com/pjscruggs/slogotlp/otlp"
)

// Attribute keys added by Logger.Error when an error value is supplied.
const (
	ErrorNameKey    = "errorName"
	ErrorMessageKey = "errorMessage"
	ErrorStackKey   = "errorStack"
)

// ErrorAttrs describes err as attributes: its Go type, its message and a
// stack trace. The stack comes from err itself when it (or an error it wraps)
// implements StackTrace() []uintptr; otherwise the caller's stack is captured.
func ErrorAttrs(err error) []otlp.Attr {
	if err == nil {
		return nil
	}
	return []otlp.Attr{
		otlp.String(ErrorNameKey, errorName(err)),
		otlp.String(ErrorMessageKey, err.Error()),
		otlp.String(ErrorStackKey, errorStack(err)),
	}
}

// errorName returns the dynamic type of err without the pointer marker, for
// example "fs.PathError" or "errors.errorString".
func errorName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// errorStack prefers the stack recorded by err over the current one.
func errorStack(err error) string {
	if stack := originStack(err); stack != "" {
		return stack
	}
	return callerStack()
}

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
