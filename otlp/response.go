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
	"bytes"
	"strconv"

	"github.com/valyala/fastjson"
)

// partialSuccess is the optional body of a successful OTLP export response.
type partialSuccess struct {
	RejectedLogRecords int64
	ErrorMessage       string
}

// parsePartialSuccess extracts partialSuccess from an OTLP/JSON response body.
// Collectors encode rejectedLogRecords either as a number or, following the
// protobuf JSON mapping for int64, as a decimal string.
func parsePartialSuccess(body []byte) (partialSuccess, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return partialSuccess{}, false
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return partialSuccess{}, false
	}
	ps := v.Get("partialSuccess")
	if ps == nil || ps.Type() != fastjson.TypeObject {
		return partialSuccess{}, false
	}

	out := partialSuccess{ErrorMessage: string(ps.GetStringBytes("errorMessage"))}
	if rejected := ps.Get("rejectedLogRecords"); rejected != nil {
		switch rejected.Type() {
		case fastjson.TypeNumber:
			out.RejectedLogRecords, _ = rejected.Int64()
		case fastjson.TypeString:
			raw, _ := rejected.StringBytes()
			out.RejectedLogRecords, _ = strconv.ParseInt(string(raw), 10, 64)
		}
	}
	return out, true
}
