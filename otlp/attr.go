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
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"time"
)

// badKey is used for values that arrive without a key, matching log/slog.
const badKey = "!BADKEY"

// Attr is a single record attribute. Every value is stored in string form;
// the OTLP wire model is reduced to stringValue entries.
type Attr struct {
	Key   string
	Value string
}

// String returns an Attr for a string value.
func String(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Any returns an Attr whose value is coerced with Stringify.
func Any(key string, value any) Attr {
	return Attr{Key: key, Value: Stringify(value)}
}

// Attrs converts slog-style arguments into ordered attributes. Arguments may
// be Attr or slog.Attr values, or alternating string keys and values. A
// trailing value without a key is stored under "!BADKEY".
func Attrs(args ...any) []Attr {
	if len(args) == 0 {
		return nil
	}
	out := make([]Attr, 0, len(args))
	for len(args) > 0 {
		switch x := args[0].(type) {
		case Attr:
			out = append(out, x)
			args = args[1:]
		case slog.Attr:
			out = AppendSlogAttr(out, "", x)
			args = args[1:]
		case string:
			if len(args) == 1 {
				out = append(out, Attr{Key: badKey, Value: x})
				args = nil
				continue
			}
			out = append(out, Attr{Key: x, Value: Stringify(args[1])})
			args = args[2:]
		default:
			out = append(out, Attr{Key: badKey, Value: Stringify(x)})
			args = args[1:]
		}
	}
	return out
}

// AppendSlogAttr appends a to dst, flattening groups into dotted keys under
// prefix. Empty attributes are skipped, as slog handlers do.
func AppendSlogAttr(dst []Attr, prefix string, a slog.Attr) []Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = joinKey(prefix, a.Key)
		}
		for _, member := range a.Value.Group() {
			dst = AppendSlogAttr(dst, groupPrefix, member)
		}
		return dst
	}
	return append(dst, Attr{Key: joinKey(prefix, a.Key), Value: slogValueString(a.Value)})
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Stringify coerces v to the string stored on the wire. Strings pass through,
// errors and fmt.Stringers use their own text, composite values (maps,
// slices, structs) are JSON encoded and everything else uses fmt.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case slog.Value:
		return slogValueString(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// slogValueString renders a resolved slog.Value.
func slogValueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		return Stringify(v.Any())
	case slog.KindGroup:
		obj := make(map[string]string, len(v.Group()))
		for _, member := range AppendSlogAttr(nil, "", slog.Attr{Key: "", Value: v}) {
			obj[member.Key] = member.Value
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return v.String()
		}
		return string(b)
	default:
		return v.String()
	}
}
