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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// ExportRequest mirrors the OTLP/JSON ExportLogsServiceRequest message,
// reduced to the fields this package emits.
type ExportRequest struct {
	ResourceLogs []ResourceLogs `json:"resourceLogs"`
}

// ResourceLogs groups the log records of one resource.
type ResourceLogs struct {
	Resource  Resource    `json:"resource"`
	ScopeLogs []ScopeLogs `json:"scopeLogs"`
}

// Resource describes the emitting service.
type Resource struct {
	Attributes []KeyValue `json:"attributes"`
}

// ScopeLogs holds the records of one instrumentation scope.
type ScopeLogs struct {
	LogRecords []LogRecord `json:"logRecords"`
}

// KeyValue is an OTLP attribute restricted to string values.
type KeyValue struct {
	Key   string   `json:"key"`
	Value AnyValue `json:"value"`
}

// AnyValue is an OTLP AnyValue restricted to stringValue.
type AnyValue struct {
	StringValue string `json:"stringValue"`
}

// LogRecord is the OTLP/JSON form of a Record. Nanosecond timestamps are
// decimal strings so 64-bit values survive JSON number precision.
type LogRecord struct {
	TimeUnixNano         string     `json:"timeUnixNano"`
	ObservedTimeUnixNano string     `json:"observedTimeUnixNano"`
	SeverityNumber       int        `json:"severityNumber"`
	SeverityText         string     `json:"severityText"`
	Body                 AnyValue   `json:"body"`
	TraceID              string     `json:"traceId,omitempty"`
	SpanID               string     `json:"spanId,omitempty"`
	Attributes           []KeyValue `json:"attributes"`
}

// NewExportRequest wraps records in the OTLP envelope for one resource
// identified by serviceName and environment.
func NewExportRequest(serviceName, environment string, records []Record) ExportRequest {
	logRecords := make([]LogRecord, 0, len(records))
	for _, r := range records {
		logRecords = append(logRecords, LogRecord{
			TimeUnixNano:         strconv.FormatInt(r.TimeUnixNano, 10),
			ObservedTimeUnixNano: strconv.FormatInt(r.ObservedTimeUnixNano, 10),
			SeverityNumber:       r.SeverityNumber,
			SeverityText:         r.SeverityText,
			Body:                 AnyValue{StringValue: r.Body},
			TraceID:              r.TraceID,
			SpanID:               r.SpanID,
			Attributes:           keyValues(r.Attributes),
		})
	}
	return ExportRequest{
		ResourceLogs: []ResourceLogs{{
			Resource: Resource{Attributes: []KeyValue{
				{Key: "service.name", Value: AnyValue{StringValue: serviceName}},
				{Key: "deployment.environment", Value: AnyValue{StringValue: environment}},
			}},
			ScopeLogs: []ScopeLogs{{LogRecords: logRecords}},
		}},
	}
}

func keyValues(attrs []Attr) []KeyValue {
	kvs := make([]KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = KeyValue{Key: a.Key, Value: AnyValue{StringValue: a.Value}}
	}
	return kvs
}

// encodeBody marshals req and optionally gzips the result.
func encodeBody(req ExportRequest, compress bool) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal export request: %w", err)
	}
	if !compress {
		return raw, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip export request: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}
