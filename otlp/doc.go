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

// Package otlp batches log records in memory and ships them to an
// OpenTelemetry collector as OTLP/JSON over HTTP.
//
// A [Transport] owns the queue, a root trace and span identifier pair fixed
// at construction, and a strictly increasing timestamp clock. Records are
// built with [Transport.Build] (or [Transport.Log]) and sent by
// [Transport.Flush], which retries failed POSTs with linear backoff and puts
// undelivered batches back at the front of the queue.
//
//	t := otlp.New(otlp.Config{
//	    Endpoint:    "https://collector.example.com/v1/logs",
//	    Headers:     map[string]string{"Authorization": "Bearer " + token},
//	    ServiceName: "checkout",
//	    Environment: "production",
//	})
//	t.Log(otlp.LevelInfo, "order placed", otlp.Attrs("order_id", id))
//	if err := t.Flush(ctx); err != nil {
//	    // records are still queued; a later Flush retries them
//	}
//
// The package only emits log records. It does not create spans, record
// metrics as OTLP signals, or persist the queue.
package otlp
