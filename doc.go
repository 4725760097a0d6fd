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

// Package slogotlp is a process-local structured logger that writes readable
// console lines and ships the same records to an OpenTelemetry collector as
// OTLP/HTTP JSON.
//
// A root [Logger] created with [New] owns an [otlp.Transport] when an endpoint
// is configured. The transport assigns one trace id to the whole process and
// gives every record a fresh span id parented to the root span, so a backend
// shows one trace per run. Records are queued in memory and shipped in a
// single batch by [Logger.Flush]. Failed batches are retried with linear
// backoff and then requeued ahead of newer records, so nothing is lost
// between flushes.
//
// Child loggers created with [Logger.NewContext] share their parent's
// transport and prefix messages with a colon-joined context path:
//
//	root := slogotlp.New(slogotlp.WithEnv(), slogotlp.WithServiceName("billing"))
//	worker := root.NewContext("worker").NewContext("invoice")
//	worker.Info("sent", "invoice_id", 42) // "[worker:invoice] sent"
//
// # Ambient loggers
//
// [Logger.Run] installs a logger as the current one for a callback and
// flushes afterwards, even when the callback fails or panics. Code deeper in
// the call stack retrieves it with [FromContext] or derives a named child
// with [Derive]. Concurrent Run scopes carry independent contexts.
//
//	err := root.Run(ctx, func(ctx context.Context) error {
//	    log := slogotlp.Derive(ctx, "sync")
//	    log.Info("starting")
//	    return syncAll(ctx)
//	})
//
// # Configuration
//
// [LoadConfig] reads an optional YAML document and SLOGOTLP_* environment
// variables; [WithEnv] applies only the environment. Without an endpoint the
// logger stays console-only and never touches the network.
//
// # Subpackages
//
//   - [github.com/pjscruggs/slogotlp/otlp] holds the batching transport and
//     the OTLP JSON envelope.
//   - [github.com/pjscruggs/slogotlp/otlphttp] provides net/http middleware
//     that scopes a request-specific child logger per request.
//   - [github.com/pjscruggs/slogotlp/otlpgrpc] provides the equivalent gRPC
//     server and client interceptors.
//   - [github.com/pjscruggs/slogotlp/healthcheck] classifies probe traffic so
//     the middleware can demote or drop its completion records.
//   - [github.com/pjscruggs/slogotlp/otlpzap] bridges go.uber.org/zap onto a
//     Logger.
package slogotlp
