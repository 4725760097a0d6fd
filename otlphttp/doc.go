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

// Package otlphttp scopes a slogotlp logger to each HTTP request.
//
// [Middleware] derives a child of the base logger for every inbound request,
// binds request attributes (method, target, route, request id, trace ids)
// and installs it in the request context:
//
//	root := slogotlp.New(slogotlp.WithEnv())
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
//	    slogotlp.FromContext(r.Context()).Info("loading user")
//	})
//	handler := otlphttp.Middleware(otlphttp.WithLogger(root))(mux)
//
// [Transport] is the client-side counterpart: it injects W3C trace context
// and the current request id into outbound calls.
package otlphttp
