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

// Package otlpgrpc scopes a slogotlp logger to each gRPC call.
//
// Server interceptors derive a child logger per RPC, bind rpc.* attributes
// and install it in the handler context; client interceptors inject W3C trace
// context into outgoing metadata. [ServerOptions] and [DialOptions] bundle the
// interceptors with otelgrpc stats handlers:
//
//	root := slogotlp.New(slogotlp.WithEnv())
//	srv := grpc.NewServer(otlpgrpc.ServerOptions(otlpgrpc.WithLogger(root))...)
//
// Inside a handler:
//
//	func (s *server) Get(ctx context.Context, req *pb.GetRequest) (*pb.Item, error) {
//	    slogotlp.FromContext(ctx).Info("loading item", "id", req.GetId())
//	    ...
//	}
package otlpgrpc
