// Copyright 2025 The Rivaas Authors
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

// Package navigator provides a client-side URL router for single-page
// applications: a named route tree, an async transition pipeline with
// activation/deactivation guards and middleware, a plugin registry, and a
// browser plugin that bridges navigation state to pushState/popstate.
//
// # Key Features
//
//   - Named, nested routes with dot-qualified flat names and absolute
//     ("~") segments
//   - Path parameters, splats, optional params, and inline regex constraints
//   - A four-phase transition pipeline (can-deactivate, can-activate,
//     middleware, commit) with cancellation and redirect support
//   - A plugin/middleware registry with atomic batch registration
//   - A browser plugin that keeps the URL bar and history in sync
//   - OpenTelemetry tracing and metrics integration
//
// # Constructor Pattern
//
// New returns (*Router, error): unlike a server router, where construction
// never touches the network, navigator's New validates the supplied route
// tree immediately (duplicate siblings, dangling dot-qualified parents,
// absolute paths under parameterized segments) unless WithoutValidation is
// given, so a malformed route table is rejected at startup instead of
// surfacing later as a confusing ROUTE_NOT_FOUND. MustNew panics instead of
// returning an error, for callers building a static route table where a
// validation failure is a programmer error.
//
// # Quick Start
//
//	r := navigator.MustNew([]route.RouteDefinition{
//	    {Name: "home", Path: "/"},
//	    {Name: "users", Path: "/users", Children: []route.RouteDefinition{
//	        {Name: "view", Path: "/:id"},
//	    }},
//	})
//
//	r.Navigation().Navigate(ctx, "users.view", map[string]string{"id": "42"}, nil)
//
// # Observability
//
// OpenTelemetry integration for metrics and tracing:
//
//	rec, _ := navigator.NewPrometheusObservability(registry)
//	r := navigator.MustNew(routes, navigator.WithObservability(rec))
package navigator
