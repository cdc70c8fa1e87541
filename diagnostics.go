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

package navigator

// DiagnosticEvent represents a router diagnostic or anomaly: an
// informational event that may indicate a misconfiguration but never
// changes navigation behavior. The router functions identically whether
// diagnostics are collected or not.
type DiagnosticEvent struct {
	Kind    DiagnosticKind
	Message string
	Fields  map[string]any
}

// DiagnosticKind categorizes diagnostic events.
type DiagnosticKind string

const (
	// DiagRouteRegistered fires once per route added to the tree.
	DiagRouteRegistered DiagnosticKind = "route_registered"
	// DiagHighParamCount fires when a route declares an unusually large
	// number of parameters, often a sign of an over-broad pattern.
	DiagHighParamCount DiagnosticKind = "route_param_count_high"
	// DiagPluginLimitNear fires when the plugin registry crosses 90% of
	// its configured Limits.MaxPlugins.
	DiagPluginLimitNear DiagnosticKind = "plugin_limit_near"
	// DiagPopstateCollapsed names the event of a queued popstate being
	// discarded in favor of a newer one during an in-flight transition.
	// No code in this module emits it: browser.Plugin collapses deferred
	// popstate events without reporting a diagnostic.
	DiagPopstateCollapsed DiagnosticKind = "popstate_collapsed"
	// DiagForwardCycle fires when a forwardTo chain is truncated for
	// exceeding the maximum forwarding depth.
	DiagForwardCycle DiagnosticKind = "forward_cycle_detected"
)

// DiagnosticHandler receives diagnostic events from the router.
// Implementations may log, emit metrics, trace events, or ignore them.
// This interface is optional; if not provided, diagnostics are silently
// dropped.
type DiagnosticHandler interface {
	OnDiagnostic(DiagnosticEvent)
}

// DiagnosticHandlerFunc is a function adapter for DiagnosticHandler.
type DiagnosticHandlerFunc func(DiagnosticEvent)

func (f DiagnosticHandlerFunc) OnDiagnostic(e DiagnosticEvent) { f(e) }

func (c *config) emitDiagnostic(e DiagnosticEvent) {
	if c.diagnostics != nil {
		c.diagnostics.OnDiagnostic(e)
	}
}
