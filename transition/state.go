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

// Package transition implements the State Model and the transition
// pipeline: diffing two navigation states into an activation path, and
// running that path through can-deactivate, can-activate, middleware, and
// commit phases.
package transition

import (
	"strings"

	"rivaas.dev/navigator/route"
)

// Meta carries the per-parameter origin (URL path vs. query string) for
// every dot-qualified segment active in a State, plus arbitrary navigation
// options the caller passed in (e.g. "reload", "replace", "force").
type Meta struct {
	Params  map[string]map[string]route.ParamOrigin
	Options map[string]any
	// Redirected marks a state reached via a middleware-issued redirect
	// rather than the originally requested target (spec §4.5).
	Redirected bool
}

// State is an immutable snapshot of "where the application is": the
// activated route name, its captured parameters, the path it was reached
// from, and metadata about where each parameter came from (spec §3 State).
type State struct {
	Name   string
	Params map[string]string
	Path   string
	Meta   Meta
}

// WithMeta returns a copy of s with Meta replaced.
func (s State) WithMeta(m Meta) State {
	s.Meta = m
	return s
}

// Option returns a navigation option flag carried in Meta.Options (e.g.
// "reload"), defaulting to false/nil if unset.
func (s State) Option(key string) any {
	if s.Meta.Options == nil {
		return nil
	}
	return s.Meta.Options[key]
}

// Reload reports whether this navigation was explicitly requested as a
// full reload (every active segment deactivates and reactivates,
// regardless of name/param overlap with the previous state).
func (s State) Reload() bool {
	v, _ := s.Option("reload").(bool)
	return v
}

// Redirected reports whether this state was reached via a middleware
// redirect rather than the originally requested navigation target.
func (s State) Redirected() bool {
	return s.Meta.Redirected
}

// Path describes the activation/deactivation chain between two states,
// the direct input to the transition pipeline's phases.
type Path struct {
	// Intersection is the dot-qualified name of the deepest segment common
	// to both states that did not change (empty if there is none).
	Intersection string
	// ToDeactivate lists segment names to run can-deactivate on, ordered
	// leaf-to-root (the deepest previously-active segment first).
	ToDeactivate []string
	// ToActivate lists segment names to run can-activate on, ordered
	// root-to-leaf (the shallowest newly-active segment first).
	ToActivate []string
}

// Diff computes the transition Path between fromState and toState (spec
// §4.4):
//
//  1. If fromState is nil, every segment of toState's chain activates and
//     nothing deactivates.
//  2. If toState requests a reload, every segment of fromState's chain
//     deactivates and every segment of toState's chain activates: no
//     intersection is assumed even where names and params agree.
//  3. Otherwise, names are compared depth-by-depth. The intersection stops
//     at the first depth where either the segment name differs, or the
//     segment name agrees but its own declared parameters differ in value.
//  4. Segments beyond the intersection in fromState deactivate
//     (leaf-to-root); segments beyond the intersection in toState activate
//     (root-to-leaf).
//  5. If both states resolve to the exact same name and the same params,
//     and neither requests a reload, the intersection is the full chain and
//     both activate/deactivate lists are empty (a same-state navigation is
//     a no-op transition, per spec's idempotent-navigate edge case).
func Diff(toState *State, fromState *State, tree *route.Tree) Path {
	toChain := chainNames(toState.Name)

	if fromState == nil {
		return Path{ToActivate: toChain}
	}

	if toState.Reload() {
		fromChain := chainNames(fromState.Name)
		return Path{ToDeactivate: reversed(fromChain), ToActivate: toChain}
	}

	fromChain := chainNames(fromState.Name)

	common := 0
	for common < len(toChain) && common < len(fromChain) {
		if toChain[common] != fromChain[common] {
			break
		}
		if !sameOwnParams(toChain[common], toState, fromState, tree) {
			break
		}
		common++
	}

	intersection := ""
	if common > 0 {
		intersection = toChain[common-1]
	}

	return Path{
		Intersection: intersection,
		ToDeactivate: reversed(fromChain[common:]),
		ToActivate:   toChain[common:],
	}
}

// sameOwnParams reports whether the parameters declared directly at
// segmentName (not inherited from ancestors) hold identical values in
// both states.
func sameOwnParams(segmentName string, toState, fromState *State, tree *route.Tree) bool {
	node := tree.ByFullName(segmentName)
	if node == nil {
		return toState.Name == fromState.Name
	}
	meta := node.ParamMeta()
	for _, p := range meta.URLParams {
		if toState.Params[p] != fromState.Params[p] {
			return false
		}
	}
	for _, p := range meta.QueryParams {
		if toState.Params[p] != fromState.Params[p] {
			return false
		}
	}
	return true
}

func chainNames(fullName string) []string {
	if fullName == "" {
		return nil
	}
	parts := strings.Split(fullName, ".")
	names := make([]string, len(parts))
	for i := range parts {
		names[i] = strings.Join(parts[:i+1], ".")
	}
	return names
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// MergeState combines a forwarding route's resolved state with its
// forwardTo target's state (spec Open Question, resolved): params and the
// top-level option map are shallow-merged with target values taking
// precedence, while Meta.Params is merged key-by-key per segment name so
// both the forwarding route's and the target route's per-parameter origin
// metadata survive.
func MergeState(forwarding, target State) State {
	params := make(map[string]string, len(forwarding.Params)+len(target.Params))
	for k, v := range forwarding.Params {
		params[k] = v
	}
	for k, v := range target.Params {
		params[k] = v
	}

	options := make(map[string]any, len(forwarding.Meta.Options)+len(target.Meta.Options))
	for k, v := range forwarding.Meta.Options {
		options[k] = v
	}
	for k, v := range target.Meta.Options {
		options[k] = v
	}

	paramsMeta := make(map[string]map[string]route.ParamOrigin, len(forwarding.Meta.Params)+len(target.Meta.Params))
	for seg, origins := range forwarding.Meta.Params {
		merged := make(map[string]route.ParamOrigin, len(origins))
		for k, v := range origins {
			merged[k] = v
		}
		paramsMeta[seg] = merged
	}
	for seg, origins := range target.Meta.Params {
		merged, ok := paramsMeta[seg]
		if !ok {
			merged = make(map[string]route.ParamOrigin, len(origins))
		}
		for k, v := range origins {
			merged[k] = v
		}
		paramsMeta[seg] = merged
	}

	return State{
		Name:   target.Name,
		Params: params,
		Path:   target.Path,
		Meta: Meta{
			Params:     paramsMeta,
			Options:    options,
			Redirected: forwarding.Meta.Redirected || target.Meta.Redirected,
		},
	}
}
