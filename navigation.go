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

import (
	"context"
	"sync"

	uberatomic "go.uber.org/atomic"

	"rivaas.dev/navigator/route"
	"rivaas.dev/navigator/transition"
)

// maxForwardDepth bounds forwardTo chains (spec Open Question, resolved):
// a chain deeper than this fails with ROUTE_NOT_FOUND{cycle: true} instead
// of looping forever on a misconfigured forwarding cycle.
const maxForwardDepth = 100

// Navigation is the Navigation Namespace (component F): it owns the
// single in-flight-transition invariant, the per-segment guard table, and
// the name+params -> State resolution (including forwardTo and
// forward/redirect merging).
type Navigation struct {
	router *Router
	guards *guardTable

	generation uberatomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	current *transition.State

	listeners *eventBus
}

func newNavigation(r *Router) *Navigation {
	return &Navigation{
		router:    r,
		guards:    newGuardTable(),
		listeners: newEventBus(r.cfg.limits.MaxListeners),
	}
}

// CanActivate registers an additional activation guard for segmentName,
// composed with AND against any guard already registered for it
// (including one declared directly on the route's definition).
func (n *Navigation) CanActivate(segmentName string, guard ActivateGuard) {
	n.guards.addActivate(segmentName, guard)
}

// CanDeactivate registers an additional deactivation guard for segmentName.
func (n *Navigation) CanDeactivate(segmentName string, guard DeactivateGuard) {
	n.guards.addDeactivate(segmentName, guard)
}

// Current returns the currently active state, or nil before the first
// successful navigation.
func (n *Navigation) Current() *transition.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// BuildState resolves name+params into a concrete transition.State
// without running the transition pipeline - no guards or middleware are
// invoked, and Navigation.current is left untouched. Used both internally
// (forwardTo resolution, redirect resolution) and as the building block
// for BuildPath.
func (n *Navigation) BuildState(name string, params map[string]string, opts map[string]any) (*transition.State, error) {
	return n.resolveForward(name, params, opts, 0)
}

// Resolve implements transition.Resolver for middleware-issued redirects.
func (n *Navigation) Resolve(name string, params map[string]string) (*transition.State, error) {
	return n.BuildState(name, params, nil)
}

func (n *Navigation) resolveForward(name string, params map[string]string, opts map[string]any, depth int) (*transition.State, error) {
	if depth >= maxForwardDepth {
		n.router.cfg.emitDiagnostic(DiagnosticEvent{Kind: DiagForwardCycle, Message: "forwardTo chain exceeded maximum depth", Fields: map[string]any{"name": name}})
		return nil, route.New(route.ErrRouteNotFound, "forwardTo chain exceeded maximum depth").
			WithField("name", name).WithField("cycle", true)
	}

	state, err := n.buildState(name, params, opts)
	if err != nil {
		return nil, err
	}

	tree := n.router.tree.Load()
	node := tree.ByFullName(name)
	if node == nil {
		return nil, route.New(route.ErrRouteNotFound, "route not found").WithField("name", name)
	}
	forwardTo := node.ForwardTo()
	if forwardTo == "" {
		return state, nil
	}

	target, err := n.resolveForward(forwardTo, params, opts, depth+1)
	if err != nil {
		return nil, err
	}
	merged := transition.MergeState(*state, *target)
	return &merged, nil
}

// buildState resolves a single name+params pair into a State, running
// through any StateForwarder decorators installed via
// Extensions().WrapStateForwarder.
func (n *Navigation) buildState(name string, params map[string]string, opts map[string]any) (*transition.State, error) {
	return n.router.decoratedStateForwarder(n.baseBuildState)(name, params, opts)
}

func (n *Navigation) baseBuildState(name string, params map[string]string, opts map[string]any) (*transition.State, error) {
	tree := n.router.tree.Load()
	chain, ok := tree.GetSegmentsByName(name)
	if !ok {
		return nil, route.New(route.ErrRouteNotFound, "route not found").WithField("name", name)
	}

	present := make(map[string]bool, len(params))
	for k := range params {
		present[k] = true
	}

	buildOpts := route.BuildOptions{TrailingSlash: n.router.cfg.trailingSlash, Codec: n.router.cfg.queryCodec}
	path, err := tree.BuildPath(name, params, present, buildOpts)
	if err != nil {
		return nil, err
	}

	metaParams := make(map[string]map[string]route.ParamOrigin, len(chain))
	for _, node := range chain {
		metaParams[node.FullName()] = node.ParamTypeMap()
	}

	return &transition.State{
		Name:   name,
		Params: params,
		Path:   path,
		Meta:   transition.Meta{Params: metaParams, Options: opts},
	}, nil
}

// Navigate runs the full transition pipeline against the named route
// (spec §4.4/§4.5): resolving forwardTo, diffing against the current
// state, running can-deactivate/can-activate/middleware, and - on success
// - committing the result as the new current state.
//
// Only one transition is ever in flight: starting a new one cancels
// whichever is currently running (its context is cancelled) rather than
// queuing behind it. The superseded caller gets TRANSITION_CANCELLED or,
// where a guard or middleware returns the cancelled context's error
// itself, the error code of the phase that hook ran in.
func (n *Navigation) Navigate(ctx context.Context, name string, params map[string]string, opts map[string]any) (*transition.State, error) {
	target, err := n.resolveForward(name, params, opts, 0)
	if err != nil {
		return nil, err
	}
	return n.navigateToState(ctx, target)
}

// NavigateToState runs the full transition pipeline against an
// already-built target State (spec §4.6 navigateToState), bypassing name
// resolution. Used internally by Navigate and by NavigateToPath/
// NavigateToDefault once they've built their own target, and exported for
// callers (plugins, the browser integration) that have already resolved a
// State by some other means.
func (n *Navigation) NavigateToState(ctx context.Context, target *transition.State) (*transition.State, error) {
	return n.navigateToState(ctx, target)
}

// NavigateToDefault runs Navigate against the router's configured default
// route (spec §4.6 navigateToDefault, WithDefaultRoute/WithDefaultRouteFunc).
// Returns ROUTE_NOT_FOUND if no default route is configured.
func (n *Navigation) NavigateToDefault(ctx context.Context, opts map[string]any) (*transition.State, error) {
	name, params := resolveDefaultRoute(n.router.cfg, n.router.GetDependency)
	if name == "" {
		return nil, route.New(route.ErrRouteNotFound, "no default route configured")
	}
	return n.Navigate(ctx, name, params, opts)
}

// notFoundRouteName is the synthetic route name NavigateToPath commits
// when allowNotFound is enabled and path matches no registered route
// (spec §6, §7).
const notFoundRouteName = "__not_found__"

// NavigateToPath matches path against the compiled Matcher Service and
// navigates to the resulting route (spec §4.6/§4.9). When path matches
// nothing, the behavior depends on WithAllowNotFound: disabled (the
// default) fails with ROUTE_NOT_FOUND; enabled commits a synthetic
// "not found" state carrying the unmatched path instead of failing the
// transition.
//
// WithRewritePathOnMatch controls which Path the committed state carries:
// disabled (the default) keeps the literal path that was matched; enabled
// replaces it with the canonical path BuildPath would produce for
// name+params, e.g. collapsing "/users/7/" to "/users/7" when
// TrailingSlashMode says so. The browser plugin reflects whichever Path
// the committed state carries into the address bar.
func (n *Navigation) NavigateToPath(ctx context.Context, path string, opts map[string]any) (*transition.State, error) {
	name, params, ok := n.router.MatchPath(path)
	if !ok {
		if !n.router.cfg.allowNotFound {
			return nil, route.New(route.ErrRouteNotFound, "no route matches path").WithField("path", path)
		}
		notFound := &transition.State{
			Name:   notFoundRouteName,
			Params: map[string]string{"path": path},
			Path:   path,
			Meta:   transition.Meta{Options: opts},
		}
		return n.navigateToState(ctx, notFound)
	}

	target, err := n.resolveForward(name, params, opts, 0)
	if err != nil {
		return nil, err
	}
	if !n.router.cfg.rewritePathOnMatch {
		target.Path = path
	}
	return n.navigateToState(ctx, target)
}

// CanNavigateTo synchronously evaluates the can-deactivate guards of the
// segments being left and the can-activate guards of the segments being
// entered (after resolving forwardTo) for a hypothetical navigation from
// the current state to name+params, without running the transition or
// any middleware. Every
// guard in this port is a plain blocking function, so - unlike the
// original async-capable contract - this evaluates every registered guard,
// treating any rejection or error as a "no" (spec §4.6, adapted for Go's
// lack of a Promise-returning guard variant: see DESIGN.md).
func (n *Navigation) CanNavigateTo(name string, params map[string]string) bool {
	target, err := n.resolveForward(name, params, nil, 0)
	if err != nil {
		return false
	}

	from := n.Current()
	tree := n.router.tree.Load()
	path := transition.Diff(target, from, tree)

	ctx := context.Background()
	for _, segName := range path.ToDeactivate {
		guard := n.guards.CanDeactivate(segName)
		if guard == nil {
			continue
		}
		ok, err := guard(ctx, target, from)
		if err != nil || !ok {
			return false
		}
	}
	for _, segName := range path.ToActivate {
		guard := n.guards.CanActivate(segName)
		if guard == nil {
			continue
		}
		ok, err := guard(ctx, target, from)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// cancelInFlight cancels whichever transition is currently running, if
// any, surfacing TRANSITION_CANCELLED to its caller. Used by Router.Stop
// (spec §4.8).
func (n *Navigation) cancelInFlight() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *Navigation) navigateToState(ctx context.Context, target *transition.State) (*transition.State, error) {
	gen := n.generation.Inc()

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	navCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	from := n.current
	n.mu.Unlock()

	fromName := ""
	if from != nil {
		fromName = from.Name
	}

	var obsCtx context.Context
	var obsState any
	if n.router.cfg.observability != nil {
		obsCtx, obsState = n.router.cfg.observability.OnTransitionStart(navCtx, fromName, target.Name, target.Path)
	} else {
		obsCtx = navCtx
	}

	n.listeners.emit(transitionEvent{kind: eventTransitionStart, to: target, from: from})

	pipeline := &transition.Pipeline{
		Tree:        n.router.tree.Load(),
		Guards:      n.guards,
		Middlewares: n.router.registry.Middlewares(),
		Resolver:    n,
		PhaseTracer: n.router.phaseTracer,
	}

	result, err := pipeline.Run(obsCtx, target, from)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
		if re, ok := route.As(err); ok && re.Code == route.ErrTransitionCancelled {
			outcome = OutcomeCancelled
		}
	}
	if n.router.cfg.observability != nil {
		n.router.cfg.observability.OnTransitionEnd(obsCtx, obsState, outcome, target.Name, err)
	}

	if err != nil {
		n.mu.Lock()
		if n.generation.Load() == gen {
			n.cancel = nil
		}
		n.mu.Unlock()
		kind := eventTransitionError
		if outcome == OutcomeCancelled {
			kind = eventTransitionCancelled
		}
		n.listeners.emit(transitionEvent{kind: kind, from: from, err: err})
		return nil, err
	}

	n.mu.Lock()
	superseded := n.generation.Load() != gen
	if !superseded {
		n.current = result
		n.cancel = nil
	}
	n.mu.Unlock()

	if superseded {
		err = route.New(route.ErrTransitionCancelled, "transition superseded by a newer navigation")
		n.listeners.emit(transitionEvent{kind: eventTransitionCancelled, from: from, err: err})
		return nil, err
	}
	n.listeners.emit(transitionEvent{kind: eventTransitionSuccess, to: result, from: from})

	return result, nil
}
