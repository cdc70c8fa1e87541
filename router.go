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
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/navigator/compiler"
	"rivaas.dev/navigator/route"
	"rivaas.dev/navigator/transition"
)

// PathBuilderFunc builds a concrete path for a named route. It is the
// shape both Router.BuildPath's base implementation and any decorator
// installed through Extensions().WrapPathBuilder share.
type PathBuilderFunc func(name string, params map[string]string) (string, error)

// StateForwarderFunc resolves a name+params pair into a concrete
// transition.State, the shape Navigation's internal state construction
// and any decorator installed through Extensions().WrapStateForwarder
// share.
type StateForwarderFunc func(name string, params map[string]string, opts map[string]any) (*transition.State, error)

type pathBuilderEntry struct {
	id  uuid.UUID
	dec func(PathBuilderFunc) PathBuilderFunc
}

type stateForwarderEntry struct {
	id  uuid.UUID
	dec func(StateForwarderFunc) StateForwarderFunc
}

// Router is the Router Facade (component H): it composes the route tree,
// the compiled matcher, the Navigation Namespace, and the plugin/
// middleware registry into the single entry point callers use.
type Router struct {
	cfg *config

	tree    atomic.Pointer[route.Tree]
	matcher atomic.Pointer[compiler.Matcher]

	registry    *registry
	navigation  *Navigation
	phaseTracer trace.Tracer

	depsMu sync.RWMutex
	deps   map[string]any

	extMu      sync.RWMutex
	extensions map[string]any

	pbMu         sync.Mutex
	pbDecorators []pathBuilderEntry

	sfMu         sync.Mutex
	sfDecorators []stateForwarderEntry

	active atomic.Bool

	lifecycleMu       sync.Mutex
	lifecycleHandlers []lifecycleEntry
}

type lifecycleEntry struct {
	id uuid.UUID
	fn func(active bool)
}

// New builds a Router from the given route definitions and options. The
// route tree is validated immediately (spec §4.2 construction invariants)
// unless WithoutValidation is supplied.
func New(defs []RouteDefinition, opts ...Option) (*Router, error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	tree, err := route.Build(defs)
	if err != nil {
		if !cfg.noValidate {
			return nil, err
		}
		// WithoutValidation: the caller accepted that a malformed route
		// table fails at match time instead of at New() time. Fall back to
		// an empty-but-structurally-valid tree (route.Build(nil) always
		// succeeds) rather than a bare zero-value Tree, whose nil root
		// would panic the first time any Node method is called on it.
		tree, _ = route.Build(nil)
	}

	r := &Router{
		cfg:        cfg,
		deps:       make(map[string]any),
		extensions: make(map[string]any),
	}
	r.tree.Store(tree)
	r.registry = newRegistry(cfg.limits, cfg)
	r.navigation = newNavigation(r)
	r.rebuildMatcher()

	r.seedDeclaredGuards(tree.Root())
	r.emitRegistrationDiagnostics(tree.Root())

	return r, nil
}

// MustNew is like New but panics on error, for callers constructing a
// static route table where a build failure is a programmer error.
func MustNew(defs []RouteDefinition, opts ...Option) *Router {
	r, err := New(defs, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// rebuildMatcher (re)compiles the Matcher Service over the currently
// active tree. On first construction there is no prior matcher to
// rebuild from, so it builds fresh; subsequent calls (AddRoute/
// RemoveRoute/UpdateRoute swapping in a new tree) go through
// Matcher.Rebuild, which carries over the previous matcher's bloom-filter
// sizing instead of re-reading it from config (matching the teacher's own
// pattern of deriving a rebuilt matcher from its predecessor).
func (r *Router) rebuildMatcher() {
	if prev := r.matcher.Load(); prev != nil {
		r.matcher.Store(prev.Rebuild(r.tree.Load()))
		return
	}
	m := compiler.NewMatcher(r.tree.Load(), r.cfg.matchOpts, r.cfg.queryCodec, r.cfg.bloomFilterSize, r.cfg.bloomHashFunctions)
	r.matcher.Store(m)
}

func (r *Router) seedDeclaredGuards(n *route.Node) {
	for _, child := range n.Children() {
		if ca, ok := child.CanActivate().(ActivateGuard); ok {
			r.navigation.CanActivate(child.FullName(), ca)
		}
		if cd, ok := child.CanDeactivate().(DeactivateGuard); ok {
			r.navigation.CanDeactivate(child.FullName(), cd)
		}
		r.seedDeclaredGuards(child)
	}
}

func (r *Router) emitRegistrationDiagnostics(n *route.Node) {
	for _, child := range n.Children() {
		fields := map[string]any{"name": child.FullName(), "path": child.Path()}
		r.cfg.emitDiagnostic(DiagnosticEvent{Kind: DiagRouteRegistered, Message: "route registered", Fields: fields})
		if len(child.ParamMeta().URLParams)+len(child.ParamMeta().QueryParams) > 8 {
			r.cfg.emitDiagnostic(DiagnosticEvent{Kind: DiagHighParamCount, Message: "route declares an unusually large number of parameters", Fields: fields})
		}
		r.emitRegistrationDiagnostics(child)
	}
}

// Navigation returns the Router's Navigation Namespace.
func (r *Router) Navigation() *Navigation { return r.navigation }

// Config returns the Router's resolved, read-only configuration.
func (r *Router) Config() Config { return Config{cfg: r.cfg} }

// Tree returns the currently active route tree. The tree is immutable;
// AddRoute/RemoveRoute atomically swap in a new one.
func (r *Router) Tree() *route.Tree { return r.tree.Load() }

// MatchPath resolves a concrete path to a route name and its captured
// parameters using the compiled Matcher Service.
func (r *Router) MatchPath(path string) (name string, params map[string]string, ok bool) {
	cr, p, matched := r.matcher.Load().Match(path)
	if !matched {
		return "", nil, false
	}
	return cr.Name(), p, true
}

// BuildPath builds a concrete path for the named route without running
// any transition (a pure string-building operation; see Navigation.BuildState
// for constructing a full State). It runs through any PathBuilder
// decorators plugins have installed via Extensions().WrapPathBuilder
// (the persistent-params plugin being the canonical example).
func (r *Router) BuildPath(name string, params map[string]string) (string, error) {
	return r.decoratedPathBuilder()(name, params)
}

func (r *Router) basePathBuilder(name string, params map[string]string) (string, error) {
	present := make(map[string]bool, len(params))
	for k := range params {
		present[k] = true
	}
	opts := route.BuildOptions{TrailingSlash: r.cfg.trailingSlash, Codec: r.cfg.queryCodec}
	return r.tree.Load().BuildPath(name, params, present, opts)
}

func (r *Router) decoratedPathBuilder() PathBuilderFunc {
	r.pbMu.Lock()
	defer r.pbMu.Unlock()
	fn := PathBuilderFunc(r.basePathBuilder)
	for i := len(r.pbDecorators) - 1; i >= 0; i-- {
		fn = r.pbDecorators[i].dec(fn)
	}
	return fn
}

// decoratedStateForwarder wraps base with every StateForwarder decorator
// currently installed. Navigation calls this for every name+params
// resolution (including each step of a forwardTo chain), so a decorator
// such as persistent-params' param injection applies uniformly.
func (r *Router) decoratedStateForwarder(base StateForwarderFunc) StateForwarderFunc {
	r.sfMu.Lock()
	defer r.sfMu.Unlock()
	fn := base
	for i := len(r.sfDecorators) - 1; i >= 0; i-- {
		fn = r.sfDecorators[i].dec(fn)
	}
	return fn
}

// AddRoute adds defs as new top-level routes, producing and swapping in
// an entirely new route tree and matcher (the tree is immutable; there is
// no in-place mutation).
func (r *Router) AddRoute(defs ...RouteDefinition) error {
	current := r.tree.Load()
	combined := append(collectDefinitions(current), defs...)
	next, err := route.Build(combined)
	if err != nil {
		return err
	}
	r.tree.Store(next)
	r.rebuildMatcher()
	r.seedDeclaredGuards(next.Root())
	return nil
}

// collectDefinitions reconstructs the top-level RouteDefinition slice a
// tree was built from, walking its nodes back into definitions.
func collectDefinitions(t *route.Tree) []RouteDefinition {
	var walk func(n *route.Node) []RouteDefinition
	walk = func(n *route.Node) []RouteDefinition {
		var out []RouteDefinition
		for _, child := range n.Children() {
			def := RouteDefinition{
				Name:          child.Name(),
				Path:          child.Path(),
				CanActivate:   child.CanActivate(),
				CanDeactivate: child.CanDeactivate(),
				ForwardTo:     child.ForwardTo(),
				EncodeParams:  child.EncodeParams(),
				DecodeParams:  child.DecodeParams(),
				Children:      walk(child),
			}
			if child.Absolute() {
				def.Path = "~" + def.Path
			}
			out = append(out, def)
		}
		return out
	}
	return walk(t.Root())
}

// RemoveRoute rebuilds the tree without the named route (and its
// descendants), producing a new immutable tree and matcher.
func (r *Router) RemoveRoute(name string) error {
	current := r.tree.Load()
	defs := collectDefinitions(current)
	pruned, ok := pruneDefinitions(defs, name, "")
	if !ok {
		return route.New(route.ErrRouteNotFound, "route not found").WithField("name", name)
	}
	next, err := route.Build(pruned)
	if err != nil {
		return err
	}
	r.tree.Store(next)
	r.rebuildMatcher()
	return nil
}

func pruneDefinitions(defs []RouteDefinition, target, prefix string) ([]RouteDefinition, bool) {
	out := make([]RouteDefinition, 0, len(defs))
	removed := false
	for _, d := range defs {
		full := d.Name
		if prefix != "" {
			full = prefix + "." + d.Name
		}
		if full == target {
			removed = true
			continue
		}
		if len(d.Children) > 0 {
			children, ok := pruneDefinitions(d.Children, target, full)
			if ok {
				removed = true
			}
			d.Children = children
		}
		out = append(out, d)
	}
	return out, removed
}

// UpdateRoute removes the named route (and its descendants) and adds def
// through AddRoute, rebuilding the tree and matcher. def is attached by its
// own Name, so it takes the last position among its siblings; the removed
// route's former position is not kept.
func (r *Router) UpdateRoute(name string, def RouteDefinition) error {
	if err := r.RemoveRoute(name); err != nil {
		return err
	}
	return r.AddRoute(def)
}

// Use registers middleware, executed in declaration order during the
// MIDDLEWARE phase of every transition. Returns a batch id that can be
// passed to RemoveMiddleware.
func (r *Router) Use(mws ...Middleware) (uuid.UUID, error) {
	return r.registry.UseMiddleware(mws...)
}

// RemoveMiddleware idempotently unregisters a middleware batch.
func (r *Router) RemoveMiddleware(batch uuid.UUID) {
	r.registry.UnregisterMiddleware(batch)
}

// ClearMiddleware removes every registered middleware.
func (r *Router) ClearMiddleware() {
	r.registry.ClearMiddleware()
}

// RegisterPlugins registers one or more plugins as a single atomic batch
// (spec §4.6). Returns a batch id that can be passed to UnregisterPlugins.
func (r *Router) RegisterPlugins(plugins ...Plugin) (uuid.UUID, error) {
	return r.registry.RegisterPlugins(r, plugins...)
}

// UnregisterPlugins idempotently tears down a plugin batch.
func (r *Router) UnregisterPlugins(batch uuid.UUID) {
	r.registry.UnregisterPlugins(batch)
}

// Subscribe registers an Observer for navigation lifecycle events,
// returning an idempotent unsubscribe function.
func (r *Router) Subscribe(o Observer) (func(), error) {
	return r.navigation.listeners.Subscribe(o)
}

// OnLifecycle registers a handler invoked with true when Start activates
// the router and false when Stop deactivates it (spec §4.8/§5) - the hook
// the browser plugin uses to acquire and release its popstate listener
// instead of doing so unconditionally in Init. Returns an idempotent
// teardown that removes this handler, or an error once MaxLifecycleHandlers
// is reached.
func (r *Router) OnLifecycle(fn func(active bool)) (func(), error) {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if len(r.lifecycleHandlers) >= r.cfg.limits.MaxLifecycleHandlers {
		return nil, route.New(route.ErrInvalidOption, "lifecycle handler limit exceeded").
			WithField("limit", r.cfg.limits.MaxLifecycleHandlers)
	}
	id := uuid.New()
	r.lifecycleHandlers = append(r.lifecycleHandlers, lifecycleEntry{id: id, fn: fn})
	return func() {
		r.lifecycleMu.Lock()
		defer r.lifecycleMu.Unlock()
		for i, entry := range r.lifecycleHandlers {
			if entry.id == id {
				r.lifecycleHandlers = append(r.lifecycleHandlers[:i], r.lifecycleHandlers[i+1:]...)
				return
			}
		}
	}, nil
}

func (r *Router) runLifecycleHandlers(active bool) {
	r.lifecycleMu.Lock()
	handlers := make([]lifecycleEntry, len(r.lifecycleHandlers))
	copy(handlers, r.lifecycleHandlers)
	r.lifecycleMu.Unlock()
	for _, entry := range handlers {
		entry.fn(active)
	}
}

// IsActive reports whether the router is between a Start and a matching
// Stop (spec §4.8).
func (r *Router) IsActive() bool { return r.active.Load() }

// Start activates the router: it marks isActive true, notifies lifecycle
// handlers so plugins can acquire their runtime resources (the browser
// plugin's popstate listener), and performs a full activation transition
// against path - falling back to the configured default route (spec §4.6
// navigateToDefault) when path matches nothing and a default is set
// (spec §4.8, scenarios 1/2/5).
func (r *Router) Start(ctx context.Context, path string) (*transition.State, error) {
	r.active.Store(true)
	r.navigation.listeners.emit(transitionEvent{kind: eventRouterStart})
	r.runLifecycleHandlers(true)

	state, err := r.navigation.NavigateToPath(ctx, path, nil)
	if err != nil {
		if re, ok := route.As(err); ok && re.Code == route.ErrRouteNotFound {
			name, params := resolveDefaultRoute(r.cfg, r.GetDependency)
			if name != "" {
				return r.navigation.Navigate(ctx, name, params, nil)
			}
		}
		return nil, err
	}
	return state, nil
}

// Stop terminates any in-flight transition with TRANSITION_CANCELLED,
// marks isActive false, and notifies lifecycle handlers so plugins can
// release their runtime resources (spec §4.8/§5).
func (r *Router) Stop() {
	r.navigation.cancelInFlight()
	r.active.Store(false)
	r.runLifecycleHandlers(false)
	r.navigation.listeners.emit(transitionEvent{kind: eventRouterStop})
}

// SetDependency stores an arbitrary named collaborator (a data client, a
// feature-flag source) that guards/middleware can retrieve via
// GetDependency, the idiomatic-Go rendering of the spec's dependency
// injection slot.
func (r *Router) SetDependency(name string, dep any) error {
	r.depsMu.Lock()
	defer r.depsMu.Unlock()
	if _, exists := r.deps[name]; !exists && len(r.deps) >= r.cfg.limits.MaxDependencies {
		return route.New(route.ErrInvalidOption, "dependency registry limit exceeded").WithField("limit", r.cfg.limits.MaxDependencies)
	}
	r.deps[name] = dep
	return nil
}

// GetDependency retrieves a collaborator registered via SetDependency.
func (r *Router) GetDependency(name string) (any, bool) {
	r.depsMu.RLock()
	defer r.depsMu.RUnlock()
	d, ok := r.deps[name]
	return d, ok
}

// Extensions exposes a named slot for capability interfaces a plugin
// installs onto the Router - the browser plugin's BrowserNavigator, the
// persistent-params plugin's decorator hook - without the Router package
// needing to import those plugin packages (avoiding an import cycle) or
// resorting to method monkey-patching.
func (r *Router) Extensions() *Extensions {
	return &Extensions{r: r}
}

// Extensions is a typed view over Router.extensions.
type Extensions struct{ r *Router }

// Set installs a named extension value.
func (e *Extensions) Set(name string, value any) {
	e.r.extMu.Lock()
	defer e.r.extMu.Unlock()
	e.r.extensions[name] = value
}

// Get retrieves a named extension value.
func (e *Extensions) Get(name string) (any, bool) {
	e.r.extMu.RLock()
	defer e.r.extMu.RUnlock()
	v, ok := e.r.extensions[name]
	return v, ok
}

// WrapPathBuilder installs a decorator around path construction (`next ->
// next'`), the explicit composable extension point the persistent-params
// plugin uses instead of monkey-patching Router.BuildPath. Returns a
// teardown that removes this decorator by identity, leaving any other
// installed decorator untouched.
func (e *Extensions) WrapPathBuilder(dec func(PathBuilderFunc) PathBuilderFunc) func() {
	id := uuid.New()
	e.r.pbMu.Lock()
	e.r.pbDecorators = append(e.r.pbDecorators, pathBuilderEntry{id: id, dec: dec})
	e.r.pbMu.Unlock()
	return func() {
		e.r.pbMu.Lock()
		defer e.r.pbMu.Unlock()
		for i, entry := range e.r.pbDecorators {
			if entry.id == id {
				e.r.pbDecorators = append(e.r.pbDecorators[:i], e.r.pbDecorators[i+1:]...)
				return
			}
		}
	}
}

// WrapStateForwarder installs a decorator around name+params -> State
// resolution, applied on every forwardTo/redirect/Navigate resolution.
// Returns a teardown that removes this decorator by identity.
func (e *Extensions) WrapStateForwarder(dec func(StateForwarderFunc) StateForwarderFunc) func() {
	id := uuid.New()
	e.r.sfMu.Lock()
	e.r.sfDecorators = append(e.r.sfDecorators, stateForwarderEntry{id: id, dec: dec})
	e.r.sfMu.Unlock()
	return func() {
		e.r.sfMu.Lock()
		defer e.r.sfMu.Unlock()
		for i, entry := range e.r.sfDecorators {
			if entry.id == id {
				e.r.sfDecorators = append(e.r.sfDecorators[:i], e.r.sfDecorators[i+1:]...)
				return
			}
		}
	}
}
