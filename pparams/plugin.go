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

// Package pparams implements the Persistent-Params Plugin (component J):
// a sticky subset of query parameters that rides along on every built
// path and every forwarded/resolved state until a transition explicitly
// clears one.
//
// It hooks the Router Facade's explicit decorator extension point
// (Extensions().WrapPathBuilder / WrapStateForwarder) rather than
// replacing Router methods, so multiple plugins can layer decorators
// without clobbering one another, and teardown removes exactly this
// plugin's layer.
package pparams

import (
	"net/url"
	"strings"
	"sync"

	"rivaas.dev/navigator"
	"rivaas.dev/navigator/route"
)

// Plugin tracks a fixed set of parameter names across navigations. Caller-
// supplied values always win over the tracked value; after a successful
// transition, the plugin re-reads its tracked keys from the committed
// state, and a key explicitly set to the empty string is dropped rather
// than carried forward.
type Plugin struct {
	mu     sync.Mutex
	keys   []string
	values map[string]string
	codec  route.QueryCodec

	initialized bool

	unsubObserver func()
	unwrapBuilder func()
	unwrapForward func()
}

// New builds a Plugin tracking the given parameter names. initial seeds
// starting values for any of those names already known (e.g. read from
// the current URL at startup); names absent from initial simply start
// unset.
func New(keys []string, initial map[string]string) *Plugin {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := initial[k]; ok {
			values[k] = v
		}
	}
	return &Plugin{keys: append([]string(nil), keys...), values: values}
}

// Init implements navigator.Plugin. A Plugin can only be initialized once
// at a time; Init on an already-initialized instance fails rather than
// layering a second set of decorators.
func (p *Plugin) Init(r *navigator.Router) (func(), error) {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return nil, route.New(route.ErrInvalidOption, "persistent-params plugin already initialized")
	}
	p.initialized = true
	p.codec = r.Config().QueryCodec()
	p.mu.Unlock()

	ext := r.Extensions()

	unwrapBuilder := ext.WrapPathBuilder(func(next navigator.PathBuilderFunc) navigator.PathBuilderFunc {
		return func(name string, params map[string]string) (string, error) {
			merged := p.merge(params)
			built, err := next(name, merged)
			if err != nil {
				return "", err
			}
			return p.appendTracked(built, merged), nil
		}
	})

	unwrapForward := ext.WrapStateForwarder(func(next navigator.StateForwarderFunc) navigator.StateForwarderFunc {
		return func(name string, params map[string]string, opts map[string]any) (*navigator.State, error) {
			merged := p.merge(params)
			state, err := next(name, merged, opts)
			if err != nil {
				return nil, err
			}
			state.Path = p.appendTracked(state.Path, merged)
			return state, nil
		}
	})

	unsubObserver, err := r.Subscribe(navigator.ObserverFunc(func(to, _ *navigator.State) {
		p.observe(to)
	}))
	if err != nil {
		unwrapBuilder()
		unwrapForward()
		p.mu.Lock()
		p.initialized = false
		p.mu.Unlock()
		return nil, err
	}

	p.unwrapBuilder = unwrapBuilder
	p.unwrapForward = unwrapForward
	p.unsubObserver = unsubObserver

	return p.teardown, nil
}

func (p *Plugin) teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	if p.unwrapBuilder != nil {
		p.unwrapBuilder()
	}
	if p.unwrapForward != nil {
		p.unwrapForward()
	}
	if p.unsubObserver != nil {
		p.unsubObserver()
	}
	p.initialized = false
}

// merge layers the tracked persistent values under the caller's own
// params, so an explicit caller value always wins and an explicit empty
// string suppresses the tracked value for this one build.
func (p *Plugin) merge(params map[string]string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.values) == 0 {
		return params
	}
	merged := make(map[string]string, len(params)+len(p.values))
	for k, v := range p.values {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// appendTracked appends any tracked key present in merged that the base
// path builder didn't already emit as a declared query parameter. A
// route's own declared query parameters (if it happens to declare one of
// the tracked names) take precedence; this only fills in the rest, so a
// route doesn't need to individually declare every persistent key for it
// to show up in the built URL.
func (p *Plugin) appendTracked(built string, merged map[string]string) string {
	p.mu.Lock()
	keys := append([]string(nil), p.keys...)
	codec := p.codec
	p.mu.Unlock()
	if len(keys) == 0 {
		return built
	}

	path, rawQuery, hasQuery := strings.Cut(built, "?")
	existing, _ := url.ParseQuery(rawQuery)

	extra := map[string]any{}
	for _, k := range keys {
		if existing.Has(k) {
			continue
		}
		if v, ok := merged[k]; ok && v != "" {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return built
	}

	if codec == nil {
		codec = route.DefaultQueryCodec{}
	}
	extraQuery := codec.Build(extra, route.QueryCodecOptions{})
	if !hasQuery || rawQuery == "" {
		return path + "?" + extraQuery
	}
	return path + "?" + rawQuery + "&" + extraQuery
}

// observe re-reads every tracked key from a successfully committed
// state, dropping a key the transition carried as an explicit empty
// string (Go's rendering of the spec's "value set to undefined removes
// the key" - Go has no undefined, so an explicit empty string plays that
// role for a string-valued param).
func (p *Plugin) observe(to *navigator.State) {
	if to == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		v, present := to.Params[k]
		if !present {
			continue
		}
		if v == "" {
			delete(p.values, k)
			continue
		}
		p.values[k] = v
	}
}

// Values returns a snapshot of the currently tracked parameter values.
func (p *Plugin) Values() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
