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
	"reflect"
	"sync"

	"github.com/google/uuid"

	"rivaas.dev/navigator/route"
)

// Plugin extends a Router at construction/mount time: Init is called once
// when the plugin is registered and may register guards, middleware, or
// event listeners against the Router it receives. The returned teardown
// function, if non-nil, is invoked when the plugin's batch is
// unregistered, and must be safe to call more than once (unregistration
// is idempotent).
type Plugin interface {
	Init(r *Router) (teardown func(), err error)
}

// PluginFunc adapts a plain function to the Plugin interface.
type PluginFunc func(r *Router) (func(), error)

func (f PluginFunc) Init(r *Router) (func(), error) { return f(r) }

type registeredPlugin struct {
	batch    uuid.UUID
	identity any
	teardown func()
}

type registeredMiddleware struct {
	batch uuid.UUID
	key   uintptr
	mw    Middleware
}

// registry is the Plugin/Middleware Registry (component G): it supports
// atomic batch registration with rollback on partial failure,
// identity-keyed deduplication, idempotent unsubscribe, and
// declaration-order execution, all bounded by Limits.
type registry struct {
	mu sync.Mutex

	limits Limits

	plugins    []registeredPlugin
	middleware []registeredMiddleware

	diag *config
}

func newRegistry(limits Limits, cfg *config) *registry {
	return &registry{limits: limits, diag: cfg}
}

// RegisterPlugins registers one or more plugins as a single atomic batch:
// if any plugin's Init fails, every plugin already initialized in this
// call is torn down (in reverse order) and the registry is left exactly
// as it was before the call. A plugin whose identity (pointer/value
// equality) is already registered is skipped rather than re-initialized.
func (reg *registry) RegisterPlugins(r *Router, plugins ...Plugin) (uuid.UUID, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	batch := uuid.New()
	var added []registeredPlugin

	if len(reg.plugins)+len(plugins) > reg.limits.MaxPlugins {
		return uuid.Nil, route.New(route.ErrInvalidOption, "plugin registry limit exceeded").
			WithField("limit", reg.limits.MaxPlugins)
	}

	for _, p := range plugins {
		if reg.hasPlugin(p) {
			continue
		}
		teardown, err := p.Init(r)
		if err != nil {
			for i := len(added) - 1; i >= 0; i-- {
				if added[i].teardown != nil {
					added[i].teardown()
				}
			}
			return uuid.Nil, route.New(route.ErrInvalidOption, "plugin initialization failed").WithCause(err)
		}
		rp := registeredPlugin{batch: batch, identity: pluginIdentity(p), teardown: teardown}
		added = append(added, rp)
	}

	reg.plugins = append(reg.plugins, added...)

	if reg.diag != nil && len(reg.plugins) >= (reg.limits.MaxPlugins*9)/10 {
		reg.diag.emitDiagnostic(DiagnosticEvent{Kind: DiagPluginLimitNear, Message: "plugin registry near its configured limit"})
	}

	return batch, nil
}

func (reg *registry) hasPlugin(p Plugin) bool {
	identity := pluginIdentity(p)
	for _, rp := range reg.plugins {
		if rp.identity == identity {
			return true
		}
	}
	return false
}

func pluginIdentity(p Plugin) any {
	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Func {
		return v.Pointer()
	}
	return p
}

// UnregisterPlugins tears down every plugin registered under batch.
// Idempotent: unregistering an unknown or already-unregistered batch is a
// no-op, not an error.
func (reg *registry) UnregisterPlugins(batch uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	kept := reg.plugins[:0]
	for _, rp := range reg.plugins {
		if rp.batch == batch {
			if rp.teardown != nil {
				rp.teardown()
			}
			continue
		}
		kept = append(kept, rp)
	}
	reg.plugins = kept
}

// UseMiddleware appends one or more middleware functions as a single
// batch, in declaration order. Dedup is by function identity
// (reflect-derived code pointer): registering the same middleware twice
// is a no-op.
func (reg *registry) UseMiddleware(mws ...Middleware) (uuid.UUID, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.middleware)+len(mws) > reg.limits.MaxMiddleware {
		return uuid.Nil, route.New(route.ErrInvalidOption, "middleware registry limit exceeded").
			WithField("limit", reg.limits.MaxMiddleware)
	}

	batch := uuid.New()
	for _, mw := range mws {
		key := reflect.ValueOf(mw).Pointer()
		if reg.hasMiddleware(key) {
			continue
		}
		reg.middleware = append(reg.middleware, registeredMiddleware{batch: batch, key: key, mw: mw})
	}
	return batch, nil
}

func (reg *registry) hasMiddleware(key uintptr) bool {
	for _, rm := range reg.middleware {
		if rm.key == key {
			return true
		}
	}
	return false
}

// ClearMiddleware removes every registered middleware.
func (reg *registry) ClearMiddleware() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.middleware = nil
}

// UnregisterMiddleware removes the middleware batch identified by id.
// Idempotent, like UnregisterPlugins.
func (reg *registry) UnregisterMiddleware(batch uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	kept := reg.middleware[:0]
	for _, rm := range reg.middleware {
		if rm.batch == batch {
			continue
		}
		kept = append(kept, rm)
	}
	reg.middleware = kept
}

// Middlewares returns the currently registered middleware in declaration
// order, safe to call concurrently with registration.
func (reg *registry) Middlewares() []Middleware {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]Middleware, len(reg.middleware))
	for i, rm := range reg.middleware {
		out[i] = rm.mw
	}
	return out
}
