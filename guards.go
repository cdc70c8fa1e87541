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

	"rivaas.dev/navigator/transition"
)

// guardTable is the per-segment guard registry backing the Navigation
// Namespace's can-activate/can-deactivate hooks (spec §4.4/§4.5). A
// segment may accumulate more than one guard of each kind - one declared
// on its RouteDefinition, plus any registered later via
// Navigation.CanActivate/CanDeactivate - and all of them must pass (guards
// compose with AND, short-circuiting on the first rejection).
type guardTable struct {
	mu         sync.RWMutex
	activate   map[string][]ActivateGuard
	deactivate map[string][]DeactivateGuard
}

func newGuardTable() *guardTable {
	return &guardTable{
		activate:   make(map[string][]ActivateGuard),
		deactivate: make(map[string][]DeactivateGuard),
	}
}

func (g *guardTable) addActivate(name string, guard ActivateGuard) {
	if guard == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activate[name] = append(g.activate[name], guard)
}

func (g *guardTable) addDeactivate(name string, guard DeactivateGuard) {
	if guard == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deactivate[name] = append(g.deactivate[name], guard)
}

// CanActivate implements transition.GuardLookup.
func (g *guardTable) CanActivate(name string) transition.ActivateGuard {
	g.mu.RLock()
	guards := g.activate[name]
	g.mu.RUnlock()
	if len(guards) == 0 {
		return nil
	}
	return func(ctx context.Context, to, from *transition.State) (bool, error) {
		for _, guard := range guards {
			ok, err := guard(ctx, to, from)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}
}

// CanDeactivate implements transition.GuardLookup.
func (g *guardTable) CanDeactivate(name string) transition.DeactivateGuard {
	g.mu.RLock()
	guards := g.deactivate[name]
	g.mu.RUnlock()
	if len(guards) == 0 {
		return nil
	}
	return func(ctx context.Context, to, from *transition.State) (bool, error) {
		for _, guard := range guards {
			ok, err := guard(ctx, to, from)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}
}
