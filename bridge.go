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
	"rivaas.dev/navigator/route"
	"rivaas.dev/navigator/transition"
)

// RouterError, ErrCode, and the error code constants live in the route
// package (it is the lowest-level package that needs them) and are
// re-exported here so callers never need to import rivaas.dev/navigator/route
// directly just to catch a navigation error.
type (
	RouterError = route.RouterError
	ErrCode     = route.ErrCode
)

// RouteDefinition, State, and the guard/middleware function types are
// re-exported from their owning packages (route and transition) so the
// common case - describing routes and writing guards/middleware - never
// needs an extra import.
type (
	RouteDefinition = route.RouteDefinition
	State           = transition.State
	Meta            = transition.Meta
	ActivateGuard   = transition.ActivateGuard
	DeactivateGuard = transition.DeactivateGuard
	Middleware      = transition.Middleware
	Redirect        = transition.Redirect
)

const (
	ErrRouteNotFound        = route.ErrRouteNotFound
	ErrCannotDeactivate     = route.ErrCannotDeactivate
	ErrCannotActivate       = route.ErrCannotActivate
	ErrTransition           = route.ErrTransition
	ErrTransitionCancelled  = route.ErrTransitionCancelled
	ErrConstraintViolation  = route.ErrConstraintViolation
	ErrInvalidOption        = route.ErrInvalidOption
	ErrDuplicateRoute       = route.ErrDuplicateRoute
	ErrInvalidRoute         = route.ErrInvalidRoute
)

// AsRouterError reports whether err is a *RouterError, returning it for
// convenient chaining at call sites (e.g. `if re, ok := navigator.AsRouterError(err); ok { ... }`).
func AsRouterError(err error) (*RouterError, bool) {
	return route.As(err)
}
