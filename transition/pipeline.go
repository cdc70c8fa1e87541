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

package transition

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/navigator/route"
)

// DeactivateGuard decides whether the segment currently active may be
// left. Returning (false, nil) blocks the transition with
// CANNOT_DEACTIVATE; returning a non-nil error blocks it with the same
// code, wrapping the guard's error as Cause.
//
// Guards here are boolean-only: they don't return a refined/redirect
// State the way the pipeline's Middleware phase does. Every guard in this
// port is a plain blocking Go function, so there's no async variant that
// would need the richer contract; a guard that wants to redirect or
// rewrite params is expected to do so as a Middleware instead.
type DeactivateGuard func(ctx context.Context, to, from *State) (bool, error)

// ActivateGuard decides whether a newly-targeted segment may be entered.
// Returning (false, nil) blocks the transition with CANNOT_ACTIVATE. See
// DeactivateGuard for why this is boolean-only rather than State-returning.
type ActivateGuard func(ctx context.Context, to, from *State) (bool, error)

// Middleware runs after every guard has allowed the transition and before
// it commits. A middleware may return a modified State to carry extra
// data forward, a *Redirect to restart the pipeline against a different
// target, or an error to fail the transition with TRANSITION_ERR.
type Middleware func(ctx context.Context, to, from *State) (*State, error)

// Redirect is returned by a Middleware (as its error) to restart the
// transition pipeline against a different route instead of committing.
type Redirect struct {
	ToName   string
	ToParams map[string]string
}

func (r *Redirect) Error() string { return "navigator: redirected to " + r.ToName }

// maxRedirects bounds middleware-issued redirect chains so a
// misconfigured middleware loop fails fast instead of hanging the
// navigation forever.
const maxRedirects = 10

// GuardLookup resolves the guards registered for a segment name. A
// GuardLookup typically bridges to the Navigation Namespace's guard
// registry; transition itself holds no guard storage.
type GuardLookup interface {
	CanDeactivate(segmentName string) DeactivateGuard
	CanActivate(segmentName string) ActivateGuard
}

// Resolver turns a route name + params into a concrete State, used by the
// pipeline to build the redirect target when a middleware returns one.
type Resolver interface {
	Resolve(name string, params map[string]string) (*State, error)
}

// Pipeline runs the four-phase transition (spec §4.5): CAN_DEACTIVATE,
// CAN_ACTIVATE, MIDDLEWARE, COMMIT. Each phase polls ctx for cancellation
// before proceeding so an in-flight transition can be aborted by a newer
// navigation superseding it.
type Pipeline struct {
	Tree        *route.Tree
	Guards      GuardLookup
	Middlewares []Middleware
	Resolver    Resolver
	PhaseTracer trace.Tracer
}

// Run executes the pipeline for a single toState/fromState pair,
// following middleware redirects up to maxRedirects deep, and returns the
// final committed state or a *route.RouterError describing why the
// transition failed.
func (p *Pipeline) Run(ctx context.Context, toState, fromState *State) (*State, error) {
	current := toState
	for attempt := 0; ; attempt++ {
		if attempt >= maxRedirects {
			return nil, route.New(route.ErrTransition, "too many middleware redirects").
				WithField("limit", maxRedirects)
		}

		path := Diff(current, fromState, p.Tree)

		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if err := p.runDeactivate(ctx, current, fromState, path); err != nil {
			return nil, err
		}

		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if err := p.runActivate(ctx, current, fromState, path); err != nil {
			return nil, err
		}

		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		next, err := p.runMiddleware(ctx, current, fromState)
		if err != nil {
			var redirect *Redirect
			if errors.As(err, &redirect) {
				resolved, rerr := p.Resolver.Resolve(redirect.ToName, redirect.ToParams)
				if rerr != nil {
					return nil, rerr
				}
				current = withRedirected(resolved)
				continue
			}
			return nil, reclassify(err, route.ErrTransition)
		}
		current = next

		// COMMIT: the pipeline has no side effects of its own at commit
		// time; committing the new current state into the navigation
		// namespace is the caller's responsibility once Run returns.
		return current, nil
	}
}

func (p *Pipeline) runDeactivate(ctx context.Context, to, from *State, path Path) error {
	ctx, span := p.startPhase(ctx, "can_deactivate")
	var err error
	defer func() { endPhase(span, err) }()

	for _, name := range path.ToDeactivate {
		guard := p.Guards.CanDeactivate(name)
		if guard == nil {
			continue
		}
		var ok bool
		ok, err = guard(ctx, to, from)
		if err != nil {
			err = reclassify(err, route.ErrCannotDeactivate)
			return err
		}
		if !ok {
			err = route.New(route.ErrCannotDeactivate, "deactivation guard rejected transition").
				WithField("segment", name)
			return err
		}
	}
	return nil
}

func (p *Pipeline) runActivate(ctx context.Context, to, from *State, path Path) error {
	ctx, span := p.startPhase(ctx, "can_activate")
	var err error
	defer func() { endPhase(span, err) }()

	for _, name := range path.ToActivate {
		guard := p.Guards.CanActivate(name)
		if guard == nil {
			continue
		}
		var ok bool
		ok, err = guard(ctx, to, from)
		if err != nil {
			err = reclassify(err, route.ErrCannotActivate)
			return err
		}
		if !ok {
			err = route.New(route.ErrCannotActivate, "activation guard rejected transition").
				WithField("segment", name)
			return err
		}
	}
	return nil
}

func (p *Pipeline) runMiddleware(ctx context.Context, to, from *State) (*State, error) {
	ctx, span := p.startPhase(ctx, "middleware")
	var err error
	defer func() { endPhase(span, err) }()

	current := to
	for _, mw := range p.Middlewares {
		var next *State
		next, err = mw(ctx, current, from)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// reclassify recodes a plain or already-structured error into the given
// phase's RouterError code (spec §4.5): an error thrown from a guard or
// middleware hook doesn't get to choose its own classification, the phase
// it was thrown from does.
func reclassify(err error, code route.ErrCode) error {
	if re, ok := route.As(err); ok {
		return re.Recode(code)
	}
	return route.New(code, err.Error()).WithCause(err)
}

// withRedirected returns a copy of s with its Meta.Redirected flag set,
// marking a state reached via a middleware redirect rather than the
// originally requested target (spec §4.5).
func withRedirected(s *State) *State {
	redirected := *s
	redirected.Meta.Redirected = true
	return &redirected
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return route.New(route.ErrTransitionCancelled, "transition cancelled").WithCause(ctx.Err())
	default:
		return nil
	}
}
