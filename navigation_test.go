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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forwardingRoutes() []RouteDefinition {
	return []RouteDefinition{
		{Name: "home", Path: "/"},
		{Name: "legacy", Path: "/old", ForwardTo: "home"},
		{
			Name: "users",
			Path: "/users",
			Children: []RouteDefinition{
				{Name: "detail", Path: "/:id<[0-9]+>"},
			},
		},
	}
}

func TestNavigateCommitsCurrentState(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	state, err := r.Navigation().Navigate(context.Background(), "users.detail", map[string]string{"id": "9"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "users.detail", state.Name)

	current := r.Navigation().Current()
	require.NotNil(t, current)
	assert.Equal(t, "users.detail", current.Name)
}

func TestNavigateSameStateIsANoopTransition(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	_, err = r.Navigation().Navigate(context.Background(), "users.detail", map[string]string{"id": "9"}, nil)
	require.NoError(t, err)

	state, err := r.Navigation().Navigate(context.Background(), "users.detail", map[string]string{"id": "9"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "users.detail", state.Name)
}

func TestNavigateForwardToResolvesTarget(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	state, err := r.Navigation().Navigate(context.Background(), "legacy", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "home", state.Name, "a forwardTo route commits the merged target state")
}

func TestNavigateRouteNotFound(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	_, err = r.Navigation().Navigate(context.Background(), "nope", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrRouteNotFound, re.Code)
}

func TestNavigateCanDeactivateGuardRejects(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	_, err = r.Navigation().Navigate(context.Background(), "users.detail", map[string]string{"id": "9"}, nil)
	require.NoError(t, err)

	r.Navigation().CanDeactivate("users.detail", func(ctx context.Context, to, from *State) (bool, error) {
		return false, nil
	})

	_, err = r.Navigation().Navigate(context.Background(), "home", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCannotDeactivate, re.Code)

	assert.Equal(t, "users.detail", r.Navigation().Current().Name, "a rejected navigation must not change the committed state")
}

func TestNavigateCanActivateGuardRejects(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	r.Navigation().CanActivate("home", func(ctx context.Context, to, from *State) (bool, error) {
		return false, nil
	})

	_, err = r.Navigation().Navigate(context.Background(), "home", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCannotActivate, re.Code)
}

func TestNavigateDeclaredGuardOnDefinitionIsSeeded(t *testing.T) {
	t.Parallel()
	blocked := ActivateGuard(func(ctx context.Context, to, from *State) (bool, error) { return false, nil })
	r, err := New([]RouteDefinition{
		{Name: "locked", Path: "/locked", CanActivate: blocked},
	})
	require.NoError(t, err)

	_, err = r.Navigation().Navigate(context.Background(), "locked", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCannotActivate, re.Code)
}

func TestNavigateSupersededBySecondCallIsCancelled(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{})
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	r.Navigation().CanActivate("users.detail", func(ctx context.Context, to, from *State) (bool, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err() == nil, ctx.Err()
	})

	firstErrCh := make(chan error, 1)
	go func() {
		_, err := r.Navigation().Navigate(context.Background(), "users.detail", map[string]string{"id": "1"}, nil)
		firstErrCh <- err
	}()

	<-started
	_, err = r.Navigation().Navigate(context.Background(), "home", nil, nil)
	require.NoError(t, err)
	close(release)

	firstErr := <-firstErrCh
	require.Error(t, firstErr)
	re, ok := AsRouterError(firstErr)
	require.True(t, ok)
	// The guard itself observes ctx.Done() and returns it as its own error,
	// so the phase it failed in (can-activate) reclassifies it rather than
	// the pipeline's own between-phase cancellation check getting there first.
	assert.Equal(t, ErrCannotActivate, re.Code)
	assert.ErrorIs(t, firstErr, context.Canceled)

	assert.Equal(t, "home", r.Navigation().Current().Name)
}

func TestNavigateRespectsCallerCancellation(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Navigation().Navigate(ctx, "home", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrTransitionCancelled, re.Code)
}

func TestNavigateEmitsObserverEvents(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	var gotTo *State
	unsub, err := r.Subscribe(ObserverFunc(func(to, from *State) {
		gotTo = to
	}))
	require.NoError(t, err)
	defer unsub()

	_, err = r.Navigation().Navigate(context.Background(), "home", nil, nil)
	require.NoError(t, err)

	require.NotNil(t, gotTo)
	assert.Equal(t, "home", gotTo.Name)
}

func TestSubscribeUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	calls := 0
	unsub, err := r.Subscribe(ObserverFunc(func(to, from *State) { calls++ }))
	require.NoError(t, err)

	unsub()
	unsub() // must not panic

	_, err = r.Navigation().Navigate(context.Background(), "home", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestForwardCycleFailsWithCycleField(t *testing.T) {
	t.Parallel()
	r, err := New([]RouteDefinition{
		{Name: "a", Path: "/a", ForwardTo: "b"},
		{Name: "b", Path: "/b", ForwardTo: "a"},
	})
	require.NoError(t, err)

	_, err = r.Navigation().Navigate(context.Background(), "a", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrRouteNotFound, re.Code)
	assert.Equal(t, true, re.Fields["cycle"])
}

func TestBuildStateDoesNotRunGuardsOrCommit(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	r.Navigation().CanActivate("home", func(ctx context.Context, to, from *State) (bool, error) {
		return false, nil
	})

	state, err := r.Navigation().BuildState("home", nil, nil)
	require.NoError(t, err, "BuildState never invokes guards")
	assert.Equal(t, "home", state.Name)
	assert.Nil(t, r.Navigation().Current())
}

func TestMiddlewareRedirectDuringNavigate(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	_, err = r.Use(func(ctx context.Context, to, from *State) (*State, error) {
		if to.Name == "users.detail" {
			return nil, &Redirect{ToName: "home"}
		}
		return to, nil
	})
	require.NoError(t, err)

	state, err := r.Navigation().Navigate(context.Background(), "users.detail", map[string]string{"id": "1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "home", state.Name)
	assert.True(t, state.Meta.Redirected, "a middleware-redirected state must carry the redirected meta flag")
}

func TestMiddlewareGenericErrorIsTransitionErr(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	boom := errors.New("middleware blew up")
	_, err = r.Use(func(ctx context.Context, to, from *State) (*State, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = r.Navigation().Navigate(context.Background(), "home", nil, nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrTransition, re.Code)
	assert.ErrorIs(t, err, boom)
}

func TestNavigateTimeoutSurfacesAsCancelled(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	r.Navigation().CanActivate("home", func(ctx context.Context, to, from *State) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = r.Navigation().Navigate(ctx, "home", nil, nil)
	require.Error(t, err)
}

func TestNavigateToDefaultUsesConfiguredRoute(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes(), WithDefaultRoute("home"))
	require.NoError(t, err)

	state, err := r.Navigation().NavigateToDefault(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "home", state.Name)
}

func TestNavigateToDefaultFailsWithoutOne(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	_, err = r.Navigation().NavigateToDefault(context.Background(), nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrRouteNotFound, re.Code)
}

func TestNavigateToDefaultFuncTakesPrecedence(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes(),
		WithDefaultRoute("home"),
		WithDefaultRouteFunc(func(get GetDependencyFunc) string { return "users.detail" }),
		WithDefaultParamsFunc(func(get GetDependencyFunc) map[string]string { return map[string]string{"id": "3"} }),
	)
	require.NoError(t, err)

	state, err := r.Navigation().NavigateToDefault(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "users.detail", state.Name)
	assert.Equal(t, "3", state.Params["id"])
}

func TestNavigateToPathMatchesRoute(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	state, err := r.Navigation().NavigateToPath(context.Background(), "/users/5", nil)
	require.NoError(t, err)
	assert.Equal(t, "users.detail", state.Name)
	assert.Equal(t, "5", state.Params["id"])
}

func TestNavigateToPathUnmatchedFailsByDefault(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	_, err = r.Navigation().NavigateToPath(context.Background(), "/nowhere", nil)
	require.Error(t, err)
	re, ok := AsRouterError(err)
	require.True(t, ok)
	assert.Equal(t, ErrRouteNotFound, re.Code)
}

func TestNavigateToPathAllowNotFoundCommitsSyntheticState(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes(), WithAllowNotFound(true))
	require.NoError(t, err)

	state, err := r.Navigation().NavigateToPath(context.Background(), "/nowhere", nil)
	require.NoError(t, err)
	assert.Equal(t, notFoundRouteName, state.Name)
	assert.Equal(t, "/nowhere", state.Params["path"])
}

func TestNavigateToPathPreservesMatchedPathByDefault(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	state, err := r.Navigation().NavigateToPath(context.Background(), "/users/5/", nil)
	require.NoError(t, err)
	assert.Equal(t, "/users/5/", state.Path, "rewritePathOnMatch defaults to false: the literal matched path survives")
}

func TestNavigateToPathRewritesToCanonicalPathWhenEnabled(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes(), WithRewritePathOnMatch(true))
	require.NoError(t, err)

	state, err := r.Navigation().NavigateToPath(context.Background(), "/users/5/", nil)
	require.NoError(t, err)
	assert.Equal(t, "/users/5", state.Path, "rewritePathOnMatch replaces the matched path with the canonical built path")
}

func TestCanNavigateToReflectsGuards(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	assert.True(t, r.Navigation().CanNavigateTo("home", nil))

	r.Navigation().CanActivate("home", func(ctx context.Context, to, from *State) (bool, error) {
		return false, nil
	})
	assert.False(t, r.Navigation().CanNavigateTo("home", nil))
}

func TestCanNavigateToUnknownRouteIsFalse(t *testing.T) {
	t.Parallel()
	r, err := New(forwardingRoutes())
	require.NoError(t, err)

	assert.False(t, r.Navigation().CanNavigateTo("does.not.exist", nil))
}
