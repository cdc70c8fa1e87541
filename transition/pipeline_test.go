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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/navigator/route"
)

type stubGuards struct {
	activate   map[string]ActivateGuard
	deactivate map[string]DeactivateGuard
}

func (s stubGuards) CanActivate(name string) ActivateGuard     { return s.activate[name] }
func (s stubGuards) CanDeactivate(name string) DeactivateGuard { return s.deactivate[name] }

type stubResolver struct {
	states map[string]*State
}

func (r stubResolver) Resolve(name string, params map[string]string) (*State, error) {
	if s, ok := r.states[name]; ok {
		cp := *s
		cp.Params = params
		return &cp, nil
	}
	return nil, route.New(route.ErrRouteNotFound, "no such route").WithField("name", name)
}

func newTestPipeline(t *testing.T, guards stubGuards, mws []Middleware) (*Pipeline, *route.Tree) {
	t.Helper()
	tree := buildTestTree(t)
	return &Pipeline{
		Tree:        tree,
		Guards:      guards,
		Middlewares: mws,
		Resolver:    stubResolver{states: map[string]*State{"home": {Name: "home"}}},
	}, tree
}

func TestPipelineRunCommitsOnSuccess(t *testing.T) {
	t.Parallel()
	p, _ := newTestPipeline(t, stubGuards{}, nil)

	to := &State{Name: "home"}
	got, err := p.Run(context.Background(), to, nil)
	require.NoError(t, err)
	assert.Equal(t, "home", got.Name)
}

func TestPipelineCanDeactivateRejects(t *testing.T) {
	t.Parallel()
	guards := stubGuards{
		deactivate: map[string]DeactivateGuard{
			"users.detail": func(ctx context.Context, to, from *State) (bool, error) { return false, nil },
		},
	}
	p, _ := newTestPipeline(t, guards, nil)

	from := &State{Name: "users.detail", Params: map[string]string{"id": "1"}}
	to := &State{Name: "home"}

	_, err := p.Run(context.Background(), to, from)
	require.Error(t, err)
	re, ok := route.As(err)
	require.True(t, ok)
	assert.Equal(t, route.ErrCannotDeactivate, re.Code)
}

func TestPipelineCanActivateRejects(t *testing.T) {
	t.Parallel()
	guards := stubGuards{
		activate: map[string]ActivateGuard{
			"home": func(ctx context.Context, to, from *State) (bool, error) { return false, nil },
		},
	}
	p, _ := newTestPipeline(t, guards, nil)

	_, err := p.Run(context.Background(), &State{Name: "home"}, nil)
	require.Error(t, err)
	re, ok := route.As(err)
	require.True(t, ok)
	assert.Equal(t, route.ErrCannotActivate, re.Code)
}

func TestPipelineGuardErrorIsReclassified(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	guards := stubGuards{
		activate: map[string]ActivateGuard{
			"home": func(ctx context.Context, to, from *State) (bool, error) { return false, boom },
		},
	}
	p, _ := newTestPipeline(t, guards, nil)

	_, err := p.Run(context.Background(), &State{Name: "home"}, nil)
	require.Error(t, err)
	re, ok := route.As(err)
	require.True(t, ok)
	assert.Equal(t, route.ErrCannotActivate, re.Code)
	assert.ErrorIs(t, err, boom)
}

func TestPipelineMiddlewareCanReplaceState(t *testing.T) {
	t.Parallel()
	mw := func(ctx context.Context, to, from *State) (*State, error) {
		cp := *to
		cp.Params = map[string]string{"injected": "yes"}
		return &cp, nil
	}
	p, _ := newTestPipeline(t, stubGuards{}, []Middleware{mw})

	got, err := p.Run(context.Background(), &State{Name: "home"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", got.Params["injected"])
}

func TestPipelineMiddlewareErrorFailsWithTransitionCode(t *testing.T) {
	t.Parallel()
	boom := errors.New("middleware exploded")
	mw := func(ctx context.Context, to, from *State) (*State, error) { return nil, boom }
	p, _ := newTestPipeline(t, stubGuards{}, []Middleware{mw})

	_, err := p.Run(context.Background(), &State{Name: "home"}, nil)
	require.Error(t, err)
	re, ok := route.As(err)
	require.True(t, ok)
	assert.Equal(t, route.ErrTransition, re.Code)
}

func TestPipelineMiddlewareRedirectRestartsPipeline(t *testing.T) {
	t.Parallel()
	redirected := false
	mw := func(ctx context.Context, to, from *State) (*State, error) {
		if to.Name == "users.detail" && !redirected {
			redirected = true
			return nil, &Redirect{ToName: "home"}
		}
		return to, nil
	}
	p, _ := newTestPipeline(t, stubGuards{}, []Middleware{mw})

	got, err := p.Run(context.Background(), &State{Name: "users.detail", Params: map[string]string{"id": "1"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "home", got.Name)
}

func TestPipelineRedirectLoopFailsAfterMaxRedirects(t *testing.T) {
	t.Parallel()
	mw := func(ctx context.Context, to, from *State) (*State, error) {
		return nil, &Redirect{ToName: "home"}
	}
	p, tree := newTestPipeline(t, stubGuards{}, []Middleware{mw})
	_ = tree

	_, err := p.Run(context.Background(), &State{Name: "home"}, nil)
	require.Error(t, err)
	re, ok := route.As(err)
	require.True(t, ok)
	assert.Equal(t, route.ErrTransition, re.Code)
}

func TestPipelineRunRespectsCancellation(t *testing.T) {
	t.Parallel()
	p, _ := newTestPipeline(t, stubGuards{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, &State{Name: "home"}, nil)
	require.Error(t, err)
	re, ok := route.As(err)
	require.True(t, ok)
	assert.Equal(t, route.ErrTransitionCancelled, re.Code)
}
