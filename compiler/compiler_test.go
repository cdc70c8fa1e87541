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

package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/navigator/route"
)

func buildTree(t *testing.T, defs []route.RouteDefinition) *route.Tree {
	t.Helper()
	tree, err := route.Build(defs)
	require.NoError(t, err)
	return tree
}

// TestMatcherNestedDynamicRoute is a regression test for the matcher using
// a node's own (unaggregated) pattern meta instead of its full ancestor
// chain: a child route nested under a parent segment must still match its
// complete concrete path.
func TestMatcherNestedDynamicRoute(t *testing.T) {
	t.Parallel()
	tree := buildTree(t, []route.RouteDefinition{
		{
			Name: "users",
			Path: "/users",
			Children: []route.RouteDefinition{
				{Name: "detail", Path: "/:id<[0-9]+>"},
			},
		},
	})

	m := NewMatcher(tree, route.DefaultMatchOptions(), route.DefaultQueryCodec{}, 1024, 3)

	cr, params, ok := m.Match("/users/42")
	require.True(t, ok, "a nested dynamic route must match its full path via the Matcher Service")
	assert.Equal(t, "users.detail", cr.Name())
	assert.Equal(t, "42", params["id"])

	_, _, ok = m.Match("/users/abc")
	assert.False(t, ok, "the inline constraint on the nested param must still apply")
}

func TestMatcherStaticRouteViaBloomAndHash(t *testing.T) {
	t.Parallel()
	tree := buildTree(t, []route.RouteDefinition{
		{Name: "home", Path: "/"},
		{Name: "about", Path: "/about"},
	})
	m := NewMatcher(tree, route.DefaultMatchOptions(), route.DefaultQueryCodec{}, 1024, 3)

	cr, _, ok := m.Match("/about")
	require.True(t, ok)
	assert.Equal(t, "about", cr.Name())

	_, _, ok = m.Match("/missing")
	assert.False(t, ok)
}

func TestMatcherSpecificityPrefersMoreStaticSegments(t *testing.T) {
	t.Parallel()
	tree := buildTree(t, []route.RouteDefinition{
		{Name: "userByID", Path: "/users/:id"},
		{Name: "userSettings", Path: "/users/settings/:tab"},
	})
	m := NewMatcher(tree, route.DefaultMatchOptions(), route.DefaultQueryCodec{}, 1024, 3)

	cr, params, ok := m.Match("/users/settings/profile")
	require.True(t, ok)
	assert.Equal(t, "userSettings", cr.Name(), "the route with more static ancestor segments should win")
	assert.Equal(t, "profile", params["tab"])
}

func TestMatcherFirstSegmentIndexingAboveThreshold(t *testing.T) {
	t.Parallel()
	var defs []route.RouteDefinition
	for i := 0; i < minRoutesForIndexing+2; i++ {
		defs = append(defs, route.RouteDefinition{
			Name: fmt.Sprintf("route%d", i),
			Path: fmt.Sprintf("/prefix%d/:id", i),
		})
	}
	tree := buildTree(t, defs)
	m := NewMatcher(tree, route.DefaultMatchOptions(), route.DefaultQueryCodec{}, 1024, 3)

	require.True(t, m.hasFirstSegmentIndex, "indexing should kick in once past the minimum route count")

	cr, params, ok := m.Match("/prefix3/abc")
	require.True(t, ok)
	assert.Equal(t, "route3", cr.Name())
	assert.Equal(t, "abc", params["id"])
}

func TestMatcherRebuildReflectsNewTree(t *testing.T) {
	t.Parallel()
	tree := buildTree(t, []route.RouteDefinition{
		{Name: "home", Path: "/"},
	})
	m := NewMatcher(tree, route.DefaultMatchOptions(), route.DefaultQueryCodec{}, 1024, 3)

	_, _, ok := m.Match("/about")
	assert.False(t, ok)

	tree2 := buildTree(t, []route.RouteDefinition{
		{Name: "home", Path: "/"},
		{Name: "about", Path: "/about"},
	})
	m2 := m.Rebuild(tree2)

	cr, _, ok := m2.Match("/about")
	require.True(t, ok)
	assert.Equal(t, "about", cr.Name())
}
