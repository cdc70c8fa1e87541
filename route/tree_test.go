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

package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersTree(t *testing.T) *Tree {
	t.Helper()
	tree, err := Build([]RouteDefinition{
		{
			Name: "users",
			Path: "/users",
			Children: []RouteDefinition{
				{Name: "detail", Path: "/:id<[0-9]+>"},
			},
		},
	})
	require.NoError(t, err)
	return tree
}

// TestMatchMetaAggregatesAncestorSegments is a regression test: a node's own
// ParamMeta only covers its own local pattern segments, but the Matcher
// Service needs to compare a full concrete path against the whole ancestor
// chain's pattern in one pass. Before MatchMeta existed this would reject
// every nested dynamic route outright, since "users.detail"'s own meta has
// one segment (":id") while "/users/42" has two.
func TestMatchMetaAggregatesAncestorSegments(t *testing.T) {
	t.Parallel()
	tree := usersTree(t)

	node := tree.ByFullName("users.detail")
	require.NotNil(t, node)

	own := node.ParamMeta()
	assert.Len(t, own.segments, 1, "own meta should only carry the node's local segment")

	agg := node.MatchMeta()
	assert.Len(t, agg.segments, 2, "match meta should carry the full ancestor chain's segments")

	params, ok := Match(agg, "/users/42", DefaultMatchOptions(), DefaultQueryCodec{})
	require.True(t, ok, "a nested dynamic route must match its full concrete path")
	assert.Equal(t, "42", params["id"])

	_, ok = Match(own, "/users/42", DefaultMatchOptions(), DefaultQueryCodec{})
	assert.False(t, ok, "the node's own meta alone cannot match the full path")
}

func TestMatchMetaResetsAtAbsoluteBoundary(t *testing.T) {
	t.Parallel()
	tree, err := Build([]RouteDefinition{
		{
			Name: "admin",
			Path: "/admin?section",
			Children: []RouteDefinition{
				{Name: "settings", Path: "~/settings/:tab"},
			},
		},
	})
	require.NoError(t, err)

	node := tree.ByFullName("admin.settings")
	require.NotNil(t, node)

	agg := node.MatchMeta()
	assert.Len(t, agg.segments, 2, "an absolute child resets accumulation, not appends to it")

	params, ok := Match(agg, "/settings/general", DefaultMatchOptions(), DefaultQueryCodec{})
	require.True(t, ok)
	assert.Equal(t, "general", params["tab"])
	assert.NotContains(t, params, "section")
}

func TestBuildPathStaticFastPath(t *testing.T) {
	t.Parallel()
	tree := usersTree(t)

	path, err := tree.BuildPath("users", nil, nil, DefaultBuildOptions())
	require.NoError(t, err)
	assert.Equal(t, "/users", path)
}

func TestBuildPathNestedWithParams(t *testing.T) {
	t.Parallel()
	tree := usersTree(t)

	path, err := tree.BuildPath("users.detail", map[string]string{"id": "7"}, map[string]bool{"id": true}, DefaultBuildOptions())
	require.NoError(t, err)
	assert.Equal(t, "/users/7", path)
}

func TestBuildPathUnknownNameFails(t *testing.T) {
	t.Parallel()
	tree := usersTree(t)

	_, err := tree.BuildPath("nope", nil, nil, DefaultBuildOptions())
	require.Error(t, err)
	re, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrRouteNotFound, re.Code)
}

func TestBuildPathConstraintViolation(t *testing.T) {
	t.Parallel()
	tree := usersTree(t)

	_, err := tree.BuildPath("users.detail", map[string]string{"id": "not-a-number"}, map[string]bool{"id": true}, DefaultBuildOptions())
	require.Error(t, err)
	re, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrConstraintViolation, re.Code)
}

func TestBuildDuplicateSiblingNameRejected(t *testing.T) {
	t.Parallel()
	_, err := Build([]RouteDefinition{
		{Name: "home", Path: "/a"},
		{Name: "home", Path: "/b"},
	})
	require.Error(t, err)
	re, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrDuplicateRoute, re.Code)
}

func TestBuildDuplicateSiblingPathRejected(t *testing.T) {
	t.Parallel()
	_, err := Build([]RouteDefinition{
		{Name: "a", Path: "/shared"},
		{Name: "b", Path: "/shared"},
	})
	require.Error(t, err)
	re, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrDuplicateRoute, re.Code)
}

func TestStaticPathOnlyComputedWithoutParams(t *testing.T) {
	t.Parallel()
	tree := usersTree(t)

	staticNode := tree.ByFullName("users")
	_, ok := staticNode.StaticPath()
	assert.True(t, ok, "a route with no params anywhere in its chain should get a precomputed static path")

	dynamicNode := tree.ByFullName("users.detail")
	_, ok = dynamicNode.StaticPath()
	assert.False(t, ok, "a route with a param in its chain must not get a precomputed static path")
}

func TestApplyTrailingSlash(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/users/", applyTrailingSlash("/users", TrailingSlashAlways))
	assert.Equal(t, "/users", applyTrailingSlash("/users/", TrailingSlashNever))
	assert.Equal(t, "/", applyTrailingSlash("/", TrailingSlashNever))
	assert.Equal(t, "/users/", applyTrailingSlash("/users/", TrailingSlashPreserve))
}
