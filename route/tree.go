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
	"regexp"
	"strings"
)

// BuildOptions configures Tree.BuildPath.
type BuildOptions struct {
	TrailingSlash TrailingSlashMode
	Codec         QueryCodec
}

// DefaultBuildOptions returns the baseline BuildPath options.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{TrailingSlash: TrailingSlashPreserve}
}

// Tree is a named hierarchical trie of routes, deeply immutable once built.
// Any mutation (add/update/remove route) produces an entirely new Tree
// rather than modifying this one in place (spec §5).
type Tree struct {
	root       *Node
	byFullName map[string]*Node
}

// Build constructs a Tree from the given top-level definitions in two
// passes: allocate nodes in declaration order (resolving dot-qualified flat
// names into their nested position as each is encountered, so a
// dot-qualified name only resolves against routes declared before it), then
// compute the per-node caches (param type maps, static paths) once the
// whole shape is known (spec §4.2).
func Build(defs []RouteDefinition) (*Tree, error) {
	root := &Node{childByName: map[string]*Node{}}
	t := &Tree{root: root, byFullName: map[string]*Node{"": root}}

	for i := range defs {
		if err := t.attach(root, &defs[i]); err != nil {
			return nil, err
		}
	}

	t.computeCaches(root)
	return t, nil
}

// attach resolves def's parent (by walking any dot-qualified prefix of its
// name relative to parent) and links a new Node for it, then recurses into
// its children.
func (t *Tree) attach(parent *Node, def *RouteDefinition) error {
	segs := segmentNames(def.Name)
	if len(segs) == 0 {
		return New(ErrInvalidRoute, "route definition has an empty name")
	}
	localName := segs[len(segs)-1]

	actualParent := parent
	if len(segs) > 1 {
		prefixFullName := strings.Join(segs[:len(segs)-1], ".")
		if parent.fullName != "" {
			prefixFullName = parent.fullName + "." + prefixFullName
		}
		p, ok := t.byFullName[prefixFullName]
		if !ok {
			return New(ErrInvalidRoute, "dot-qualified parent route does not exist").
				WithField("name", def.Name).
				WithField("parent", prefixFullName)
		}
		actualParent = p
	}

	absolute := strings.HasPrefix(def.Path, "~")
	path := def.Path
	if absolute {
		path = path[1:]
	}

	for _, sibling := range actualParent.orderedChildren {
		if sibling.name == localName {
			return New(ErrDuplicateRoute, "sibling route name already registered").WithField("name", def.Name)
		}
		if sibling.path == path {
			return New(ErrDuplicateRoute, "sibling routes share an identical path").
				WithField("name", def.Name).
				WithField("path", def.Path)
		}
	}

	ownMeta, err := Parse(path)
	if err != nil {
		return err
	}

	if absolute && actualParent != t.root && len(actualParent.ownMeta.URLParams) > 0 {
		return New(ErrInvalidRoute, "absolute path cannot appear under a segment declaring URL parameters").
			WithField("name", def.Name)
	}

	node := &Node{
		name:        localName,
		path:        path,
		absolute:    absolute,
		parent:      actualParent,
		definition:  def,
		childByName: map[string]*Node{},
		ownMeta:     ownMeta,
	}
	if actualParent.fullName == "" {
		node.fullName = localName
	} else {
		node.fullName = actualParent.fullName + "." + localName
	}

	actualParent.orderedChildren = append(actualParent.orderedChildren, node)
	actualParent.childByName[localName] = node
	if !absolute {
		actualParent.nonAbsoluteChildren = append(actualParent.nonAbsoluteChildren, node)
	}
	t.byFullName[node.fullName] = node

	for i := range def.Children {
		if err := t.attach(node, &def.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

// computeCaches walks the whole tree computing each node's param-type map
// and, where no ancestor (including the node itself) introduces a
// parameter, its precomputed static path.
func (t *Tree) computeCaches(node *Node) {
	for _, child := range node.orderedChildren {
		ptm := make(map[string]ParamOrigin, len(child.ownMeta.URLParams)+len(child.ownMeta.QueryParams))
		for _, p := range child.ownMeta.URLParams {
			ptm[p] = OriginURL
		}
		for _, p := range child.ownMeta.QueryParams {
			ptm[p] = OriginQuery
		}
		child.paramTypeMap = ptm
		child.matchMeta = aggregateMeta(child.chain())

		if isStaticChain(child) {
			built, _ := assemblePath(child, nil, nil)
			sp := built
			child.staticPath = &sp
		}

		t.computeCaches(child)
	}
}

// aggregateMeta concatenates the pattern segments of every node in chain
// from the last absolute reset point onward into a single ParamMeta ready
// to match a complete concrete path in one pass (the Matcher Service
// matches against a node's full accumulated pattern, not its own local
// segment alone, the same way assemblePath accumulates the built path
// string).
func aggregateMeta(chain []*Node) *ParamMeta {
	start := 0
	for i, n := range chain {
		if n.absolute {
			start = i
		}
	}

	agg := &ParamMeta{ConstraintPatterns: make(map[string]*regexp.Regexp)}
	var patternParts []string
	for _, n := range chain[start:] {
		agg.segments = append(agg.segments, n.ownMeta.segments...)
		agg.URLParams = append(agg.URLParams, n.ownMeta.URLParams...)
		agg.SpatParams = append(agg.SpatParams, n.ownMeta.SpatParams...)
		agg.QueryParams = append(agg.QueryParams, n.ownMeta.QueryParams...)
		for k, v := range n.ownMeta.ConstraintPatterns {
			agg.ConstraintPatterns[k] = v
		}
		if n.ownMeta.PathPattern != "" {
			patternParts = append(patternParts, n.ownMeta.PathPattern)
		}
	}
	agg.PathPattern = strings.Join(patternParts, "/")
	return agg
}

func isStaticChain(n *Node) bool {
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		if len(cur.ownMeta.URLParams) > 0 || len(cur.ownMeta.QueryParams) > 0 {
			return false
		}
		if cur.absolute {
			break
		}
	}
	return true
}

// GetSegmentsByName returns the chain of nodes (root excluded) making up
// the named route, root-most first, or false if the name is unregistered.
func (t *Tree) GetSegmentsByName(name string) ([]*Node, bool) {
	node, ok := t.byFullName[name]
	if !ok {
		return nil, false
	}
	return node.chain(), true
}

// ByFullName returns the node registered under the given dot-qualified
// name, or nil.
func (t *Tree) ByFullName(name string) *Node {
	return t.byFullName[name]
}

// Root returns the tree's synthetic root node (the empty name).
func (t *Tree) Root() *Node { return t.root }

// assemblePath concatenates the built path of every node in chain,
// restarting from empty whenever an absolute node is encountered.
func assemblePath(target *Node, values map[string]string, present map[string]bool) (string, []*Node) {
	chain := target.chain()
	var b strings.Builder
	for _, n := range chain {
		if n.absolute {
			b.Reset()
		}
		b.WriteString(Build(n.ownMeta, values, present))
	}
	out := b.String()
	if out == "" {
		out = "/"
	}
	return out, chain
}

// BuildPath constructs a concrete path for the named route, substituting
// params and appending any declared query parameters (spec §4.2):
//
//  1. Fast path: no params supplied and default options requested -> return
//     the precomputed static path, if the route has one.
//  2. Otherwise concatenate each ancestor segment's built path, validating
//     inline constraints against the supplied values along the way.
//  3. Append declared query parameters present in values, then apply the
//     requested trailing-slash discipline.
func (t *Tree) BuildPath(name string, values map[string]string, present map[string]bool, opts BuildOptions) (string, error) {
	node, ok := t.byFullName[name]
	if !ok || node == t.root {
		return "", New(ErrRouteNotFound, "no route registered under name").WithField("name", name)
	}

	if len(values) == 0 && (opts.TrailingSlash == "" || opts.TrailingSlash == TrailingSlashPreserve) {
		if sp, ok := node.StaticPath(); ok {
			return sp, nil
		}
	}

	chain := node.chain()
	for _, n := range chain {
		if err := validateChainConstraints(n, values); err != nil {
			return "", err
		}
	}

	built, _ := assemblePath(node, values, present)

	query := map[string]any{}
	for _, n := range chain {
		for _, q := range n.ownMeta.QueryParams {
			if v, ok := values[q]; ok && (present == nil || present[q]) {
				query[q] = v
			}
		}
	}
	if len(query) > 0 {
		codec := opts.Codec
		if codec == nil {
			codec = DefaultQueryCodec{}
		}
		built += "?" + codec.Build(query, QueryCodecOptions{})
	}

	return applyTrailingSlash(built, opts.TrailingSlash), nil
}

func validateChainConstraints(n *Node, values map[string]string) error {
	if len(n.ownMeta.ConstraintPatterns) == 0 {
		return nil
	}
	var constraints []Constraint
	for param, re := range n.ownMeta.ConstraintPatterns {
		constraints = append(constraints, Constraint{Param: param, Pattern: re})
	}
	return ValidateConstraints(values, constraints, n.fullName)
}

func applyTrailingSlash(path string, mode TrailingSlashMode) string {
	switch mode {
	case TrailingSlashAlways:
		if !strings.HasSuffix(path, "/") {
			return path + "/"
		}
		return path
	case TrailingSlashNever:
		if path != "/" && strings.HasSuffix(path, "/") {
			return strings.TrimSuffix(path, "/")
		}
		return path
	default: // preserve, strict
		return path
	}
}
