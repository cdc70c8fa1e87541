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

// Package compiler implements the Matcher Service: it compiles a built
// route tree into lookup structures optimized for path-to-name matching
// (a static hash table with a bloom-filter negative lookup, and a
// first-segment index for dynamic routes) so that a navigation doesn't pay
// for a full tree walk on every path lookup.
package compiler

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"rivaas.dev/navigator/route"
)

// minRoutesForIndexing is the minimum number of dynamic routes required
// before building the first-segment index for filtering. Below this
// threshold, the index isn't worth its maintenance cost.
const minRoutesForIndexing = 10

// CompiledRoute is a pre-compiled, named route ready for matching: it
// carries the node's full name and a static-path hash when the node
// introduces no parameters anywhere in its ancestor chain. Match options
// are not stored per route; the Matcher holds one set for all of them.
type CompiledRoute struct {
	node    *route.Node
	name    string
	isStatic bool
	hash    uint64
}

// Name returns the route's dot-qualified name.
func (c *CompiledRoute) Name() string { return c.name }

// Node returns the underlying route tree node.
func (c *CompiledRoute) Node() *route.Node { return c.node }

// Matcher compiles every route node of a tree (inner nodes as well as
// leaves) into fast lookup structures and
// resolves concrete paths against them.
type Matcher struct {
	mu sync.RWMutex

	tree *route.Tree

	staticRoutes map[uint64]*CompiledRoute
	staticBloom  *BloomFilter

	dynamicRoutes []*CompiledRoute

	firstSegmentIndex    [128][]*CompiledRoute
	hasFirstSegmentIndex bool

	opts        route.MatchOptions
	codec       route.QueryCodec
}

// NewMatcher compiles every node in tree into the Matcher's lookup tables.
// bloomSize and numHashFuncs tune the static-route bloom filter.
func NewMatcher(tree *route.Tree, opts route.MatchOptions, codec route.QueryCodec, bloomSize uint64, numHashFuncs int) *Matcher {
	m := &Matcher{
		tree:         tree,
		staticRoutes: make(map[uint64]*CompiledRoute, 64),
		staticBloom:  NewBloomFilter(bloomSize, numHashFuncs),
		opts:         opts,
		codec:        codec,
	}
	m.compileNode(tree.Root())
	if len(m.dynamicRoutes) >= minRoutesForIndexing {
		m.buildFirstSegmentIndex()
	}
	return m
}

func (m *Matcher) compileNode(n *route.Node) {
	for _, child := range n.Children() {
		if child.FullName() != "" {
			m.addRoute(child)
		}
		m.compileNode(child)
	}
}

func (m *Matcher) addRoute(n *route.Node) {
	staticPath, isStatic := n.StaticPath()

	cr := &CompiledRoute{node: n, name: n.FullName(), isStatic: isStatic}

	if isStatic {
		cr.hash = hashPath(staticPath)
		m.staticRoutes[cr.hash] = cr
		m.staticBloom.Add([]byte(staticPath))
		return
	}

	m.dynamicRoutes = append(m.dynamicRoutes, cr)
	sort.SliceStable(m.dynamicRoutes, func(i, j int) bool {
		return specificity(m.dynamicRoutes[i].node) > specificity(m.dynamicRoutes[j].node)
	})
}

// specificity scores a node by how many static (non-parameter) ancestor
// segments it carries; more static segments sort first so literal
// prefixes win over a broader parameterized sibling.
func specificity(n *route.Node) int {
	score := 0
	for cur := n; cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		score += len(strings.Split(strings.Trim(cur.Path(), "/"), "/")) - len(cur.ParamMeta().URLParams)
	}
	return score
}

func (m *Matcher) buildFirstSegmentIndex() {
	for i := range m.firstSegmentIndex {
		m.firstSegmentIndex[i] = nil
	}
	for _, cr := range m.dynamicRoutes {
		first := firstLiteralByte(cr.node)
		if first < 0 || first >= 128 {
			// no stable leading literal (e.g. root-level param route):
			// index it under every bucket so it's never skipped.
			for i := range m.firstSegmentIndex {
				m.firstSegmentIndex[i] = append(m.firstSegmentIndex[i], cr)
			}
			continue
		}
		m.firstSegmentIndex[first] = append(m.firstSegmentIndex[first], cr)
	}
	m.hasFirstSegmentIndex = true
}

// firstLiteralByte finds the first literal character contributed by a
// node's ancestor chain, used to bucket a dynamic route for filtering.
func firstLiteralByte(n *route.Node) int {
	chain := []*route.Node{}
	for cur := n; cur != nil && cur.Parent() != nil; cur = cur.Parent() {
		chain = append([]*route.Node{cur}, chain...)
	}
	for _, seg := range chain {
		trimmed := strings.Trim(seg.Path(), "/")
		if trimmed == "" {
			continue
		}
		first := strings.SplitN(trimmed, "/", 2)[0]
		if first == "" || first[0] == ':' || first[0] == '*' {
			return -1
		}
		return int(first[0])
	}
	return -1
}

func hashPath(p string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(p))
	return h.Sum64()
}

// Match resolves path against the compiled lookup tables, returning the
// matched route and its captured parameters. Static routes are tried
// first via the bloom filter and hash table; dynamic routes fall back to
// an ordered scan, filtered by first-segment bucket when the index is
// built.
func (m *Matcher) Match(path string) (*CompiledRoute, map[string]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rawPath := path
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		rawPath = path[:idx]
	}

	hash := hashPath(rawPath)
	if m.staticBloom.TestWithPrecomputedHash(hash) {
		if cr, ok := m.staticRoutes[hash]; ok {
			if params, ok := route.Match(cr.node.MatchMeta(), path, m.opts, m.codec); ok {
				return cr, params, true
			}
		}
	}

	candidates := m.dynamicRoutes
	if m.hasFirstSegmentIndex {
		trimmed := strings.TrimPrefix(rawPath, "/")
		if trimmed != "" && trimmed[0] < 128 {
			candidates = m.firstSegmentIndex[trimmed[0]]
		}
	}

	for _, cr := range candidates {
		if params, ok := route.Match(cr.node.MatchMeta(), path, m.opts, m.codec); ok {
			return cr, params, true
		}
	}

	return nil, nil, false
}

// Rebuild recompiles the matcher from tree, used whenever the route tree
// is replaced (the tree itself is immutable; adding/removing a route
// produces a new tree and a new Matcher over it).
func (m *Matcher) Rebuild(tree *route.Tree) *Matcher {
	return NewMatcher(tree, m.opts, m.codec, uint64(len(m.staticBloom.bits)*64), len(m.staticBloom.seeds))
}
