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
	"net/url"
	"regexp"
	"strings"
)

// WildName is the key unnamed splats (bare "*") are exposed under, both in
// parse and build, for consistency (spec §4.1 edge-case policy).
const WildName = "wild"

// QueryParamsMode controls how unexpected query-string keys are treated
// during Match.
type QueryParamsMode string

const (
	QueryParamsDefault QueryParamsMode = "default" // ignore unexpected keys
	QueryParamsStrict  QueryParamsMode = "strict"   // fail on unexpected keys
	QueryParamsLoose   QueryParamsMode = "loose"    // absorb unexpected keys
)

// URLParamsEncoding controls how path parameter values are encoded/decoded.
type URLParamsEncoding string

const (
	EncodingDefault      URLParamsEncoding = "default"
	EncodingURI          URLParamsEncoding = "uri"
	EncodingURIComponent URLParamsEncoding = "uriComponent"
	EncodingNone         URLParamsEncoding = "none"
)

// TrailingSlashMode controls path building/matching trailing-slash discipline.
type TrailingSlashMode string

const (
	TrailingSlashPreserve TrailingSlashMode = "preserve"
	TrailingSlashStrict   TrailingSlashMode = "strict"
	TrailingSlashAlways   TrailingSlashMode = "always"
	TrailingSlashNever    TrailingSlashMode = "never"
)

// MatchOptions configures a single Match call. The Matcher Service
// holds one precomputed set per Matcher and reuses it for every route and
// every call rather than constructing them per request (spec §4.3).
type MatchOptions struct {
	CaseSensitive       bool
	StrictTrailingSlash bool
	StrongMatching      bool
	QueryParamsMode     QueryParamsMode
	URLParamsEncoding   URLParamsEncoding
}

// DefaultMatchOptions returns the baseline option set used when a caller
// supplies none.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		CaseSensitive:       false,
		StrictTrailingSlash: false,
		StrongMatching:      true,
		QueryParamsMode:     QueryParamsDefault,
		URLParamsEncoding:   EncodingDefault,
	}
}

// segKind distinguishes the three kinds of path segment a pattern may contain.
type segKind uint8

const (
	segLiteral segKind = iota
	segParam
	segSplat
)

type segment struct {
	kind       segKind
	literal    string // segLiteral
	name       string // segParam / segSplat
	optional   bool   // segParam only
	constraint string // raw regex source, segParam only, empty if none
}

// ParamMeta is the parsed, immutable shape of a route pattern: which
// parameters travel in the URL path, which travel in the query string,
// which are splats, their constraint patterns, and the normalized pattern
// string used for matching and building (spec §4.1, §3 RouteNode.paramMeta).
type ParamMeta struct {
	URLParams          []string
	QueryParams         []string
	SpatParams          []string
	ConstraintPatterns  map[string]*regexp.Regexp
	PathPattern         string
	segments            []segment
}

// Parse extracts named params (:name), optional params (:name?), named
// splats (*name), unnamed splats (*, exposed under WildName), inline
// constraints (:name<regex>), and trailing query-param declarations
// (?a&b) from a route pattern.
func Parse(pattern string) (*ParamMeta, error) {
	main, query := splitQueryDeclaration(pattern)

	main = collapseSlashes(main)
	parts := splitSegments(main)

	meta := &ParamMeta{
		ConstraintPatterns: make(map[string]*regexp.Regexp),
	}

	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		switch part[0] {
		case ':':
			name, constraint, optional := parseParamToken(part[1:])
			if name == "" {
				return nil, New(ErrInvalidRoute, "empty parameter name in pattern").WithField("pattern", pattern)
			}
			segs = append(segs, segment{kind: segParam, name: name, optional: optional, constraint: constraint})
			meta.URLParams = append(meta.URLParams, name)
			if constraint != "" {
				meta.ConstraintPatterns[name] = constraintFromInline(name, constraint).Pattern
			}
		case '*':
			name := part[1:]
			if name == "" {
				name = WildName
			}
			segs = append(segs, segment{kind: segSplat, name: name})
			meta.URLParams = append(meta.URLParams, name)
			meta.SpatParams = append(meta.SpatParams, name)
		default:
			segs = append(segs, segment{kind: segLiteral, literal: part})
		}
	}
	meta.segments = segs
	meta.PathPattern = main

	for _, q := range query {
		if q == "" {
			continue
		}
		meta.QueryParams = append(meta.QueryParams, q)
	}

	return meta, nil
}

// parseParamToken splits a ":name<constraint>?" token (without its leading
// ':') into name, inline constraint source, and the optional flag.
func parseParamToken(token string) (name, constraint string, optional bool) {
	optional = strings.HasSuffix(token, "?")
	if optional {
		token = token[:len(token)-1]
	}
	if idx := strings.IndexByte(token, '<'); idx >= 0 && strings.HasSuffix(token, ">") {
		name = token[:idx]
		constraint = token[idx+1 : len(token)-1]
		return
	}
	name = token
	return
}

// splitQueryDeclaration separates a pattern's path portion from a trailing
// "?a&b" query-parameter declaration.
//
// This is ambiguous with a pattern ending in an optional param (":id?")
// because both use a bare '?'. The rule applied: an empty suffix after the
// last '?' is always the optional-param marker (a query declaration with no
// names is never useful); a non-empty suffix is treated as a query
// declaration only if it is a bare name(&name)* list with no further path
// syntax, otherwise it's left untouched as part of the path (and will be
// rejected later as an invalid segment if it truly isn't one).
func splitQueryDeclaration(pattern string) (main string, query []string) {
	idx := strings.LastIndexByte(pattern, '?')
	if idx < 0 {
		return pattern, nil
	}
	suffix := pattern[idx+1:]
	if suffix == "" {
		return pattern, nil
	}
	if !isQueryDeclList(suffix) {
		return pattern, nil
	}
	return pattern[:idx], strings.Split(suffix, "&")
}

func isQueryDeclList(s string) bool {
	if strings.ContainsAny(s, "/:*<>?") {
		return false
	}
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			return false
		}
	}
	return true
}

// collapseSlashes collapses consecutive slashes and normalizes "/" to "".
func collapseSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p == "/" {
		return ""
	}
	return p
}

func splitSegments(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Build substitutes values (pre-encoded by the caller) into pattern,
// omitting optional and splat params whose value is absent, and leaving
// required placeholders in place when a value is missing (spec §4.1: the
// caller is expected to treat this as a programmer error, so Build itself
// does not fail).
func Build(meta *ParamMeta, values map[string]string, present map[string]bool) string {
	var b strings.Builder
	wrote := false
	for _, seg := range meta.segments {
		switch seg.kind {
		case segLiteral:
			b.WriteByte('/')
			b.WriteString(seg.literal)
			wrote = true
		case segParam:
			val, ok := values[seg.name]
			if !ok && present != nil {
				ok = present[seg.name]
			}
			if !ok {
				if seg.optional {
					continue
				}
				b.WriteByte('/')
				b.WriteString(":" + seg.name)
				wrote = true
				continue
			}
			b.WriteByte('/')
			b.WriteString(val)
			wrote = true
		case segSplat:
			val, ok := values[seg.name]
			if !ok || val == "" && present != nil && !present[seg.name] {
				continue
			}
			b.WriteByte('/')
			b.WriteString(val)
			wrote = true
		}
	}
	if !wrote {
		return "/"
	}
	return b.String()
}

// Match performs a segment-wise comparison of path against pattern,
// returning the captured params on success (spec §4.1).
func Match(meta *ParamMeta, path string, opts MatchOptions, codec QueryCodec) (map[string]string, bool) {
	rawPath := path
	queryString := ""
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		rawPath = path[:idx]
		queryString = path[idx+1:]
	}

	if opts.StrictTrailingSlash {
		hasSlash := strings.HasSuffix(rawPath, "/") && rawPath != "/"
		wantSlash := strings.HasSuffix(meta.PathPattern, "/") && meta.PathPattern != ""
		if hasSlash != wantSlash {
			return nil, false
		}
	}

	pathSegs := splitSegments(collapseSlashes(rawPath))

	params := make(map[string]string)
	pi := 0
	for si, seg := range meta.segments {
		switch seg.kind {
		case segLiteral:
			if pi >= len(pathSegs) {
				return nil, false
			}
			if !segEqual(seg.literal, pathSegs[pi], opts.CaseSensitive) {
				return nil, false
			}
			pi++
		case segParam:
			if pi >= len(pathSegs) {
				if seg.optional {
					continue
				}
				return nil, false
			}
			val := decodeParam(pathSegs[pi], opts.URLParamsEncoding)
			if re, ok := meta.ConstraintPatterns[seg.name]; ok && !re.MatchString(val) {
				return nil, false
			}
			params[seg.name] = val
			pi++
		case segSplat:
			isLast := si == len(meta.segments)-1
			if !isLast {
				// splats are only meaningful as the final segment; treat
				// remaining segments as literal fallthrough is unsupported.
				return nil, false
			}
			rest := pathSegs[pi:]
			params[seg.name] = strings.Join(rest, "/")
			pi = len(pathSegs)
		}
	}

	if opts.StrongMatching && pi != len(pathSegs) {
		return nil, false
	}

	queryValues, ok := matchQuery(meta, queryString, opts, codec, params)
	if !ok {
		return nil, false
	}
	return queryValues, true
}

func matchQuery(meta *ParamMeta, queryString string, opts MatchOptions, codec QueryCodec, params map[string]string) (map[string]string, bool) {
	if codec == nil {
		codec = DefaultQueryCodec{}
	}
	parsed := codec.Parse(queryString, QueryCodecOptions{})

	declared := make(map[string]bool, len(meta.QueryParams))
	for _, q := range meta.QueryParams {
		declared[q] = true
	}

	switch opts.QueryParamsMode {
	case QueryParamsStrict:
		for k := range parsed {
			if !declared[k] {
				return nil, false
			}
		}
	case QueryParamsLoose:
		for k, v := range parsed {
			params[k] = v
		}
	case QueryParamsDefault, "":
		// fall through: only copy declared keys
	}

	for _, q := range meta.QueryParams {
		if v, ok := parsed[q]; ok {
			params[q] = v
		}
	}

	return params, true
}

func segEqual(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func decodeParam(v string, encoding URLParamsEncoding) string {
	switch encoding {
	case EncodingNone:
		return v
	case EncodingURIComponent, EncodingDefault, "":
		if dec, err := url.QueryUnescape(v); err == nil {
			return dec
		}
		return v
	case EncodingURI:
		if dec, err := url.PathUnescape(v); err == nil {
			return dec
		}
		return v
	default:
		return v
	}
}
