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

package browser

import (
	"context"
	"strings"
	"sync"

	"rivaas.dev/navigator"
	"rivaas.dev/navigator/internal/rlog"
)

// reservedProtocols are the only URL schemes matchUrl accepts; anything
// else (javascript:, data:, ...) is rejected rather than matched, since a
// popstate/link-click payload carrying one should never be treated as an
// in-app navigation.
var reservedProtocols = map[string]bool{"http": true, "https": true, "": true}

// Plugin bridges a Router's navigation state to the host's history API:
// every successful Navigate call pushes or replaces a history entry, and
// every popstate event re-runs Navigate against the URL the browser has
// already switched to.
type Plugin struct {
	env      Environment
	base     string
	hashMode bool
	replace  bool

	// hashPrefix is only meaningful in hash mode; preserveHash only in
	// history mode. Setting the wrong one for the active mode is a
	// conflicting option (spec §4.9) and is deleted with a warning in Init.
	hashPrefix   string
	preserveHash bool
	mergeState   bool

	mu             sync.Mutex
	inFlight       bool
	pendingURL     *string
	lastKnownState any

	unsubPop       func()
	unsubObserver  func()
	unsubLifecycle func()
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithBasePath sets a path prefix every built/matched URL is relative to.
func WithBasePath(p string) Option {
	return func(pl *Plugin) { pl.base = p }
}

// WithHashMode switches between pushState-based URLs and hash-fragment
// URLs (e.g. "/#/users/42" instead of "/users/42").
func WithHashMode(enabled bool) Option {
	return func(pl *Plugin) { pl.hashMode = enabled }
}

// WithHashPrefix sets the literal text between the "#" and the path in
// hash mode (e.g. "!" for "/#!/users/42"). Default: empty. Meaningless in
// history mode; Init deletes it with a logged warning if set there.
func WithHashPrefix(prefix string) Option {
	return func(pl *Plugin) { pl.hashPrefix = prefix }
}

// WithPreserveHash keeps the URL's existing hash fragment across a
// history-mode push/replace instead of discarding it. Meaningless in hash
// mode, where the hash fragment *is* the path; Init deletes it with a
// logged warning if set there.
func WithPreserveHash(enabled bool) Option {
	return func(pl *Plugin) { pl.preserveHash = enabled }
}

// WithMergeState shallow-merges the history entry payload over whatever
// the host application previously stored in the current history entry
// (via Environment.CurrentState), instead of replacing it outright.
func WithMergeState(enabled bool) Option {
	return func(pl *Plugin) { pl.mergeState = enabled }
}

// New builds a browser Plugin over the given Environment.
func New(env Environment, opts ...Option) *Plugin {
	p := &Plugin{env: env}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// validateOptions deletes conflicting option combinations (spec §4.9),
// logging a warning for each through the router's configured logger
// rather than failing Init outright.
func (p *Plugin) validateOptions(logger rlog.Logger) {
	if !p.hashMode && p.hashPrefix != "" {
		logger.Warn("browser: hashPrefix has no effect in history mode, discarding", "hashPrefix", p.hashPrefix)
		p.hashPrefix = ""
	}
	if p.hashMode && p.preserveHash {
		logger.Warn("browser: preserveHash has no effect in hash mode, discarding")
		p.preserveHash = false
	}
}

// Init implements navigator.Plugin: it subscribes to both the router's
// transition-success events (to reflect committed navigations into the
// URL) and the router's lifecycle (to acquire/release the environment's
// popstate listener only while the router is started, per spec §5's
// "scoped acquisition of the popstate listener"), and exposes a
// BrowserNavigator capability through the router's extension slot.
func (p *Plugin) Init(r *navigator.Router) (func(), error) {
	p.validateOptions(r.Config().Logger())

	unsubObserver, err := r.Subscribe(navigator.ObserverFunc(func(to, from *navigator.State) {
		if to == nil {
			return
		}
		p.reflectToHistory(to, from)
	}))
	if err != nil {
		return nil, err
	}
	p.unsubObserver = unsubObserver

	unsubLifecycle, err := r.OnLifecycle(func(active bool) {
		if active {
			p.acquirePopState(r)
		} else {
			p.releasePopState()
		}
	})
	if err != nil {
		unsubObserver()
		return nil, err
	}
	p.unsubLifecycle = unsubLifecycle

	r.Extensions().Set("browser", BrowserNavigator(p))

	return func() {
		if p.unsubObserver != nil {
			p.unsubObserver()
		}
		if p.unsubLifecycle != nil {
			p.unsubLifecycle()
		}
		p.releasePopState()
	}, nil
}

func (p *Plugin) acquirePopState(r *navigator.Router) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubPop != nil {
		return
	}
	p.unsubPop = p.env.OnPopState(func(state any) {
		p.onPopState(r)
	})
}

func (p *Plugin) releasePopState() {
	p.mu.Lock()
	unsub := p.unsubPop
	p.unsubPop = nil
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// reflectToHistory pushes or replaces a history entry for a committed
// state (spec §4.9 state synchronization rules), building the history
// entry payload, merging it over the host's previous state when
// mergeState is enabled, and refreshing lastKnownState.
func (p *Plugin) reflectToHistory(to, from *navigator.State) {
	preserved := ""
	if !p.hashMode && p.preserveHash {
		preserved = extractHash(p.env.CurrentURL())
	}
	url := p.buildURL(to.Path, preserved)

	payload := historyPayload(to)
	if p.mergeState {
		payload = mergeHistoryState(p.env.CurrentState(), payload)
	}

	p.mu.Lock()
	p.lastKnownState = payload
	p.mu.Unlock()

	sameByIdentity := from != nil && from.Name == to.Name && sameParams(from.Params, to.Params) && to.Reload()
	if from == nil || p.replace || sameByIdentity {
		p.env.ReplaceState(payload, url)
	} else {
		p.env.PushState(payload, url)
	}
}

// LastKnownState returns the frozen history-entry payload most recently
// pushed or replaced, recomputed lazily on each assignment (spec §4.9).
func (p *Plugin) LastKnownState() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKnownState
}

func sameParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// onPopState handles a single popstate event, collapsing any further
// events that arrive while this one (or the navigation it triggers) is
// still being processed down to just the most recent URL (spec: deferred
// popstate events collapse to latest-only, they don't queue).
func (p *Plugin) onPopState(r *navigator.Router) {
	url := p.env.CurrentURL()

	p.mu.Lock()
	if p.inFlight {
		p.pendingURL = &url
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	p.drivePop(r, url)

	for {
		p.mu.Lock()
		next := p.pendingURL
		p.pendingURL = nil
		if next == nil {
			p.inFlight = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
		p.drivePop(r, *next)
	}
}

func (p *Plugin) drivePop(r *navigator.Router, url string) {
	_, err := r.Navigation().NavigateToPath(context.Background(), p.stripBase(url), nil)
	if err == nil {
		return
	}

	re, ok := navigator.AsRouterError(err)
	if !ok || re.Code != navigator.ErrCannotDeactivate {
		return
	}

	// The browser already moved the address bar to the popped URL before
	// firing popstate; since the transition was blocked, restore it to
	// reflect the state that's actually still active.
	cur := r.Navigation().Current()
	if cur != nil {
		preserved := ""
		if !p.hashMode && p.preserveHash {
			preserved = extractHash(p.env.CurrentURL())
		}
		p.env.ReplaceState(historyPayload(cur), p.buildURL(cur.Path, preserved))
	}
}

// buildURL assembles the full URL for a route path: base + prefix + path +
// optionalPreservedHash (spec §4.9), where prefix is "#<hashPrefix>" in
// hash mode and empty otherwise.
func (p *Plugin) buildURL(path, preservedHash string) string {
	base := normalizeBase(p.base)
	if p.hashMode {
		return base + "#" + p.hashPrefix + path
	}
	return base + path + preservedHash
}

// normalizeBase adds a leading slash and removes a trailing slash, except
// that an empty base stays empty ("root hosting", spec §6).
func normalizeBase(base string) string {
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}

// stripBase removes the base path prefix and any hash fragment, and in
// hash mode extracts the path from the fragment itself, before handing a
// URL to the Matcher Service.
func (p *Plugin) stripBase(url string) string {
	if p.hashMode {
		if idx := strings.Index(url, "#"); idx >= 0 {
			url = url[idx+1:]
		} else {
			url = "/"
		}
		url = strings.TrimPrefix(url, p.hashPrefix)
	} else if idx := strings.Index(url, "#"); idx >= 0 {
		url = url[:idx]
	}
	return strings.TrimPrefix(url, normalizeBase(p.base))
}

// extractHash returns url's hash fragment (including the leading "#"), or
// "" if it has none.
func extractHash(url string) string {
	if idx := strings.Index(url, "#"); idx >= 0 {
		return url[idx:]
	}
	return ""
}

// historyPayload builds the history entry payload pushed into the
// browser's per-entry state slot (spec §6).
func historyPayload(s *navigator.State) map[string]any {
	return map[string]any{
		"name":   s.Name,
		"params": s.Params,
		"path":   s.Path,
		"meta": map[string]any{
			"params":     s.Meta.Params,
			"options":    s.Meta.Options,
			"redirected": s.Meta.Redirected,
		},
	}
}

// mergeHistoryState shallow-merges next over existing (spec §6/§4.9,
// Open Question resolution: shallow at the top level, with "meta" merged
// shallowly as a nested special case). A non-map existing value (or one
// the Environment can't represent as a map, e.g. a raw js.Value under
// wasm) is discarded rather than merged into.
func mergeHistoryState(existing any, next map[string]any) map[string]any {
	prev, ok := existing.(map[string]any)
	if !ok {
		return next
	}
	merged := make(map[string]any, len(prev)+len(next))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range next {
		if k != "meta" {
			merged[k] = v
			continue
		}
		prevMeta, _ := prev["meta"].(map[string]any)
		nextMeta, _ := v.(map[string]any)
		mergedMeta := make(map[string]any, len(prevMeta)+len(nextMeta))
		for mk, mv := range prevMeta {
			mergedMeta[mk] = mv
		}
		for mk, mv := range nextMeta {
			mergedMeta[mk] = mv
		}
		merged[k] = mergedMeta
	}
	return merged
}

// MatchURL resolves a full URL (as a link href or popstate target) to a
// route name and params, rejecting anything but http(s)/relative URLs.
func (p *Plugin) MatchURL(r *navigator.Router, rawURL string) (name string, params map[string]string, ok bool) {
	if scheme, rest, found := strings.Cut(rawURL, "://"); found {
		if !reservedProtocols[strings.ToLower(scheme)] {
			return "", nil, false
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rawURL = rest[idx:]
		} else {
			rawURL = "/"
		}
	}
	return r.MatchPath(p.stripBase(rawURL))
}

// BrowserNavigator is the capability interface the browser plugin exposes
// through Router.Extensions(), giving other plugins (notably
// persistent-params) access to URL construction without importing this
// package directly.
type BrowserNavigator interface {
	MatchURL(r *navigator.Router, rawURL string) (name string, params map[string]string, ok bool)
}

var _ BrowserNavigator = (*Plugin)(nil)
