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
	"fmt"

	"rivaas.dev/navigator/internal/rlog"
	"rivaas.dev/navigator/route"
)

// Limits bounds the size of the router's internal registries, guarding
// against runaway registration (a plugin that registers itself repeatedly
// in a loop, a middleware chain growing unbounded across hot reloads).
type Limits struct {
	MaxPlugins           int
	MaxMiddleware        int
	MaxDependencies      int
	MaxListeners         int
	MaxEventDepth        int
	MaxLifecycleHandlers int
}

// defaultLimits mirrors the teacher's own conservative defaults for
// bloom filter sizing and hash function counts (WithBloomFilterSize /
// WithBloomFilterHashFunctions), extended with the registry limits this
// domain's plugin/middleware system needs.
func defaultLimits() Limits {
	return Limits{
		MaxPlugins:           50,
		MaxMiddleware:        50,
		MaxDependencies:      100,
		MaxListeners:         1000,
		MaxEventDepth:        100,
		MaxLifecycleHandlers: 50,
	}
}

// config is the router's resolved, immutable configuration. Every field is
// unexported; callers only ever observe it through the read-only Config
// accessor, which returns a Config value wrapping the Router's one *config
// (there is no Go-level object-freezing primitive, so immutability is
// enforced by never exposing a mutable view).
type config struct {
	matchOpts  route.MatchOptions
	codecOpts  route.QueryCodecOptions
	trailingSlash route.TrailingSlashMode

	limits Limits

	bloomFilterSize    uint64
	bloomHashFunctions int

	basePath string
	hashMode bool

	noValidate bool

	allowNotFound      bool
	rewritePathOnMatch bool

	defaultRoute     string
	defaultRouteFunc func(get GetDependencyFunc) string
	defaultParams     map[string]string
	defaultParamsFunc func(get GetDependencyFunc) map[string]string

	logger        rlog.Logger
	diagnostics   DiagnosticHandler
	observability ObservabilityRecorder
	queryCodec    route.QueryCodec
}

// GetDependencyFunc looks up a router-scoped dependency by name, matching
// Router.GetDependency's signature. It's the callback handed to
// WithDefaultRouteFunc/WithDefaultParamsFunc so a default route can depend
// on injected state (e.g. "is the user authenticated") without the config
// layer depending on Router itself.
type GetDependencyFunc func(name string) (any, bool)

// Config is the read-only view of a Router's resolved configuration.
type Config struct {
	cfg *config
}

func (c Config) TrailingSlash() route.TrailingSlashMode { return c.cfg.trailingSlash }
func (c Config) MatchOptions() route.MatchOptions       { return c.cfg.matchOpts }
func (c Config) Limits() Limits                         { return c.cfg.limits }
func (c Config) BasePath() string                       { return c.cfg.basePath }
func (c Config) HashMode() bool                          { return c.cfg.hashMode }
func (c Config) QueryCodec() route.QueryCodec           { return c.cfg.queryCodec }
func (c Config) AllowNotFound() bool                    { return c.cfg.allowNotFound }
func (c Config) RewritePathOnMatch() bool               { return c.cfg.rewritePathOnMatch }
func (c Config) Logger() rlog.Logger                    { return c.cfg.logger }

// resolveDefaultRoute returns the configured default route name and params
// (spec §4.6 navigateToDefault), preferring the dynamic Func variant over
// the static value when both are set, and resolving params against name
// independently.
func resolveDefaultRoute(c *config, get GetDependencyFunc) (name string, params map[string]string) {
	name = c.defaultRoute
	if c.defaultRouteFunc != nil {
		name = c.defaultRouteFunc(get)
	}
	params = c.defaultParams
	if c.defaultParamsFunc != nil {
		params = c.defaultParamsFunc(get)
	}
	return name, params
}

func defaultConfig() *config {
	return &config{
		matchOpts:          route.DefaultMatchOptions(),
		codecOpts:          route.QueryCodecOptions{ArrayFormat: route.ArrayFormatNone, BooleanFormat: route.BooleanFormatString, NullFormat: route.NullFormatDefault},
		trailingSlash:      route.TrailingSlashPreserve,
		limits:             defaultLimits(),
		bloomFilterSize:    1000,
		bloomHashFunctions: 3,
		logger:             rlog.Default(),
		queryCodec:         route.DefaultQueryCodec{},
	}
}

// Option configures a Router at construction time (spec §9).
type Option func(*config) error

// WithCaseSensitive toggles case-sensitive literal segment matching.
// Default: false.
func WithCaseSensitive(enabled bool) Option {
	return func(c *config) error {
		c.matchOpts.CaseSensitive = enabled
		return nil
	}
}

// WithStrictTrailingSlash requires an incoming path's trailing slash to
// match the pattern's exactly. Default: false.
func WithStrictTrailingSlash(enabled bool) Option {
	return func(c *config) error {
		c.matchOpts.StrictTrailingSlash = enabled
		return nil
	}
}

// WithTrailingSlashMode controls how built paths are normalized
// ("preserve", "strict", "always", "never").
func WithTrailingSlashMode(mode route.TrailingSlashMode) Option {
	return func(c *config) error {
		switch mode {
		case route.TrailingSlashPreserve, route.TrailingSlashStrict, route.TrailingSlashAlways, route.TrailingSlashNever:
		default:
			return route.New(route.ErrInvalidOption, "invalid trailing slash mode").WithField("mode", mode)
		}
		c.trailingSlash = mode
		return nil
	}
}

// WithQueryParamsMode controls how unexpected query-string keys are
// treated during matching ("default", "strict", "loose").
func WithQueryParamsMode(mode route.QueryParamsMode) Option {
	return func(c *config) error {
		switch mode {
		case route.QueryParamsDefault, route.QueryParamsStrict, route.QueryParamsLoose:
		default:
			return route.New(route.ErrInvalidOption, "invalid query params mode").WithField("mode", mode)
		}
		c.matchOpts.QueryParamsMode = mode
		return nil
	}
}

// WithURLParamsEncoding controls how path parameter values are
// encoded/decoded ("default", "uri", "uriComponent", "none").
func WithURLParamsEncoding(enc route.URLParamsEncoding) Option {
	return func(c *config) error {
		switch enc {
		case route.EncodingDefault, route.EncodingURI, route.EncodingURIComponent, route.EncodingNone:
		default:
			return route.New(route.ErrInvalidOption, "invalid URL params encoding").WithField("encoding", enc)
		}
		c.matchOpts.URLParamsEncoding = enc
		return nil
	}
}

// WithQueryParamsOptions configures the nested array/boolean/null
// encodings used by the default query codec.
func WithQueryParamsOptions(array route.ArrayFormat, boolean route.BooleanFormat, null route.NullFormat) Option {
	return func(c *config) error {
		c.codecOpts = route.QueryCodecOptions{ArrayFormat: array, BooleanFormat: boolean, NullFormat: null}
		return nil
	}
}

// WithQueryCodec installs a custom query-string codec, replacing
// DefaultQueryCodec.
func WithQueryCodec(codec route.QueryCodec) Option {
	return func(c *config) error {
		if codec == nil {
			return route.New(route.ErrInvalidOption, "query codec must not be nil")
		}
		c.queryCodec = codec
		return nil
	}
}

// WithLimits overrides the default registry size limits.
func WithLimits(l Limits) Option {
	return func(c *config) error {
		if l.MaxPlugins <= 0 || l.MaxMiddleware <= 0 || l.MaxDependencies <= 0 ||
			l.MaxListeners <= 0 || l.MaxEventDepth <= 0 || l.MaxLifecycleHandlers <= 0 {
			return route.New(route.ErrInvalidOption, "all limits must be positive")
		}
		c.limits = l
		return nil
	}
}

// WithBloomFilterSize sets the bloom filter size used by the compiled
// matcher's static-route negative lookup. Larger sizes reduce false
// positives. Default: 1000.
func WithBloomFilterSize(size uint64) Option {
	return func(c *config) error {
		if size == 0 {
			return route.New(route.ErrInvalidOption, "bloom filter size must be non-zero")
		}
		c.bloomFilterSize = size
		return nil
	}
}

// WithBloomFilterHashFunctions sets the number of hash functions used by
// the bloom filter. Clamped to [1, 10]. Default: 3.
func WithBloomFilterHashFunctions(n int) Option {
	return func(c *config) error {
		c.bloomHashFunctions = max(1, min(n, 10))
		return nil
	}
}

// WithBasePath records a path prefix (e.g. "/app" for an app mounted under
// it), readable through Config().BasePath(). Path building and matching do
// not apply it; browser.Plugin takes its own browser.WithBasePath option.
func WithBasePath(p string) Option {
	return func(c *config) error {
		c.basePath = p
		return nil
	}
}

// WithHashMode records whether hash-fragment URLs are wanted, readable
// through Config().HashMode(). browser.Plugin does not read it; it takes
// its own browser.WithHashMode option.
func WithHashMode(enabled bool) Option {
	return func(c *config) error {
		c.hashMode = enabled
		return nil
	}
}

// WithoutValidation skips the route tree's construction-time invariant
// checks (duplicate siblings, dangling dot-qualified parents, absolute
// paths under parameterized segments). Use only when the route table is
// generated and already known-good; an invalid tree will fail later and
// less clearly, at match time instead of at New() time.
func WithoutValidation() Option {
	return func(c *config) error {
		c.noValidate = true
		return nil
	}
}

// WithAllowNotFound switches a path that matches no route from a
// ROUTE_NOT_FOUND failure into an emitted synthetic "not found" state
// (spec §6, §7). Default: false.
func WithAllowNotFound(enabled bool) Option {
	return func(c *config) error {
		c.allowNotFound = enabled
		return nil
	}
}

// WithRewritePathOnMatch canonicalizes the browser URL to the route's
// built path immediately after a path-driven match (spec §6), so an
// incoming URL that only loosely matches a pattern (extra slashes, a
// trailing slash mismatched against TrailingSlashMode) is replaced with
// the exact path the route would itself build. Default: false.
func WithRewritePathOnMatch(enabled bool) Option {
	return func(c *config) error {
		c.rewritePathOnMatch = enabled
		return nil
	}
}

// WithDefaultRoute sets the route name navigateToDefault (spec §4.6)
// resolves to, e.g. for Start(path) falling back when path matches nothing.
func WithDefaultRoute(name string) Option {
	return func(c *config) error {
		c.defaultRoute = name
		return nil
	}
}

// WithDefaultRouteFunc sets a dynamic default route resolver, called with
// the router's dependency lookup so the choice can depend on injected
// state. Takes precedence over WithDefaultRoute when both are set.
func WithDefaultRouteFunc(fn func(get GetDependencyFunc) string) Option {
	return func(c *config) error {
		c.defaultRouteFunc = fn
		return nil
	}
}

// WithDefaultParams sets the params passed alongside the default route.
func WithDefaultParams(params map[string]string) Option {
	return func(c *config) error {
		c.defaultParams = params
		return nil
	}
}

// WithDefaultParamsFunc sets a dynamic default-params resolver. Takes
// precedence over WithDefaultParams when both are set.
func WithDefaultParamsFunc(fn func(get GetDependencyFunc) map[string]string) Option {
	return func(c *config) error {
		c.defaultParamsFunc = fn
		return nil
	}
}

// WithLogger installs the ambient structured logger. Default: rlog.Default().
func WithLogger(l rlog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return route.New(route.ErrInvalidOption, "logger must not be nil")
		}
		c.logger = l
		return nil
	}
}

// WithDiagnostics installs a diagnostic event handler. See DiagnosticEvent.
func WithDiagnostics(h DiagnosticHandler) Option {
	return func(c *config) error {
		c.diagnostics = h
		return nil
	}
}

// WithObservability installs a combined metrics/tracing/logging recorder
// for the navigation lifecycle. See ObservabilityRecorder.
func WithObservability(r ObservabilityRecorder) Option {
	return func(c *config) error {
		c.observability = r
		return nil
	}
}

// applyOptions runs every option in order, returning the first validation error
// encountered (spec §9: options are validated at application time).
func applyOptions(c *config, opts []Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return fmt.Errorf("navigator: invalid option: %w", err)
		}
	}
	return nil
}
