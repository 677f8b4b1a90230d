// Package gateway implements the request-orchestration core: a TTL-cached,
// deduplicated, rate-limited, retrying CRUD client for the remote backend
// that holds all durable state. The backend is opaque: resources are
// addressed by method + path + payload only.
package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentorhq/mentorhub/internal/cache"
)

// Config holds everything the gateway needs to talk to the backend.
type Config struct {
	Executor ExecutorConfig
	Limiter  LimiterConfig
	// CacheTTL is the default TTL for cached read responses.
	CacheTTL time.Duration
}

// Options control a single read operation.
type Options struct {
	// ForceRefresh bypasses the cache read; the fresh result is still
	// written back.
	ForceRefresh bool
	// Query carries backend filter parameters (e.g. sales_id=7). It is
	// part of the cache key.
	Query url.Values
	// TTL overrides the default cache TTL for this read.
	TTL time.Duration
}

// Gateway is the single entry point for all backend traffic. It is
// constructed once at startup and injected into every consumer; there is
// no package-level state. Reads flow through the cache, the deduplicator,
// the limiter and then the executor; writes skip the cache, go straight to
// the limiter, and invalidate affected cache prefixes on success.
type Gateway struct {
	cache    *cache.Cache
	dedupe   *Deduplicator
	limiter  *Limiter
	executor *Executor
	log      zerolog.Logger

	mu sync.RWMutex
	// dependent cache prefixes invalidated alongside a resource's own
	// prefix when that resource is mutated
	invalidationRules map[string][]string
}

// New creates a gateway with an empty cache and an empty queue.
func New(cfg Config, log zerolog.Logger) *Gateway {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	c := cache.New(cfg.CacheTTL)

	return &Gateway{
		cache:             c,
		dedupe:            NewDeduplicator(c, log),
		limiter:           NewLimiter(cfg.Limiter, log),
		executor:          NewExecutor(cfg.Executor, log),
		log:               log.With().Str("component", "gateway").Logger(),
		invalidationRules: make(map[string][]string),
	}
}

// Close drains the request queue and clears the cache.
func (g *Gateway) Close() {
	g.limiter.Close()
	g.cache.Clear()
}

// Cache exposes the underlying cache so derived-data consumers (e.g. the
// probation engine) can store computed values under their own prefixes.
func (g *Gateway) Cache() *cache.Cache {
	return g.cache
}

// AddInvalidationRule registers extra cache prefixes to invalidate when
// the named resource is mutated. Used to drop derived summaries when the
// records they are computed from change.
func (g *Gateway) AddInvalidationRule(resourcePath string, prefixes ...string) {
	g.mu.Lock()
	g.invalidationRules[resourcePath] = append(g.invalidationRules[resourcePath], prefixes...)
	g.mu.Unlock()
}

// Resource returns a CRUD handle for one backend collection, addressed by
// its path (e.g. "week", "kpi_action_progress").
func (g *Gateway) Resource(path string) *Resource {
	return &Resource{gw: g, path: path}
}

// Resource is a typed-by-path CRUD handle. All reads are cached and
// deduplicated; all writes invalidate the resource's cache prefix.
type Resource struct {
	gw   *Gateway
	path string
	ttl  time.Duration
}

// WithTTL returns a copy of the handle whose reads are cached with the
// given TTL instead of the gateway default.
func (r *Resource) WithTTL(ttl time.Duration) *Resource {
	return &Resource{gw: r.gw, path: r.path, ttl: ttl}
}

// GetAll fetches the full collection, optionally filtered by opts.Query.
func (r *Resource) GetAll(opts Options) (json.RawMessage, error) {
	key := r.path + ":all"
	if len(opts.Query) > 0 {
		// Encode sorts keys, so equivalent queries share a cache entry.
		key += "?" + opts.Query.Encode()
	}

	return r.fetch(key, http.MethodGet, r.path, opts)
}

// GetByID fetches a single record.
func (r *Resource) GetByID(id string, opts Options) (json.RawMessage, error) {
	return r.fetch(r.path+":"+id, http.MethodGet, r.path+"/"+id, opts)
}

// Create inserts a record and invalidates the resource's cached reads.
func (r *Resource) Create(data interface{}) (json.RawMessage, error) {
	return r.mutate(http.MethodPost, r.path, data)
}

// Update modifies a record and invalidates the resource's cached reads.
func (r *Resource) Update(id string, data interface{}) (json.RawMessage, error) {
	return r.mutate(http.MethodPatch, r.path+"/"+id, data)
}

// Delete removes a record and invalidates the resource's cached reads.
func (r *Resource) Delete(id string) error {
	_, err := r.mutate(http.MethodDelete, r.path+"/"+id, nil)
	return err
}

// fetch runs a read through the cache, the deduplicator, the limiter and
// the executor, in that order.
// The cache short-circuits before the limiter is consulted, so cached
// reads never consume quota.
func (r *Resource) fetch(key, method, path string, opts Options) (json.RawMessage, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = r.ttl
	}

	return r.gw.dedupe.Fetch(key, func() (json.RawMessage, error) {
		return r.gw.limiter.Do(func() (json.RawMessage, error) {
			return r.gw.executor.Execute(method, path, nil, opts.Query)
		})
	}, FetchOptions{ForceRefresh: opts.ForceRefresh, TTL: ttl})
}

// mutate runs a write through the limiter and executor, never the cache, and on
// success invalidates the resource's cache prefix along with any
// registered dependent prefixes. Stale reads must never be served after a
// known mutation.
func (r *Resource) mutate(method, path string, data interface{}) (json.RawMessage, error) {
	body, err := r.gw.limiter.Do(func() (json.RawMessage, error) {
		return r.gw.executor.Execute(method, path, data, nil)
	})
	if err != nil {
		return nil, err
	}

	removed := r.gw.cache.Invalidate(r.path + ":")

	r.gw.mu.RLock()
	dependents := r.gw.invalidationRules[r.path]
	r.gw.mu.RUnlock()
	for _, prefix := range dependents {
		removed += r.gw.cache.Invalidate(prefix)
	}

	r.gw.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("invalidated", removed).
		Msg("Mutation applied, cache invalidated")

	return body, nil
}
