package gateway

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mentorhq/mentorhub/internal/cache"
)

// FetchOptions control how a read flows through the cache and the
// deduplicator.
type FetchOptions struct {
	// ForceRefresh bypasses the cache read. The fresh result is still
	// written back to the cache.
	ForceRefresh bool
	// TTL overrides the cache's default TTL for the fetched value.
	TTL time.Duration
}

// Deduplicator collapses concurrent identical reads into a single backend
// call and serves repeat reads from the cache.
//
// singleflight guarantees at most one in-flight factory invocation per key:
// every concurrent caller shares the same outcome, success or failure, and
// the pending entry is removed on settle regardless of how it settled.
type Deduplicator struct {
	cache *cache.Cache
	sf    singleflight.Group
	log   zerolog.Logger
}

// NewDeduplicator creates a deduplicator over the given cache.
func NewDeduplicator(c *cache.Cache, log zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		cache: c,
		log:   log.With().Str("component", "dedupe").Logger(),
	}
}

// Fetch returns the cached value for key when present and fresh (unless
// ForceRefresh). Otherwise it invokes factory, at most once across all
// concurrent callers of the same key, caches the result on success, and
// returns it.
func (d *Deduplicator) Fetch(key string, factory func() (json.RawMessage, error), opts FetchOptions) (json.RawMessage, error) {
	if !opts.ForceRefresh {
		if val, ok := d.cache.Get(key); ok {
			d.log.Debug().Str("key", key).Msg("Cache hit")
			return val.(json.RawMessage), nil
		}
	}

	val, err, shared := d.sf.Do(key, func() (interface{}, error) {
		data, err := factory()
		if err != nil {
			return nil, err
		}

		if opts.TTL > 0 {
			d.cache.SetTTL(key, data, opts.TTL)
		} else {
			d.cache.Set(key, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		d.log.Debug().Str("key", key).Msg("Joined in-flight request")
	}

	return val.(json.RawMessage), nil
}
