package cache

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor periodically purges expired entries so long-running processes
// don't accumulate dead keys. Lazy expiry on read remains the correctness
// mechanism; the janitor only bounds memory.
type Janitor struct {
	cache *Cache
	cron  *cron.Cron
	log   zerolog.Logger
}

// NewJanitor creates a janitor for the given cache.
func NewJanitor(c *Cache, log zerolog.Logger) *Janitor {
	return &Janitor{
		cache: c,
		cron:  cron.New(),
		log:   log.With().Str("component", "cache_janitor").Logger(),
	}
}

// Start schedules the purge on the given cron spec (e.g. "@every 5m")
// and starts the scheduler.
func (j *Janitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, func() {
		removed := j.cache.purgeExpired()
		if removed > 0 {
			j.log.Debug().Int("removed", removed).Msg("Purged expired cache entries")
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.log.Info().Str("spec", spec).Msg("Cache janitor started")
	return nil
}

// Stop stops the scheduler. A purge already in progress runs to completion.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info().Msg("Cache janitor stopped")
}
