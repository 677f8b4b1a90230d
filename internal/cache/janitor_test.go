package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_PurgesExpiredEntriesOnSchedule(t *testing.T) {
	c := New(time.Minute)
	c.SetTTL("stale:1", "x", 10*time.Millisecond)
	c.Set("fresh:1", "y")

	log := zerolog.New(nil).Level(zerolog.Disabled)
	j := NewJanitor(c, log)
	require.NoError(t, j.Start("@every 100ms"))
	defer j.Stop()

	assert.Eventually(t, func() bool {
		return c.Len() == 1
	}, 2*time.Second, 50*time.Millisecond, "janitor should sweep the expired entry")

	_, ok := c.Get("fresh:1")
	assert.True(t, ok)
}

func TestJanitor_RejectsBadSchedule(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	j := NewJanitor(New(time.Minute), log)
	assert.Error(t, j.Start("not a cron spec"))
}

func TestJanitor_StopIsClean(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	j := NewJanitor(New(time.Minute), log)
	require.NoError(t, j.Start("@every 1h"))
	j.Stop()
}
