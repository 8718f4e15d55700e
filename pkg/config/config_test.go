package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require.NoError(t, Init())

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "transcripts", cfg.Storage.Bucket)

	assert.Equal(t, 5, cfg.Provider.RateLimit)
	assert.Equal(t, 15*time.Minute, cfg.Provider.CacheTTL)

	assert.False(t, cfg.Fallback.Enabled)
	assert.Equal(t, 5, cfg.Fallback.MaxPerRun)
	assert.Equal(t, []string{"no_transcript_found", "no_match", "error"}, cfg.Fallback.Statuses)

	assert.Equal(t, 48, cfg.Worker.LookbackHours)
	assert.Equal(t, 200, cfg.Worker.MaxEpisodes)
	assert.Equal(t, 50, cfg.Worker.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Worker.BatchDelay)
	assert.True(t, cfg.Worker.UseLock)
	assert.Equal(t, "0 3 * * *", cfg.Worker.Schedule)
}

func TestAccessors(t *testing.T) {
	require.NoError(t, Init())

	assert.Equal(t, "transcripts", GetString("storage.bucket"))
	assert.Equal(t, 50, GetInt("worker.batch_size"))
	assert.True(t, GetBool("worker.use_lock"))
	assert.Equal(t, 100*time.Millisecond, GetDuration("worker.batch_delay"))
}
