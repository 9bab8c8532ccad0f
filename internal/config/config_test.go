package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MAX_LIVE_ATTEMPTS", "")
	t.Setenv("ITEMS_CACHE_TTL_MINUTES", "")

	cfg := Load()
	assert.Equal(t, 2000, cfg.MaxLiveAttempts)
	assert.Equal(t, 6*time.Hour, cfg.ItemsCacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MAX_LIVE_ATTEMPTS", "50")
	t.Setenv("ATTEMPT_START_RATE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	assert.Equal(t, 50, cfg.MaxLiveAttempts)
	assert.Equal(t, 10, cfg.AttemptStartRate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "test:4:items", CacheKey.TestItemsKey(4))
	assert.Equal(t, "user:9:test:4:draft", CacheKey.DraftAnswersKey(9, 4))
	assert.Equal(t, "test:4:monitor", CacheKey.TestMonitorChannel(4))
}
