package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_USER", "market")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "marketplace")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, 168*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, 15*time.Minute, cfg.ResetTTL)
	assert.Equal(t, "token", cfg.CookieName)
	assert.Equal(t, "@hourly", cfg.PurgeSchedule)
	assert.Empty(t, cfg.RabbitURL)
	assert.False(t, cfg.IsProduction())
}

func TestParseOverridesAndClamps(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("BCRYPT_COST", "2")
	t.Setenv("CORS_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
}

func TestParseRequiresSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestRateLimitNormalize(t *testing.T) {
	cfg := RateLimitConfig{Burst: 5, RefillEvery: 2 * time.Second, Capacity: 60, RefillTokens: 3}.normalize()
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)

	cfg = RateLimitConfig{Burst: -1}.normalize()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, time.Second, cfg.RefillInterval)
}

func TestCacheAllows(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg, err := LoadCacheConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Allows("GET"))
	assert.True(t, cfg.Allows("head"))
	assert.False(t, cfg.Allows("POST"))

	// Literal configs without the parsed set still work.
	lit := CacheConfig{MethodList: []string{"GET"}}
	assert.True(t, lit.Allows("get"))
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")

	opts := RedisOptions()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	require.NotNil(t, opts.TLSConfig)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", RedisOptions().Addr)
}
