package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10000, cfg.Server.Port)
	assert.Equal(t, "arabic_bot", cfg.Redis.KeyPrefix)
	assert.Equal(t, TierLimits{CharLimit: 120, RequestLimit: 3, ResetHours: 20}, cfg.Quota.Free)
	assert.Equal(t, TierLimits{CharLimit: 1000, RequestLimit: 50, ResetHours: 20}, cfg.Quota.Premium)
	assert.Equal(t, 5*time.Minute, cfg.Quota.TierCacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Bot.SessionTTL)
	assert.Equal(t, time.Minute, cfg.OpenRouter.Timeout)
	assert.Equal(t, "0 0 * * *", cfg.Stats.ResetSchedule)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BOT_CHANNEL_USERNAME", "@arabic_channel")
	t.Setenv("BOT_ADMIN_USERNAMES", "Alice, @bob ,,")
	t.Setenv("QUOTA_FREE_REQUEST_LIMIT", "10")
	t.Setenv("QUOTA_PREMIUM_CHAR_LIMIT", "2000")
	t.Setenv("QUOTA_TIER_CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "arabic_channel", cfg.Bot.ChannelUsername)
	assert.Equal(t, []string{"Alice", "bob"}, cfg.Bot.AdminUsernames)
	assert.Equal(t, 10, cfg.Quota.Free.RequestLimit)
	assert.Equal(t, 120, cfg.Quota.Free.CharLimit)
	assert.Equal(t, 2000, cfg.Quota.Premium.CharLimit)
	assert.Equal(t, 90*time.Second, cfg.Quota.TierCacheTTL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile(".env", []byte("OPENROUTER_MODEL=test/model\nLOG_FORMAT=json\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test/model", cfg.OpenRouter.Model)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile(".env", []byte("QUOTA_FREE_REQUEST_LIMIT=7\nREDIS_KEY_PREFIX=fromfile\n"), 0o600))
	t.Setenv("REDIS_KEY_PREFIX", "fromenv")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Quota.Free.RequestLimit)
	assert.Equal(t, "fromenv", cfg.Redis.KeyPrefix)
}

func TestLoad_InvalidDuration(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BOT_SESSION_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot.session.ttl")
}
