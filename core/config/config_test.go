package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRequiresToken(t *testing.T) {
	t.Setenv("TOKEN", "")

	err := Normalize(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestNormalizeFallsBackToLegacyTokenEnv(t *testing.T) {
	t.Setenv("TOKEN", "123:legacy")

	cfg := &Config{}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "123:legacy", cfg.Telegram.Token)
}

func TestNormalizeDefaultsToLongpollEveryThreeSeconds(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "polling"}}
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, DefaultLongPollTimeoutSeconds, cfg.Telegram.LongPollTimeoutSeconds)
}

func TestNormalizeWebhookNeedsURL(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.url")
}

func TestNormalizeRejectsUnknownExclusion(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", "poll"}},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"poll"`)
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("telegram:\n  token: from-file\n  admin_id: 42\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("RATE_LIMIT_INTERVAL_MS", "250")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 250, cfg.RateLimit.IntervalMS)
	assert.NotEmpty(t, cfg.Telegram.Token)
}

func TestDecodeKeepsFileTokenWhenEnvIsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: from-file\n"), 0o600))

	t.Setenv("BOT_TOKEN", "  ")
	var cfg Config
	require.NoError(t, Decode(path, &cfg))
	assert.Equal(t, "from-file", cfg.Telegram.Token)

	t.Setenv("BOT_TOKEN", "from-env")
	cfg = Config{}
	require.NoError(t, Decode(path, &cfg))
	assert.Equal(t, "from-env", cfg.Telegram.Token)
}

func TestDecodeToleratesMissingFile(t *testing.T) {
	var cfg Config
	require.NoError(t, Decode(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	t.Setenv("TOKEN", "")
	cfg := &Config{
		Telegram:  TelegramConfig{RunMode: "webhook"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{"", "message"}},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	for _, want := range []string{"token is required", "webhook.url", "webhook.listen", "webhook.port"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.Equal(t, []string{"message"}, cfg.RateLimit.ExcludeUpdates)
}
