package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkstash/internal/scraper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "./badger_data", cfg.BadgerDBPath)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, scraper.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 1200, cfg.ScreenshotWidth)
	assert.Equal(t, 800, cfg.ScreenshotHeight)
	assert.Equal(t, time.Second, cfg.ScreenshotSettleDelay)
	assert.Equal(t, 30*time.Second, cfg.RenderTimeout)
	assert.Empty(t, cfg.ChromeBin)
	assert.InDelta(t, 2.0, cfg.FetchRateLimit, 1e-9)
	assert.Equal(t, 10, cfg.ListLimit)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FETCH_RATE_LIMIT", "0.5")
	t.Setenv("LIST_LIMIT", "25")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramBotToken)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.InDelta(t, 0.5, cfg.FetchRateLimit, 1e-9)
	assert.Equal(t, 25, cfg.ListLimit)
	assert.NoError(t, cfg.ValidateForBot())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := "BADGERDB_PATH: /var/lib/linkstash\nRENDER_TIMEOUT: 45s\nCHROME_BIN: /usr/bin/chromium\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/linkstash", cfg.BadgerDBPath)
	assert.Equal(t, 45*time.Second, cfg.RenderTimeout)
	assert.Equal(t, "/usr/bin/chromium", cfg.ChromeBin)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout, "unset keys keep defaults")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"LOG_LEVEL":    "chatty",
		"HTTP_TIMEOUT": "0s",
		"LIST_LIMIT":   "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig(t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestValidateForBot(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, cfg.ValidateForBot(), "token is required for the bot")
}
