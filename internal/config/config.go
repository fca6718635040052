package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"linkstash/internal/scraper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	// Resolution pipeline.
	HTTPTimeout           time.Duration `mapstructure:"HTTP_TIMEOUT"`
	UserAgent             string        `mapstructure:"USER_AGENT"`
	ScreenshotWidth       int           `mapstructure:"SCREENSHOT_WIDTH"`
	ScreenshotHeight      int           `mapstructure:"SCREENSHOT_HEIGHT"`
	ScreenshotSettleDelay time.Duration `mapstructure:"SCREENSHOT_SETTLE_DELAY"`
	RenderTimeout         time.Duration `mapstructure:"RENDER_TIMEOUT"`
	ChromeBin             string        `mapstructure:"CHROME_BIN"`
	FetchRateLimit        float64       `mapstructure:"FETCH_RATE_LIMIT"`

	// ListLimit caps how many items /list shows.
	ListLimit int `mapstructure:"LIST_LIMIT"`
}

var defaults = map[string]interface{}{
	"TELEGRAM_BOT_TOKEN":      "",
	"BADGERDB_PATH":           "./badger_data",
	"LOG_LEVEL":               "info",
	"HTTP_TIMEOUT":            "10s",
	"USER_AGENT":              scraper.DefaultUserAgent,
	"SCREENSHOT_WIDTH":        1200,
	"SCREENSHOT_HEIGHT":       800,
	"SCREENSHOT_SETTLE_DELAY": "1s",
	"RENDER_TIMEOUT":          "30s",
	"CHROME_BIN":              "",
	"FETCH_RATE_LIMIT":        2.0,
	"LIST_LIMIT":              10,
}

// LoadConfig reads configuration from path/config.yaml and environment
// variables. A missing config file is not an error.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Every key needs a default so Unmarshal sees env-only values.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("RENDER_TIMEOUT must be positive, got %s", c.RenderTimeout)
	}
	if c.ScreenshotSettleDelay < 0 {
		return fmt.Errorf("SCREENSHOT_SETTLE_DELAY must not be negative, got %s", c.ScreenshotSettleDelay)
	}
	if c.ScreenshotWidth <= 0 || c.ScreenshotHeight <= 0 {
		return fmt.Errorf("screenshot size must be positive, got %dx%d", c.ScreenshotWidth, c.ScreenshotHeight)
	}
	if c.ListLimit <= 0 {
		return fmt.Errorf("LIST_LIMIT must be positive, got %d", c.ListLimit)
	}
	return nil
}

// ValidateForBot checks the settings only the Telegram daemon needs.
func (c Config) ValidateForBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if c.BadgerDBPath == "" {
		return fmt.Errorf("BADGERDB_PATH is not set")
	}
	return nil
}

// Level returns the configured logrus level. LoadConfig has already
// validated it.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
