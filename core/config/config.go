package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> DefaultLongPollTimeoutSeconds
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"

	// DefaultLongPollTimeoutSeconds is the interval between poll cycles when none is configured.
	DefaultLongPollTimeoutSeconds = 3

	// legacyTokenEnv is read when BOT_TOKEN is absent.
	legacyTokenEnv = "TOKEN"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads the core configuration from an optional YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path and then overlays environment variables.
// A missing file is not an error: the process can be configured from the environment alone.
//
// Token precedence is a non-blank BOT_TOKEN, then telegram.token from the file, then the
// legacy TOKEN variable (see Normalize). An exported but blank BOT_TOKEN keeps the file value.
func Decode(path string, dst any) error {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}
	var fileToken string
	tc, hasTelegram := dst.(telegramSection)
	if hasTelegram {
		fileToken = tc.telegramConfig().Token
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	if hasTelegram && strings.TrimSpace(tc.telegramConfig().Token) == "" {
		tc.telegramConfig().Token = fileToken
	}
	return nil
}

// telegramSection is implemented by *Config and by configs embedding it.
type telegramSection interface {
	telegramConfig() *TelegramConfig
}

func (c *Config) telegramConfig() *TelegramConfig { return &c.Telegram }

// Normalize validates cfg and fills defaults in place. All problems found are
// reported together.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	return errors.Join(
		cfg.Telegram.normalizeToken(),
		cfg.normalizeRunMode(),
		cfg.RateLimit.normalize(),
	)
}

func (t *TelegramConfig) normalizeToken() error {
	t.Token = strings.TrimSpace(t.Token)
	if t.Token == "" {
		t.Token = strings.TrimSpace(os.Getenv(legacyTokenEnv))
	}
	if t.Token == "" {
		return errors.New("telegram token is required (BOT_TOKEN)")
	}
	return nil
}

func (c *Config) normalizeRunMode() error {
	mode := strings.ToLower(strings.TrimSpace(c.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		c.Telegram.RunMode = RunModeLongpoll
		switch {
		case c.Telegram.LongPollTimeoutSeconds < 0:
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		case c.Telegram.LongPollTimeoutSeconds == 0:
			c.Telegram.LongPollTimeoutSeconds = DefaultLongPollTimeoutSeconds
		}
		return nil
	case RunModeWebhook:
		c.Telegram.RunMode = RunModeWebhook
		return c.Webhook.validate()
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", c.Telegram.RunMode)
	}
}

func (w WebhookConfig) validate() error {
	var errs []error
	if strings.TrimSpace(w.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required when telegram.run_mode is 'webhook'"))
	}
	if strings.TrimSpace(w.Listen) == "" {
		errs = append(errs, errors.New("webhook.listen is required when telegram.run_mode is 'webhook'"))
	}
	if w.Port <= 0 {
		errs = append(errs, errors.New("webhook.port must be > 0 when telegram.run_mode is 'webhook'"))
	}
	return errors.Join(errs...)
}

var rateLimitExclusions = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kept := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if !slices.Contains(rateLimitExclusions, key) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s",
				v, strings.Join(rateLimitExclusions, ", "))
		}
		kept = append(kept, key)
	}
	r.ExcludeUpdates = kept
	return nil
}
