package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/remindbot/core/config"
	coredatabase "github.com/m3rciful/remindbot/core/database"
	tgsender "github.com/m3rciful/remindbot/core/telegram/sender"
	"github.com/m3rciful/remindbot/internal/price"
)

// ReminderConfig tunes reminder scheduling.
type ReminderConfig struct {
	// Timezone is the IANA zone used to read the dates and times users type. Empty means local.
	Timezone string `yaml:"timezone" envconfig:"REMINDER_TIMEZONE"`
	Text     string `yaml:"text" envconfig:"REMINDER_TEXT"`
	// JournalTimeout bounds each journal insert.
	JournalTimeout time.Duration `yaml:"journal_timeout" envconfig:"REMINDER_JOURNAL_TIMEOUT"`
}

// SenderConfig sizes the outbound message queue.
type SenderConfig struct {
	QueueSize    int           `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers      int           `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"SENDER_RETRY_BACKOFF"`
}

// Config is the full process configuration: the shared core sections plus the bot's own.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Price    price.Options       `yaml:"price"`
	Reminder ReminderConfig      `yaml:"reminder"`
	Sender   SenderConfig        `yaml:"sender"`

	location *time.Location
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Location returns the zone resolved from Reminder.Timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// SenderOptions maps the sender section onto dispatcher options.
func (c *Config) SenderOptions() tgsender.Options {
	return tgsender.Options{
		QueueSize:    c.Sender.QueueSize,
		Workers:      c.Sender.Workers,
		MaxRetries:   c.Sender.MaxRetries,
		RetryBackoff: c.Sender.RetryBackoff,
	}
}

// LoadConfig reads path (optional) and the environment, then validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	tz := strings.TrimSpace(c.Reminder.Timezone)
	if tz == "" {
		c.location = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid reminder.timezone %q: %w", tz, err)
		}
		c.location = loc
	}
	if c.Reminder.JournalTimeout < 0 {
		return fmt.Errorf("reminder.journal_timeout must be >= 0")
	}
	if c.Price.Timeout < 0 {
		return fmt.Errorf("price.timeout must be >= 0")
	}
	if c.Price.Retries < 0 {
		return fmt.Errorf("price.retries must be >= 0")
	}
	return nil
}
