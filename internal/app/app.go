// Package app assembles the reminder bot from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/remindbot/core/bootstrap"
	coredatabase "github.com/m3rciful/remindbot/core/database"
	"github.com/m3rciful/remindbot/core/logger"
	coretelegram "github.com/m3rciful/remindbot/core/telegram"
	"github.com/m3rciful/remindbot/core/telegram/state"
	"github.com/m3rciful/remindbot/internal/bot"
	"github.com/m3rciful/remindbot/internal/conversation"
	"github.com/m3rciful/remindbot/internal/price"
	"github.com/m3rciful/remindbot/internal/reminder"
	"github.com/m3rciful/remindbot/internal/storage"
	"github.com/m3rciful/remindbot/migrations"
)

// App owns the bot and the infrastructure it was built on.
type App struct {
	cfg       *Config
	infra     *bootstrap.Result
	scheduler *reminder.Scheduler
	bot       *bot.Bot
}

// Bootstrap initializes logging and the optional journal database, then builds the bot.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	return build(ctx, cfg, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Migrate:  migrateJournal,
	})
}

// migrateJournal applies the embedded schema unless database.migrations_dir points at a
// directory on disk.
func migrateJournal(ctx context.Context, db coredatabase.Config) error {
	if strings.TrimSpace(db.MigrationsDir) != "" {
		return coredatabase.RunMigrations(ctx, db)
	}
	return coredatabase.Migrate(ctx, db, migrations.FS)
}

func build(ctx context.Context, cfg *Config, infraOpts bootstrap.Options) (*App, error) {
	infra, err := bootstrap.Run(ctx, infraOpts)
	if err != nil {
		return nil, err
	}

	var journal reminder.Journal
	if infra.DB != nil {
		journal = storage.NewJournal(infra.DB, cfg.Reminder.JournalTimeout)
	}

	sessions := state.NewMemoryManager()
	scheduler, err := reminder.New(reminder.Options{
		Sessions: sessions,
		Journal:  journal,
		Text:     cfg.Reminder.Text,
		Location: cfg.Location(),
	})
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	flow := conversation.New(conversation.Options{
		Scheduler: scheduler,
		Sessions:  sessions,
	})
	b, err := bot.New(bot.Options{
		Config:    &cfg.Config,
		Price:     price.New(cfg.Price),
		Scheduler: scheduler,
		Flow:      flow,
		Sessions:  sessions,
		Sender:    cfg.SenderOptions(),
	})
	if err != nil {
		_ = scheduler.Close()
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "app.built",
		slog.String("status", "ok"),
		slog.String("timezone", cfg.Location().String()),
		slog.Bool("journal", journal != nil),
	)
	return &App{cfg: cfg, infra: infra, scheduler: scheduler, bot: b}, nil
}

// TelegramRunOptions returns the runtime wiring of the bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return a.bot.RunOptions(), nil
}

// Close stops reminder timers and releases the database.
func (a *App) Close() error {
	return errors.Join(a.scheduler.Close(), a.infra.Close())
}
