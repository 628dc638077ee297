// Package bot wires the reminder bot's commands, conversation and reminder delivery onto
// the shared Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/remindbot/core/config"
	"github.com/m3rciful/remindbot/core/logger"
	tg "github.com/m3rciful/remindbot/core/telegram"
	"github.com/m3rciful/remindbot/core/telegram/router"
	tgsender "github.com/m3rciful/remindbot/core/telegram/sender"
	"github.com/m3rciful/remindbot/core/telegram/state"
	"github.com/m3rciful/remindbot/core/telegram/ui"
	"github.com/m3rciful/remindbot/internal/conversation"
	"github.com/m3rciful/remindbot/internal/reminder"
)

// Pricer returns the current Bitcoin rate as served upstream.
type Pricer interface {
	Get(ctx context.Context) (string, error)
}

// Scheduler is the part of reminder.Scheduler the bot drives directly.
type Scheduler interface {
	ScheduleIn(ctx context.Context, chatID int64, delay time.Duration) (reminder.Handle, error)
	Run(ctx context.Context, n reminder.Notifier) error
	Close() error
}

// Options configures a Bot. All fields except Sender are required.
type Options struct {
	Config    *coreconfig.Config
	Price     Pricer
	Scheduler Scheduler
	Flow      *conversation.Flow
	Sessions  state.Manager
	Sender    tgsender.Options
}

// Bot owns the command registry and the reminder delivery loop.
type Bot struct {
	cfg       *coreconfig.Config
	price     Pricer
	scheduler Scheduler
	flow      *conversation.Flow
	sessions  state.Manager
	sendOpts  tgsender.Options
	registry  *tg.Registry

	dispatcher *tgsender.Dispatcher
	runDone    chan struct{}
}

var _ ui.FallbackProvider = (*Bot)(nil)

// New validates opts, registers the commands and binds the conversation handlers.
func New(opts Options) (*Bot, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("bot: nil config")
	case opts.Price == nil:
		return nil, fmt.Errorf("bot: price client is required")
	case opts.Scheduler == nil:
		return nil, fmt.Errorf("bot: scheduler is required")
	case opts.Flow == nil:
		return nil, fmt.Errorf("bot: conversation flow is required")
	case opts.Sessions == nil:
		return nil, fmt.Errorf("bot: session manager is required")
	}

	b := &Bot{
		cfg:       opts.Config,
		price:     opts.Price,
		scheduler: opts.Scheduler,
		flow:      opts.Flow,
		sessions:  opts.Sessions,
		sendOpts:  opts.Sender,
		registry:  tg.NewRegistry(),
	}
	b.registerCommands()
	if err := b.registry.RegisterCallback(CallbackCancel, b.handleCancelCallback); err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	b.registry.SetCallbackNotFound(b.UnknownCallback())
	b.flow.Register(b.sendReply)
	return b, nil
}

// Registry exposes the command table.
func (b *Bot) Registry() *tg.Registry { return b.registry }

// RunOptions assembles middlewares, routes and lifecycle hooks for tg.RunTelegram.
func (b *Bot) RunOptions() tg.RunOptions {
	routes := router.CommandRoutes(b.registry, router.CommandRouteOptions{
		AdminID: b.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(b.sessions, b.registry, router.TextOptions{
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
	})...)
	routes = append(routes, router.CallbackRoute(b.registry, router.CallbackOptions{
		NotFound: b.UnknownCallback(),
	}))

	return tg.RunOptions{
		Config:            b.cfg,
		Registry:          b.registry,
		DispatcherOptions: b.sendOpts,
		Middlewares:       tg.DefaultMiddlewares(b.cfg, nil),
		Routes:            routes,
		OnStart:           b.onStart,
		OnStop:            b.onStop,
	}
}

func (b *Bot) onStart(ctx context.Context, rt tg.Runtime) error {
	b.dispatcher = rt.Dispatcher
	notifier := NewNotifier(rt.Bot, rt.Dispatcher)

	b.runDone = make(chan struct{})
	go func() {
		defer close(b.runDone)
		if err := b.scheduler.Run(ctx, notifier); err != nil {
			logger.LogEvent(ctx, logger.SCHED, slog.LevelError, "reminder.loop",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "reminder.loop",
		slog.String("status", "ok"),
		slog.String("state", "started"),
	)
	return nil
}

// onStop stops the reminder loop and its timers before the sender is released.
func (b *Bot) onStop(ctx context.Context, _ tg.Runtime) error {
	err := b.scheduler.Close()
	if b.runDone != nil {
		select {
		case <-b.runDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "reminder.loop",
		slog.String("status", logger.Status(err)),
		slog.String("state", "stopped"),
	)
	return err
}
