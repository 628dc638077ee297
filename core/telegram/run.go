package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/remindbot/core/config"
	"github.com/m3rciful/remindbot/core/logger"
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/remindbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	// OnError receives every error a handler returns and every poller error (c is nil then).
	// Nil means LogError.
	OnError func(err error, c tele.Context)

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// LogError is the default error sink: it logs the error with the update metadata and
// never replies to the user.
func LogError(err error, c tele.Context) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "handler.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
	)
}

// RunTelegram builds the bot from opts and serves updates until ctx is done. OnStop runs
// with a fresh ten second budget after the poller has stopped.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.OnError == nil {
		opts.OnError = LogError
	}

	bot, err := newBot(ctx, opts)
	if err != nil {
		return err
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	release := func() {
		dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	wire(ctx, bot, opts)
	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: opts.Registry}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runErr := serve(ctx, bot)

	var stopErr error
	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		stopErr = opts.OnStop(stopCtx, rt)
		cancel()
	}
	release()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// newBot creates the telebot instance with the configured poller and logs the mode.
// In long-poll mode a leftover webhook is removed unless disabled.
func newBot(ctx context.Context, opts RunOptions) (*tele.Bot, error) {
	cfg := opts.Config
	poller := PollerFromConfig(cfg)

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(pollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
		OnError: opts.OnError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	took := slog.Duration("duration", time.Since(start))

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", RunModeName(p)),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			took,
		)
	case *tele.LongPoller:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", RunModeName(p)),
			slog.Int("timeout_seconds", int(p.Timeout/time.Second)),
			took,
		)
		if !opts.DisableWebhookCleanup {
			if err := bot.RemoveWebhook(); err != nil {
				logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return bot, nil
}

// wire installs middlewares and routes, then publishes the command menu.
func wire(ctx context.Context, bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	routes := 0
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
			routes++
		}
	}
	logger.LogEvent(ctx, logger.TWire, slog.LevelDebug, "wire.middlewares",
		slog.String("chain", strings.Join(MiddlewareNames(opts.Middlewares), ",")),
		slog.Int("routes", routes),
	)
	InitBotCommands(bot, opts.Registry)
}

// serve runs the poller until it stops by itself or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}
