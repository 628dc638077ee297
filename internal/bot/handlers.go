package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/core/telegram/commands"
	"github.com/m3rciful/remindbot/core/telegram/format"
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"
	"github.com/m3rciful/remindbot/core/telegram/keyboard"
	"github.com/m3rciful/remindbot/internal/conversation"
	"github.com/m3rciful/remindbot/internal/reminder"

	tele "gopkg.in/telebot.v4"
)

// CallbackCancel is the unique of the inline cancel button under conversation prompts.
const CallbackCancel = "cancel"

const (
	TextPriceFormat   = "The current price of Bitcoin is $%s"
	TextPriceFailed   = "Sorry, I couldn't get the Bitcoin price right now. Please try again later."
	TextRemindSet     = "Reminder set for %d seconds!"
	TextRemindUsage   = "Usage: /remind <seconds>"
	TextRemindPast    = "Sorry, I can't go back to the future!"
	textHelpHeader    = "Here is what I can do:"
	textStatsTemplate = "Sessions: %d\nConversations: %d\nPending reminders: %d\nMessages sent: %d\nFailed sends: %d\nQueued sends: %d"
)

func (b *Bot) registerCommands() {
	b.registry.RegisterCommand("/start", commands.Command{
		Handler:     b.handleStart,
		Description: "Say hello",
	})
	b.registry.RegisterCommand("/price", commands.Command{
		Handler:     b.handlePrice,
		Description: "Show the current Bitcoin price",
	})
	b.registry.RegisterCommand("/remind", commands.Command{
		Handler:     b.handleRemind,
		Description: "Remind me after a number of seconds",
		Usage:       "<seconds>",
	})
	b.registry.RegisterCommand("/set_time", commands.Command{
		Handler:     b.handleSetTime,
		Description: "Remind me at a date and time",
	})
	b.registry.RegisterCommand("/cancel", commands.Command{
		Handler:     b.handleCancel,
		Description: "Cancel the latest reminder",
	})
	b.registry.RegisterCommand("/help", commands.Command{
		Handler:     b.handleHelp,
		Description: "List the commands",
		Aliases:     []string{"help"},
	})
	b.registry.RegisterCommand("/stats", commands.Command{
		Handler:     b.handleStats,
		Description: "Runtime statistics",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (b *Bot) handleStart(c tele.Context) error {
	greeting := "Hi " + format.MentionV2(c.Sender()) + format.EscapeV2("!")
	return tghelpers.SendMDV2(c, greeting, keyboard.ForceReply(true))
}

func (b *Bot) handlePrice(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rate, err := b.price.Get(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.PRICE, slog.LevelWarn, "price.reply",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, TextPriceFailed)
	}
	return tghelpers.SendText(c, fmt.Sprintf(TextPriceFormat, rate))
}

func (b *Bot) handleRemind(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return tghelpers.SendText(c, TextRemindUsage)
	}
	delay, err := reminder.ParseDelay(args[0])
	if err != nil {
		var ve *reminder.ValidationError
		if errors.As(err, &ve) && ve.Reason == reminder.ReasonNegative {
			return tghelpers.SendText(c, TextRemindPast)
		}
		return tghelpers.SendText(c, TextRemindUsage)
	}

	ctx := tghelpers.BuildContext(c)
	if _, err := b.scheduler.ScheduleIn(ctx, c.Chat().ID, delay); err != nil {
		return fmt.Errorf("remind: %w", err)
	}
	return tghelpers.SendText(c, fmt.Sprintf(TextRemindSet, int64(delay/time.Second)))
}

func (b *Bot) handleSetTime(c tele.Context) error {
	reply := b.flow.Begin(tghelpers.BuildContext(c), c.Chat().ID)
	return b.sendReply(c, reply)
}

func (b *Bot) handleCancel(c tele.Context) error {
	reply, err := b.flow.Cancel(tghelpers.BuildContext(c), c.Chat().ID)
	if err != nil {
		return err
	}
	return b.sendReply(c, reply)
}

func (b *Bot) handleCancelCallback(c tele.Context) error {
	if err := tghelpers.Respond(c, ""); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "tg", "callback.respond",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return b.handleCancel(c)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, textHelpHeader+"\n"+b.registry.HelpText())
}

func (b *Bot) handleStats(c tele.Context) error {
	st := b.sessions.Stats()
	var sent, failed uint64
	var queued int
	if b.dispatcher != nil {
		ds := b.dispatcher.Stats()
		sent, failed, queued = ds.Sent, ds.Failed, ds.Queued
	}
	return tghelpers.SendText(c, fmt.Sprintf(textStatsTemplate,
		st.Sessions, st.Conversations, st.PendingJobs, sent, failed, queued))
}

// sendReply renders a conversation reply, with the cancel button when asked for.
func (b *Bot) sendReply(c tele.Context, r conversation.Reply) error {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return nil
	}
	if r.WithCancel {
		return tghelpers.SendText(c, text, &tele.SendOptions{
			ReplyMarkup: keyboard.SingleCancelMarkup(CallbackCancel),
		})
	}
	return tghelpers.SendText(c, text)
}
