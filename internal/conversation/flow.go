// Package conversation implements the /set_time dialogue: the bot asks for a date, then a
// time, and schedules a reminder at the combined moment.
//
// The step lives in the chat's state.Session and every state change happens inside
// Manager.Update. The time step is claimed (StateScheduling) before the reminder is armed, so
// of two concurrent time messages only one schedules, and a /cancel that lands while the
// reminder is being armed revokes it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/remindbot/core/logger"
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"
	"github.com/m3rciful/remindbot/core/telegram/state"
	"github.com/m3rciful/remindbot/internal/reminder"

	tele "gopkg.in/telebot.v4"
)

// User-facing texts.
const (
	TextAskDate      = "Please send the date of the reminder in YYYY-MM-DD format."
	TextAskTime      = "Now send the time in HH:MM format."
	TextBadDate      = "I couldn't read that date. Please use YYYY-MM-DD, for example 2030-12-31."
	TextPastDate     = "That date has already passed. Please send today's date or a later one."
	TextBadTime      = "I couldn't read that time. Please use HH:MM, for example 09:30."
	TextPastTime     = "That moment has already passed. Please send a later time."
	TextCancelled    = "Reminder cancelled!"
	TextNoReminders  = "You have no active reminders."
	confirmLayout    = "2006-01-02 15:04"
	confirmPrefix    = "Reminder set for "
	handlerNamespace = "conversation."
)

// Scheduler is the part of reminder.Scheduler the dialogue needs.
type Scheduler interface {
	ScheduleAt(ctx context.Context, chatID int64, fireAt time.Time) (reminder.Handle, error)
	Cancel(ctx context.Context, h reminder.Handle) (bool, error)
	CancelLatest(ctx context.Context, chatID int64) (reminder.Handle, bool, error)
	Location() *time.Location
	Now() time.Time
}

// Reply is what the bot should answer. An empty Text means no answer.
type Reply struct {
	Text string
	// WithCancel asks for the inline cancel button under the message.
	WithCancel bool
}

// Responder sends a Reply to the chat of c.
type Responder func(c tele.Context, r Reply) error

// Options configures a Flow.
type Options struct {
	Scheduler Scheduler
	Sessions  state.Manager
}

// Flow drives the date and time dialogue of each chat.
type Flow struct {
	scheduler Scheduler
	sessions  state.Manager
}

// New returns a Flow. Both options are required.
func New(opts Options) *Flow {
	return &Flow{scheduler: opts.Scheduler, sessions: opts.Sessions}
}

// Register binds the per-step text handlers on the session manager. Replies go through respond.
func (f *Flow) Register(respond Responder) {
	for _, st := range []state.State{state.StateAwaitingDate, state.StateAwaitingTime} {
		f.sessions.Handle(st, f.textHandler(st, respond))
	}
}

func (f *Flow) textHandler(st state.State, respond Responder) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		ctx := tghelpers.WithHandler(c, handlerNamespace+string(st))
		reply, err := f.Handle(ctx, chat.ID, c.Text())
		if err != nil {
			return err
		}
		if reply.Text == "" {
			return nil
		}
		return respond(c, reply)
	}
}

// Begin starts or restarts the dialogue of the chat. A date collected earlier is discarded.
func (f *Flow) Begin(ctx context.Context, chatID int64) Reply {
	var restarted bool
	_ = f.sessions.Update(chatID, func(s *state.Session) error {
		restarted = s.InProgress()
		s.PendingDate = nil
		s.State = state.StateAwaitingDate
		return nil
	})
	f.log(ctx, "conversation.begin", state.StateAwaitingDate, slog.Bool("restarted", restarted))
	return Reply{Text: TextAskDate, WithCancel: true}
}

// Handle feeds one text message into the chat's current step. Outside a dialogue it returns
// an empty Reply. Bad input yields a corrective Reply and leaves the step unchanged.
func (f *Flow) Handle(ctx context.Context, chatID int64, text string) (Reply, error) {
	snap := f.sessions.Snapshot(chatID)
	switch snap.State {
	case state.StateAwaitingDate:
		return f.handleDate(ctx, chatID, text), nil
	case state.StateAwaitingTime:
		return f.handleTime(ctx, chatID, text, snap.PendingDate)
	default:
		return Reply{}, nil
	}
}

func (f *Flow) handleDate(ctx context.Context, chatID int64, text string) Reply {
	date, err := reminder.ParseDate(text, f.scheduler.Now(), f.scheduler.Location())
	if err != nil {
		f.log(ctx, "conversation.reject", state.StateAwaitingDate, slog.String("err", err.Error()))
		var ve *reminder.ValidationError
		if errors.As(err, &ve) && ve.Reason == reminder.ReasonPast {
			return Reply{Text: TextPastDate, WithCancel: true}
		}
		return Reply{Text: TextBadDate, WithCancel: true}
	}

	advanced := false
	_ = f.sessions.Update(chatID, func(s *state.Session) error {
		if s.State != state.StateAwaitingDate {
			return nil
		}
		s.PendingDate = &date
		s.State = state.StateAwaitingTime
		advanced = true
		return nil
	})
	if !advanced {
		// Cancelled while the date was being parsed.
		return Reply{}
	}
	f.log(ctx, "conversation.step", state.StateAwaitingTime, slog.String("date", date.Format(reminder.DateLayout)))
	return Reply{Text: TextAskTime, WithCancel: true}
}

func (f *Flow) handleTime(ctx context.Context, chatID int64, text string, date *time.Time) (Reply, error) {
	if date == nil {
		_ = f.sessions.Update(chatID, func(s *state.Session) error {
			if s.State == state.StateAwaitingTime {
				s.State = state.StateAwaitingDate
			}
			return nil
		})
		return Reply{Text: TextAskDate, WithCancel: true}, nil
	}

	at, err := reminder.CombineClock(*date, text, f.scheduler.Now())
	if err != nil {
		return f.rejectTime(ctx, err)
	}
	if !f.claim(chatID, *date) {
		f.log(ctx, "conversation.skip", state.StateAwaitingTime, slog.String("reason", "step_taken"))
		return Reply{}, nil
	}

	h, err := f.scheduler.ScheduleAt(ctx, chatID, at)
	if err != nil {
		_ = f.sessions.Update(chatID, func(s *state.Session) error {
			if s.State == state.StateScheduling {
				s.State = state.StateAwaitingTime
			}
			return nil
		})
		return f.rejectTime(ctx, err)
	}

	var after state.State
	_ = f.sessions.Update(chatID, func(s *state.Session) error {
		after = s.State
		if after == state.StateScheduling {
			s.Reset()
		}
		return nil
	})
	if after == state.StateIdle {
		// /cancel ended the dialogue while the reminder was being armed.
		if _, err := f.scheduler.Cancel(ctx, h); err != nil {
			return Reply{}, fmt.Errorf("conversation: revoke: %w", err)
		}
		f.log(ctx, "conversation.revoked", state.StateIdle, slog.String("job_id", h.ID.String()))
		return Reply{}, nil
	}
	f.log(ctx, "conversation.done", state.StateIdle, slog.Time("fire_at", at))
	return Reply{Text: confirmPrefix + at.In(f.scheduler.Location()).Format(confirmLayout)}, nil
}

// claim moves the chat from the time step on date to StateScheduling. It fails when another
// update already left that step.
func (f *Flow) claim(chatID int64, date time.Time) bool {
	claimed := false
	_ = f.sessions.Update(chatID, func(s *state.Session) error {
		if s.State != state.StateAwaitingTime || s.PendingDate == nil || !s.PendingDate.Equal(date) {
			return nil
		}
		s.State = state.StateScheduling
		claimed = true
		return nil
	})
	return claimed
}

func (f *Flow) rejectTime(ctx context.Context, err error) (Reply, error) {
	var (
		ve *reminder.ValidationError
		pe *reminder.PastTimeError
	)
	switch {
	case errors.As(err, &ve):
		f.log(ctx, "conversation.reject", state.StateAwaitingTime, slog.String("err", err.Error()))
		return Reply{Text: TextBadTime, WithCancel: true}, nil
	case errors.As(err, &pe):
		f.log(ctx, "conversation.reject", state.StateAwaitingTime, slog.String("err", err.Error()))
		return Reply{Text: TextPastTime, WithCancel: true}, nil
	default:
		return Reply{}, fmt.Errorf("conversation: schedule: %w", err)
	}
}

// Cancel ends the dialogue, if any, and cancels the chat's most recent reminder.
func (f *Flow) Cancel(ctx context.Context, chatID int64) (Reply, error) {
	var wasActive bool
	_ = f.sessions.Update(chatID, func(s *state.Session) error {
		wasActive = s.InProgress()
		s.Reset()
		return nil
	})

	_, ok, err := f.scheduler.CancelLatest(ctx, chatID)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: cancel: %w", err)
	}
	f.log(ctx, "conversation.cancel", state.StateIdle,
		slog.Bool("in_dialogue", wasActive),
		slog.Bool("cancelled", ok),
	)
	if !ok {
		return Reply{Text: TextNoReminders}, nil
	}
	return Reply{Text: TextCancelled}, nil
}

func (f *Flow) log(ctx context.Context, event string, st state.State, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("status", "ok"),
		slog.String("state", string(st)),
	}, attrs...)
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, event, attrs...)
}
