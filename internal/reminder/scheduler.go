// Package reminder schedules one-shot reminder notifications per chat.
//
// Jobs are recorded in the chat's session before their timer is armed. A timer only posts
// an event to the Scheduler's loop (Run), which removes the job from the session under the
// session lock and notifies the chat only if it was still there. A cancel that wins the
// race therefore suppresses delivery, and each job is delivered at most once.
//
// Journal events are written by a separate goroutine in the order they happen, so a slow
// journal never delays scheduling or delivery.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/core/telegram/state"
)

// DefaultText is the notification body.
const DefaultText = "This is your reminder!"

const defaultBuffer = 64

// Notifier delivers a fired reminder to its chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, chatID int64, text string) error

func (f NotifierFunc) Notify(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}

// Handle identifies a scheduled reminder. Handles of fired or cancelled jobs are inert.
type Handle struct {
	ID     uuid.UUID
	ChatID int64
	FireAt time.Time
}

// IsZero reports whether h refers to no job.
func (h Handle) IsZero() bool { return h.ID == uuid.Nil }

// Options configures a Scheduler.
type Options struct {
	Sessions state.Manager
	// Backend defaults to a gocron backend in Location.
	Backend Backend
	// Journal is optional.
	Journal Journal
	// JournalBuffer caps the journal events waiting to be written. Overflow is dropped.
	JournalBuffer int
	Text    string
	// Now defaults to time.Now.
	Now      func() time.Time
	Location *time.Location
	// Buffer is the capacity of the fire event channel.
	Buffer int
}

type fireEvent struct {
	chatID int64
	id     uuid.UUID
}

// Scheduler owns reminder jobs.
type Scheduler struct {
	sessions state.Manager
	backend  Backend
	journal  *journalWriter
	text     string
	now      func() time.Time
	loc      *time.Location

	events    chan fireEvent
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a Scheduler. Call Run to start delivering reminders and Close to stop timers.
func New(opts Options) (*Scheduler, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("reminder: session manager is required")
	}
	s := &Scheduler{
		sessions: opts.Sessions,
		backend:  opts.Backend,
		text:     opts.Text,
		now:      opts.Now,
		loc:      opts.Location,
	}
	if s.text == "" {
		s.text = DefaultText
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.backend == nil {
		b, err := NewGocronBackend(s.loc)
		if err != nil {
			return nil, err
		}
		s.backend = b
	}
	if opts.Journal != nil {
		s.journal = newJournalWriter(opts.Journal, opts.JournalBuffer)
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = defaultBuffer
	}
	s.events = make(chan fireEvent, buf)
	s.done = make(chan struct{})
	return s, nil
}

// Location is the zone used to interpret dates and times typed by users.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Now returns the current time in Location.
func (s *Scheduler) Now() time.Time { return s.now().In(s.loc) }

// ScheduleAt schedules a reminder for the chat at fireAt, which must be strictly in the future.
func (s *Scheduler) ScheduleAt(ctx context.Context, chatID int64, fireAt time.Time) (Handle, error) {
	if now := s.now(); !fireAt.After(now) {
		return Handle{}, &PastTimeError{FireAt: fireAt, Now: now}
	}
	return s.schedule(ctx, chatID, fireAt)
}

// ScheduleIn schedules a reminder delay from now. A zero delay fires immediately.
func (s *Scheduler) ScheduleIn(ctx context.Context, chatID int64, delay time.Duration) (Handle, error) {
	if delay < 0 {
		return Handle{}, &ValidationError{Field: "delay", Input: delay.String(), Reason: ReasonNegative}
	}
	return s.schedule(ctx, chatID, s.now().Add(delay))
}

func (s *Scheduler) schedule(ctx context.Context, chatID int64, fireAt time.Time) (Handle, error) {
	select {
	case <-s.done:
		return Handle{}, fmt.Errorf("reminder: scheduler closed")
	default:
	}

	job := state.Job{ID: uuid.New(), ChatID: chatID, FireAt: fireAt, Text: s.text}
	_ = s.sessions.Update(chatID, func(sess *state.Session) error {
		sess.Jobs = append(sess.Jobs, job)
		return nil
	})
	s.record(ctx, EventScheduled, job)

	backendID, err := s.backend.Schedule(fireAt, job.ID.String(), func() {
		s.post(fireEvent{chatID: chatID, id: job.ID})
	})
	if err != nil {
		_ = s.sessions.Update(chatID, func(sess *state.Session) error {
			sess.RemoveJob(job.ID)
			return nil
		})
		logger.LogEvent(ctx, logger.SCHED, slog.LevelError, "reminder.schedule",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		s.record(ctx, EventCancelled, job)
		return Handle{}, fmt.Errorf("reminder: arm timer: %w", err)
	}

	attached := false
	_ = s.sessions.Update(chatID, func(sess *state.Session) error {
		for i := range sess.Jobs {
			if sess.Jobs[i].ID == job.ID {
				sess.Jobs[i].BackendID = backendID
				attached = true
				break
			}
		}
		return nil
	})
	if !attached {
		// Fired or cancelled before the timer id was known.
		s.stopTimer(ctx, state.Job{ID: job.ID, ChatID: chatID, BackendID: backendID})
	}

	logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "reminder.scheduled",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.String("job_id", job.ID.String()),
		slog.Time("fire_at", fireAt),
		slog.Duration("delay", fireAt.Sub(s.now())),
	)
	return Handle{ID: job.ID, ChatID: chatID, FireAt: fireAt}, nil
}

// Cancel stops a pending reminder. It returns false, nil for an inert handle.
func (s *Scheduler) Cancel(ctx context.Context, h Handle) (bool, error) {
	if h.IsZero() {
		return false, nil
	}
	var (
		job   state.Job
		found bool
	)
	_ = s.sessions.Update(h.ChatID, func(sess *state.Session) error {
		job, found = sess.RemoveJob(h.ID)
		return nil
	})
	if !found {
		return false, nil
	}
	s.cancelled(ctx, job)
	return true, nil
}

// Remove is Cancel for callers that treat an inert handle as an error (ErrInactive).
func (s *Scheduler) Remove(ctx context.Context, h Handle) error {
	ok, err := s.Cancel(ctx, h)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInactive
	}
	return nil
}

// CancelLatest cancels the most recently scheduled pending reminder of the chat.
func (s *Scheduler) CancelLatest(ctx context.Context, chatID int64) (Handle, bool, error) {
	var (
		job   state.Job
		found bool
	)
	_ = s.sessions.Update(chatID, func(sess *state.Session) error {
		job, found = sess.PopLatest()
		return nil
	})
	if !found {
		return Handle{}, false, nil
	}
	s.cancelled(ctx, job)
	return Handle{ID: job.ID, ChatID: job.ChatID, FireAt: job.FireAt}, true, nil
}

func (s *Scheduler) cancelled(ctx context.Context, job state.Job) {
	s.stopTimer(ctx, job)
	logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "reminder.cancelled",
		slog.String("status", "ok"),
		slog.Int64("chat_id", job.ChatID),
		slog.String("job_id", job.ID.String()),
	)
	s.record(ctx, EventCancelled, job)
}

// Pending lists the chat's active reminders in scheduling order.
func (s *Scheduler) Pending(chatID int64) []Handle {
	sess := s.sessions.Snapshot(chatID)
	out := make([]Handle, 0, len(sess.Jobs))
	for _, j := range sess.Jobs {
		out = append(out, Handle{ID: j.ID, ChatID: j.ChatID, FireAt: j.FireAt})
	}
	return out
}

// Run delivers fired reminders through n until ctx is done or Close is called.
func (s *Scheduler) Run(ctx context.Context, n Notifier) error {
	if n == nil {
		return fmt.Errorf("reminder: nil notifier")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case ev := <-s.events:
			s.fire(ctx, n, ev)
		}
	}
}

func (s *Scheduler) post(ev fireEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Scheduler) fire(ctx context.Context, n Notifier, ev fireEvent) {
	ctx = logger.WithChat(ctx, ev.chatID)
	var (
		job     state.Job
		removed bool
	)
	_ = s.sessions.Update(ev.chatID, func(sess *state.Session) error {
		job, removed = sess.RemoveJob(ev.id)
		return nil
	})
	if !removed {
		logger.LogEvent(ctx, logger.SCHED, slog.LevelDebug, "reminder.fire",
			slog.String("status", "skip"),
			slog.String("job_id", ev.id.String()),
		)
		return
	}
	s.stopTimer(ctx, job)

	start := time.Now()
	err := n.Notify(ctx, job.ChatID, job.Text)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("job_id", job.ID.String()),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.LogEvent(ctx, logger.SCHED, slog.LevelError, "reminder.fired", attrs...)
	} else {
		logger.LogEvent(ctx, logger.SCHED, slog.LevelInfo, "reminder.fired", attrs...)
	}
	s.record(ctx, EventFired, job)
}

func (s *Scheduler) stopTimer(ctx context.Context, job state.Job) {
	if err := s.backend.Remove(job.BackendID); err != nil {
		logger.LogEvent(ctx, logger.SCHED, slog.LevelWarn, "reminder.timer.remove",
			slog.String("status", "fail"),
			slog.String("job_id", job.ID.String()),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Scheduler) record(ctx context.Context, kind EventKind, job state.Job) {
	if s.journal == nil {
		return
	}
	ev := Event{Kind: kind, JobID: job.ID, ChatID: job.ChatID, FireAt: job.FireAt, At: s.now()}
	if !s.journal.submit(ctx, ev) {
		logger.LogEvent(ctx, logger.SCHED, slog.LevelWarn, "reminder.journal",
			slog.String("status", "drop"),
			slog.String("state", string(kind)),
			slog.String("job_id", job.ID.String()),
		)
	}
}

// Close stops Run and shuts the timer backend down, then flushes the journal. Pending
// reminders are dropped.
func (s *Scheduler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.backend.Close()
		if s.journal != nil {
			s.journal.close()
		}
	})
	return err
}
