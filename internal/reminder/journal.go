package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/remindbot/core/logger"
)

// EventKind names a reminder lifecycle step.
type EventKind string

const (
	EventScheduled EventKind = "scheduled"
	EventFired     EventKind = "fired"
	EventCancelled EventKind = "cancelled"
)

// Event is one journal entry.
type Event struct {
	Kind   EventKind
	JobID  uuid.UUID
	ChatID int64
	FireAt time.Time
	At     time.Time
}

// Journal records reminder events for operators. It is never read back by the bot.
type Journal interface {
	Record(ctx context.Context, ev Event) error
}

const defaultJournalBuffer = 256

type journalEntry struct {
	ctx context.Context
	ev  Event
}

// journalWriter feeds events to a Journal from its own goroutine, in submission order.
type journalWriter struct {
	next  Journal
	queue chan journalEntry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newJournalWriter(next Journal, size int) *journalWriter {
	if size <= 0 {
		size = defaultJournalBuffer
	}
	w := &journalWriter{
		next:  next,
		queue: make(chan journalEntry, size),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *journalWriter) loop() {
	defer close(w.done)
	for e := range w.queue {
		if err := w.next.Record(e.ctx, e.ev); err != nil {
			logger.LogEvent(e.ctx, logger.SCHED, slog.LevelWarn, "reminder.journal",
				slog.String("status", "fail"),
				slog.String("state", string(e.ev.Kind)),
				slog.String("job_id", e.ev.JobID.String()),
				slog.String("err", err.Error()),
			)
		}
	}
}

// submit queues ev without blocking. It reports false when the queue is full or closed.
func (w *journalWriter) submit(ctx context.Context, ev Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- journalEntry{ctx: context.WithoutCancel(ctx), ev: ev}:
		return true
	default:
		return false
	}
}

// close stops accepting events and waits until the queued ones are written.
func (w *journalWriter) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}
