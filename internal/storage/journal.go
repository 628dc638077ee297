// Package storage persists the reminder event journal in Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/internal/reminder"
)

const (
	defaultTimeout = 3 * time.Second

	insertEvent = `
        INSERT INTO reminder_events (job_id, chat_id, kind, fire_at, recorded_at)
        VALUES (:job_id, :chat_id, :kind, :fire_at, :recorded_at)`
)

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

var _ namedExecer = (*sqlx.DB)(nil)

type eventRow struct {
	JobID      string    `db:"job_id"`
	ChatID     int64     `db:"chat_id"`
	Kind       string    `db:"kind"`
	FireAt     time.Time `db:"fire_at"`
	RecordedAt time.Time `db:"recorded_at"`
}

// Journal implements reminder.Journal on the reminder_events table.
type Journal struct {
	db      namedExecer
	timeout time.Duration
}

var _ reminder.Journal = (*Journal)(nil)

// NewJournal wraps db. A zero timeout selects 3s per insert.
func NewJournal(db *sqlx.DB, timeout time.Duration) *Journal {
	return newJournal(db, timeout)
}

func newJournal(db namedExecer, timeout time.Duration) *Journal {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Journal{db: db, timeout: timeout}
}

// Record inserts one event. The reminder path only logs its error.
func (j *Journal) Record(ctx context.Context, ev reminder.Event) error {
	row := eventRow{
		JobID:      ev.JobID.String(),
		ChatID:     ev.ChatID,
		Kind:       string(ev.Kind),
		FireAt:     ev.FireAt.UTC(),
		RecordedAt: ev.At.UTC(),
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()

	start := time.Now()
	_, err := j.db.NamedExecContext(ctx, insertEvent, row)
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "journal.insert",
		slog.String("status", logger.Status(err)),
		slog.String("state", row.Kind),
		slog.String("job_id", row.JobID),
		slog.Duration("duration", time.Since(start)),
	)
	if err != nil {
		return fmt.Errorf("storage: record %s event: %w", row.Kind, err)
	}
	return nil
}
