package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/remindbot/internal/reminder"
)

type fakeExecer struct {
	query    string
	arg      interface{}
	deadline bool
	err      error
}

func (f *fakeExecer) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	f.query = query
	f.arg = arg
	_, f.deadline = ctx.Deadline()
	return nil, f.err
}

func TestRecordInsertsEventRow(t *testing.T) {
	db := &fakeExecer{}
	j := newJournal(db, 0)
	id := uuid.New()
	loc := time.FixedZone("UTC+3", 3*3600)
	fireAt := time.Date(2099, 1, 1, 8, 0, 0, 0, loc)
	at := time.Date(2098, 12, 31, 20, 0, 0, 0, loc)

	require.NoError(t, j.Record(context.Background(), reminder.Event{
		Kind:   reminder.EventScheduled,
		JobID:  id,
		ChatID: 42,
		FireAt: fireAt,
		At:     at,
	}))

	assert.Contains(t, db.query, "INSERT INTO reminder_events")
	assert.True(t, db.deadline)
	row, ok := db.arg.(eventRow)
	require.True(t, ok)
	assert.Equal(t, eventRow{
		JobID:      id.String(),
		ChatID:     42,
		Kind:       "scheduled",
		FireAt:     fireAt.UTC(),
		RecordedAt: at.UTC(),
	}, row)
}

func TestRecordWrapsError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection refused")}
	j := newJournal(db, time.Second)

	err := j.Record(context.Background(), reminder.Event{Kind: reminder.EventFired, JobID: uuid.New()})
	require.Error(t, err)
	assert.ErrorIs(t, err, db.err)
	assert.Contains(t, err.Error(), "fired")
}

func TestRecordSurvivesCancelledCaller(t *testing.T) {
	db := &fakeExecer{}
	j := newJournal(db, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, j.Record(ctx, reminder.Event{Kind: reminder.EventCancelled, JobID: uuid.New()}))
	row := db.arg.(eventRow)
	assert.False(t, row.RecordedAt.IsZero())
}
