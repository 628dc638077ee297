package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/remindbot/core/telegram/state"
	"github.com/m3rciful/remindbot/internal/reminder"
)

var now = time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []time.Time
	pending   int
	revoked   int
	err       error
	// entered receives a value when ScheduleAt starts; gate, when set, holds it until closed.
	entered chan struct{}
	gate    chan struct{}
}

func (s *fakeScheduler) ScheduleAt(_ context.Context, chatID int64, at time.Time) (reminder.Handle, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return reminder.Handle{}, s.err
	}
	if !at.After(now) {
		return reminder.Handle{}, &reminder.PastTimeError{FireAt: at, Now: now}
	}
	s.scheduled = append(s.scheduled, at)
	s.pending++
	return reminder.Handle{ID: uuid.New(), ChatID: chatID, FireAt: at}, nil
}

func (s *fakeScheduler) Cancel(_ context.Context, h reminder.Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.IsZero() || s.pending == 0 {
		return false, nil
	}
	s.pending--
	s.revoked++
	return true, nil
}

func (s *fakeScheduler) CancelLatest(_ context.Context, chatID int64) (reminder.Handle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		return reminder.Handle{}, false, nil
	}
	s.pending--
	return reminder.Handle{ID: uuid.New(), ChatID: chatID}, true, nil
}

func (s *fakeScheduler) Location() *time.Location { return time.UTC }
func (s *fakeScheduler) Now() time.Time           { return now }

func newFlow() (*Flow, *fakeScheduler, state.Manager) {
	sched := &fakeScheduler{}
	sessions := state.NewMemoryManager()
	return New(Options{Scheduler: sched, Sessions: sessions}), sched, sessions
}

const chat = int64(100)

func TestBeginAsksForDate(t *testing.T) {
	f, _, sessions := newFlow()

	r := f.Begin(context.Background(), chat)
	assert.Equal(t, Reply{Text: TextAskDate, WithCancel: true}, r)
	assert.Equal(t, state.StateAwaitingDate, sessions.Snapshot(chat).State)
}

func TestDateStep(t *testing.T) {
	cases := []struct {
		name  string
		input string
		reply string
		next  state.State
	}{
		{"future", "2099-01-01", TextAskTime, state.StateAwaitingTime},
		{"today", "2030-06-15", TextAskTime, state.StateAwaitingTime},
		{"past", "2000-01-01", TextPastDate, state.StateAwaitingDate},
		{"yesterday", "2030-06-14", TextPastDate, state.StateAwaitingDate},
		{"garbage", "not-a-date", TextBadDate, state.StateAwaitingDate},
		{"wrong layout", "01/01/2099", TextBadDate, state.StateAwaitingDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, _, sessions := newFlow()
			ctx := context.Background()
			f.Begin(ctx, chat)

			r, err := f.Handle(ctx, chat, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.reply, r.Text)
			assert.True(t, r.WithCancel)

			snap := sessions.Snapshot(chat)
			assert.Equal(t, tc.next, snap.State)
			if tc.next == state.StateAwaitingTime {
				require.NotNil(t, snap.PendingDate)
				assert.Equal(t, tc.input, snap.PendingDate.Format(reminder.DateLayout))
			} else {
				assert.Nil(t, snap.PendingDate)
			}
		})
	}
}

func TestTimeStepSchedulesAndEnds(t *testing.T) {
	f, sched, sessions := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, err := f.Handle(ctx, chat, "2099-01-01")
	require.NoError(t, err)

	r, err := f.Handle(ctx, chat, "23:59")
	require.NoError(t, err)
	assert.Equal(t, "Reminder set for 2099-01-01 23:59", r.Text)
	assert.False(t, r.WithCancel)

	require.Len(t, sched.scheduled, 1)
	assert.Equal(t, time.Date(2099, 1, 1, 23, 59, 0, 0, time.UTC), sched.scheduled[0])

	snap := sessions.Snapshot(chat)
	assert.Equal(t, state.StateIdle, snap.State)
	assert.Nil(t, snap.PendingDate)
}

func TestTimeStepRejectsAndKeepsStep(t *testing.T) {
	cases := []struct {
		name  string
		input string
		reply string
	}{
		{"earlier today", "11:00", TextPastTime},
		{"this minute", "12:00", TextPastTime},
		{"garbage", "noon", TextBadTime},
		{"out of range", "25:00", TextBadTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, sched, sessions := newFlow()
			ctx := context.Background()
			f.Begin(ctx, chat)
			_, err := f.Handle(ctx, chat, "2030-06-15")
			require.NoError(t, err)

			r, err := f.Handle(ctx, chat, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.reply, r.Text)
			assert.Empty(t, sched.scheduled)

			snap := sessions.Snapshot(chat)
			assert.Equal(t, state.StateAwaitingTime, snap.State)
			assert.NotNil(t, snap.PendingDate)
		})
	}

	f, sched, _ := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, _ = f.Handle(ctx, chat, "2030-06-15")
	r, err := f.Handle(ctx, chat, "12:01")
	require.NoError(t, err)
	assert.Equal(t, "Reminder set for 2030-06-15 12:01", r.Text)
	assert.Len(t, sched.scheduled, 1)
}

func TestTimeStepSchedulerFailure(t *testing.T) {
	f, sched, sessions := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, _ = f.Handle(ctx, chat, "2099-01-01")
	sched.err = errors.New("scheduler closed")

	_, err := f.Handle(ctx, chat, "10:00")
	require.Error(t, err)
	assert.Equal(t, state.StateAwaitingTime, sessions.Snapshot(chat).State)
}

func TestConcurrentTimeMessagesScheduleOnce(t *testing.T) {
	f, sched, sessions := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, err := f.Handle(ctx, chat, "2099-01-01")
	require.NoError(t, err)

	sched.entered = make(chan struct{}, 2)
	sched.gate = make(chan struct{})

	replies := make([]Reply, 2)
	var wg sync.WaitGroup
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.Handle(ctx, chat, "23:59")
			assert.NoError(t, err)
			replies[i] = r
		}(i)
	}
	<-sched.entered
	close(sched.gate)
	wg.Wait()

	assert.Len(t, sched.scheduled, 1)
	assert.ElementsMatch(t, []string{"Reminder set for 2099-01-01 23:59", ""},
		[]string{replies[0].Text, replies[1].Text})
	assert.Equal(t, state.StateIdle, sessions.Snapshot(chat).State)
}

func TestCancelDuringTimeStepRevokesReminder(t *testing.T) {
	f, sched, sessions := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, err := f.Handle(ctx, chat, "2099-01-01")
	require.NoError(t, err)

	sched.entered = make(chan struct{}, 1)
	sched.gate = make(chan struct{})

	done := make(chan Reply, 1)
	go func() {
		r, err := f.Handle(ctx, chat, "23:59")
		assert.NoError(t, err)
		done <- r
	}()
	<-sched.entered
	assert.Equal(t, state.StateScheduling, sessions.Snapshot(chat).State)

	// Text arriving mid-step finds no step to feed.
	r, err := f.Handle(ctx, chat, "23:58")
	require.NoError(t, err)
	assert.Empty(t, r.Text)

	r, err = f.Cancel(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, TextNoReminders, r.Text)

	close(sched.gate)
	assert.Empty(t, (<-done).Text)
	assert.Zero(t, sched.pending)
	assert.Equal(t, 1, sched.revoked)
	assert.Equal(t, state.StateIdle, sessions.Snapshot(chat).State)
}

func TestRestartDuringTimeStepKeepsReminder(t *testing.T) {
	f, sched, sessions := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, err := f.Handle(ctx, chat, "2099-01-01")
	require.NoError(t, err)

	sched.entered = make(chan struct{}, 1)
	sched.gate = make(chan struct{})
	done := make(chan Reply, 1)
	go func() {
		r, _ := f.Handle(ctx, chat, "23:59")
		done <- r
	}()
	<-sched.entered
	f.Begin(ctx, chat)
	close(sched.gate)

	assert.Equal(t, "Reminder set for 2099-01-01 23:59", (<-done).Text)
	assert.Equal(t, 1, sched.pending)
	assert.Equal(t, state.StateAwaitingDate, sessions.Snapshot(chat).State)
}

func TestHandleOutsideDialogue(t *testing.T) {
	f, _, _ := newFlow()
	r, err := f.Handle(context.Background(), chat, "2099-01-01")
	require.NoError(t, err)
	assert.Empty(t, r.Text)
}

func TestBeginRestartsDialogue(t *testing.T) {
	f, _, sessions := newFlow()
	ctx := context.Background()
	f.Begin(ctx, chat)
	_, _ = f.Handle(ctx, chat, "2099-01-01")
	require.Equal(t, state.StateAwaitingTime, sessions.Snapshot(chat).State)

	f.Begin(ctx, chat)
	snap := sessions.Snapshot(chat)
	assert.Equal(t, state.StateAwaitingDate, snap.State)
	assert.Nil(t, snap.PendingDate)
}

func TestCancel(t *testing.T) {
	f, sched, sessions := newFlow()
	ctx := context.Background()

	r, err := f.Cancel(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, TextNoReminders, r.Text)

	sched.pending = 1
	f.Begin(ctx, chat)
	_, _ = f.Handle(ctx, chat, "2099-01-01")

	r, err = f.Cancel(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, TextCancelled, r.Text)
	assert.Zero(t, sched.pending)

	snap := sessions.Snapshot(chat)
	assert.Equal(t, state.StateIdle, snap.State)
	assert.Nil(t, snap.PendingDate)

	// A dialogue with nothing scheduled still ends.
	f.Begin(ctx, chat)
	r, err = f.Cancel(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, TextNoReminders, r.Text)
	assert.Equal(t, state.StateIdle, sessions.Snapshot(chat).State)
}

type textContext struct {
	tele.Context
	chat  *tele.Chat
	text  string
	store map[string]any
}

func (c *textContext) Chat() *tele.Chat      { return c.chat }
func (c *textContext) Sender() *tele.User    { return &tele.User{ID: c.chat.ID} }
func (c *textContext) Text() string          { return c.text }
func (c *textContext) Update() tele.Update   { return tele.Update{ID: 1} }
func (c *textContext) Get(key string) any    { return c.store[key] }
func (c *textContext) Set(key string, v any) { c.store[key] = v }

func TestRegisterRoutesTextThroughManager(t *testing.T) {
	f, _, sessions := newFlow()
	var replies []Reply
	f.Register(func(_ tele.Context, r Reply) error {
		replies = append(replies, r)
		return nil
	})

	f.Begin(context.Background(), chat)
	c := &textContext{chat: &tele.Chat{ID: chat}, text: "2099-01-01", store: map[string]any{}}
	require.NoError(t, sessions.ManagerHandler(c))

	require.Len(t, replies, 1)
	assert.Equal(t, TextAskTime, replies[0].Text)
	assert.Equal(t, state.StateAwaitingTime, sessions.Snapshot(chat).State)
}
