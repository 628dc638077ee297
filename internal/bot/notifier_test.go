package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tgsender "github.com/m3rciful/remindbot/core/telegram/sender"
)

type fakeAPI struct {
	mu   sync.Mutex
	to   []string
	text []string
	err  error
}

func (a *fakeAPI) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.to = append(a.to, to.Recipient())
	a.text = append(a.text, what.(string))
	return &tele.Message{}, a.err
}

func (a *fakeAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.to)
}

func TestNotifierSendsDirectlyWithoutDispatcher(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, nil)

	require.NoError(t, n.Notify(context.Background(), 77, "This is your reminder!"))
	assert.Equal(t, []string{"77"}, api.to)
	assert.Equal(t, []string{"This is your reminder!"}, api.text)

	api.err = errors.New("forbidden")
	assert.Error(t, n.Notify(context.Background(), 77, "again"))
}

func TestNotifierUsesDispatcher(t *testing.T) {
	api := &fakeAPI{}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1})
	n := NewNotifier(api, d)

	require.NoError(t, n.Notify(context.Background(), 9, "ping"))
	require.Eventually(t, func() bool { return api.calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	d.Close()
	assert.Equal(t, uint64(1), d.Stats().Sent)

	// A closed queue falls back to a direct send.
	require.NoError(t, n.Notify(context.Background(), 9, "pong"))
	assert.Equal(t, 2, api.calls())
}
