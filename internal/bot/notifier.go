package bot

import (
	"context"

	tgsender "github.com/m3rciful/remindbot/core/telegram/sender"
	"github.com/m3rciful/remindbot/internal/reminder"

	tele "gopkg.in/telebot.v4"
)

// API is the slice of *tele.Bot used to push reminders.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier pushes fired reminders to their chats through the outbound dispatcher.
type Notifier struct {
	api        API
	dispatcher *tgsender.Dispatcher
}

var _ reminder.Notifier = (*Notifier)(nil)

// NewNotifier returns a Notifier. A nil dispatcher sends synchronously.
func NewNotifier(api API, dispatcher *tgsender.Dispatcher) *Notifier {
	return &Notifier{api: api, dispatcher: dispatcher}
}

// Notify enqueues the push. It only fails when the message could not even be queued or,
// without a dispatcher, sent.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	return n.dispatcher.Submit(ctx, "send.reminder", "sendMessage", func() error {
		_, err := n.api.Send(tele.ChatID(chatID), text)
		return err
	})
}
