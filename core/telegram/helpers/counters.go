package helpers

import tele "gopkg.in/telebot.v4"

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

// ResetCounters starts the outbound counters of an update.
func ResetCounters(c tele.Context) {
	c.Set(messagesKey, 0)
	c.Set(keyboardKey, false)
}

// CountMessage records one outbound message at the moment it is handed to the sender,
// so the handler summary sees it even when delivery is asynchronous.
func CountMessage(c tele.Context, withKeyboard bool) {
	n, _ := c.Get(messagesKey).(int)
	c.Set(messagesKey, n+1)
	if withKeyboard {
		c.Set(keyboardKey, true)
	}
}

// Counters returns the number of messages sent for the update and whether any carried a keyboard.
func Counters(c tele.Context) (int, bool) {
	n, _ := c.Get(messagesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return n, kb
}
