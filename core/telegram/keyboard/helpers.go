// Package keyboard builds the reply markups the bot attaches to messages.
package keyboard

import tele "gopkg.in/telebot.v4"

// CancelLabel is the caption of the inline cancel button.
const CancelLabel = "❌ Cancel"

// ForceReply opens the reply box on the client. With selective set only the mentioned
// user, or the author of the replied-to message, sees it.
func ForceReply(selective bool) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true, Selective: selective}
}

// SingleCancelMarkup is an inline keyboard with one cancel button whose callback
// unique is unique. An optional label replaces CancelLabel.
func SingleCancelMarkup(unique string, label ...string) *tele.ReplyMarkup {
	text := CancelLabel
	if len(label) > 0 && label[0] != "" {
		text = label[0]
	}
	rm := &tele.ReplyMarkup{}
	rm.Inline(rm.Row(rm.Data(text, unique)))
	return rm
}
