package bot

import (
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	TextUnknown         = "Sorry, I didn't understand that. Send /help to see what I can do."
	TextUnknownDocument = "I can't do anything with files. Send /help to see what I can do."
	textUnknownAction   = "This button is no longer supported."
)

// UnknownText answers plain text outside a conversation with a hint to /help.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, TextUnknown)
	}
}

// UnknownDocument answers uploaded files.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, TextUnknownDocument)
	}
}

// UnknownCallback acknowledges buttons the bot no longer handles.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Respond(c, textUnknownAction)
	}
}
