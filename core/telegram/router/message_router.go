package router

import (
	tg "github.com/m3rciful/remindbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FSM is the part of the session manager the text route needs.
type FSM interface {
	InProgress(chatID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the OnText and OnDocument routes.
//
// Plain text of a chat with a conversation in progress goes to the FSM. Otherwise a
// public command alias ("help") is tried, then the registry text fallback, then
// UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		name, h := pickTextHandler(c, fsm, reg, opts)
		if h == nil {
			skipped(c, name)
			return nil
		}
		return summarized(c, name, h)
	}
	document := func(c tele.Context) error {
		if opts.UnknownDocument == nil {
			skipped(c, "unexpected_document")
			return nil
		}
		return summarized(c, "unexpected_document", opts.UnknownDocument)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guarded(text)},
		{Endpoint: tele.OnDocument, Handler: guarded(document)},
	}
}

func pickTextHandler(c tele.Context, fsm FSM, reg *tg.Registry, opts TextOptions) (string, tele.HandlerFunc) {
	if chat := c.Chat(); fsm != nil && chat != nil && fsm.InProgress(chat.ID) {
		return "fsm", fsm.ManagerHandler
	}
	if reg != nil {
		if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
			return normalizeHandlerName(key), cmd.Handler
		}
		if fb := reg.TextFallback(); fb != nil {
			return "fallback", fb
		}
	}
	return "unknown_text", opts.UnknownText
}
