// Package ui holds presentation contracts shared by bots.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider answers updates that match no command, callback or conversation step.
// The handlers are plugged into router.TextOptions and Registry.SetCallbackNotFound.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
