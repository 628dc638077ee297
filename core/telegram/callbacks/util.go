// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData returns the button unique and its payload. Telebot fills Unique for
// buttons it decoded itself; otherwise Data still holds the raw "\f<unique>|<payload>".
func ParseCallbackData(cb *tele.Callback) (unique, payload string) {
	switch {
	case cb == nil:
		return "", ""
	case cb.Unique != "":
		return cb.Unique, cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}
