package middleware

import (
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MessageMetricsMiddleware resets the per-update outbound counters. The send helpers
// increment them and the handler summary log reports them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.ResetCounters(c)
		return next(c)
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	return tghelpers.Counters(c)
}
