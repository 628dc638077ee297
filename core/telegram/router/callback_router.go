package router

import (
	"log/slog"

	"github.com/m3rciful/remindbot/core/logger"
	tg "github.com/m3rciful/remindbot/core/telegram"
	"github.com/m3rciful/remindbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers keys without a registered handler when the registry has no fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute mounts a single tele.OnCallback handler that dispatches on the callback key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, payload := callbacks.ParseCallbackData(c.Callback())

		run, found := resolveCallback(reg, opts, key)
		attrs := []slog.Attr{slog.String("cb_key", logger.SanitizeLimit(key, 128))}
		if payload != "" {
			attrs = append(attrs, slog.Int("payload_len", len(payload)))
		}
		if !found {
			attrs = append(attrs, slog.String("reason", "not_found"))
		}
		return summarized(c, "callback."+normalizeHandlerName(key), run, attrs...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: guarded(handler)}
}

// resolveCallback picks the registered handler, then the registry fallback, then opts.NotFound.
func resolveCallback(reg *tg.Registry, opts CallbackOptions, key string) (tele.HandlerFunc, bool) {
	if h, ok := reg.GetCallback(key); ok && h != nil {
		return h, true
	}
	if h := reg.CallbackNotFound(); h != nil {
		return h, false
	}
	return opts.NotFound, false
}
