package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers update ids for a short while so an update that passes through
// several wrapped branches is logged once.
type seenUpdates struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

var receipts = &seenUpdates{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

// firstTime reports whether id was not seen within ttl, and marks it seen.
func (s *seenUpdates) firstTime(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for old, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, old)
		}
	}
	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = now
	return true
}

// LoggerMiddleware builds a fresh update context (see tghelpers.NewUpdateContext) and
// logs one sampled debug "update.received" line per update id.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(tghelpers.RIDKey, "")
		ctx := tghelpers.NewUpdateContext(c)

		if logger.ShouldSampleDebug() && receipts.firstTime(c.Update().ID, time.Now()) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c, logger.RIDFrom(ctx))...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, rid string) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("rid", rid),
		slog.Int("update_id", upd.ID),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.Int64("chat_id", chat.ID), slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs, slog.Int64("user_id", user.ID))
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	var payload string
	switch {
	case upd.Callback != nil:
		var key string
		key, payload = callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
	case upd.Message != nil:
		payload = c.Text()
	}
	if payload != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
	}
	return attrs
}
