package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/remindbot/core/logger"
	tghelpers "github.com/m3rciful/remindbot/core/telegram/helpers"
	"github.com/m3rciful/remindbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// guarded puts the panic guard and the receipt logger in front of h.
func guarded(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// summarized runs h under the handler name and logs one "handler.handled" line afterwards.
func summarized(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	var err error
	if h != nil {
		err = h(c)
	}
	status := "ok"
	if err != nil {
		status = "fail"
	}
	logSummary(c, name, status, time.Since(start), err, extras)
	return err
}

// skipped logs an update nobody handled.
func skipped(c tele.Context, name string) {
	tghelpers.WithHandler(c, name)
	logSummary(c, name, "skip", 0, nil, nil)
}

func logSummary(c tele.Context, name, status string, took time.Duration, err error, extras []slog.Attr) {
	msgs, kb := middleware.GetCounters(c)
	attrs := make([]slog.Attr, 0, 8+len(extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(tghelpers.BuildContext(c), logger.TG, level, "handler.handled", attrs...)
}

// normalizeHandlerName turns "/Set Time" into "set_time".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers a Code() method anywhere in the chain, then the concrete type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	upper := func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, " ", "_")) }

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return upper(code)
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return upper(t.Name())
}
