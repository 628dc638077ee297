package helpers

import (
	"context"

	"github.com/m3rciful/remindbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	// RIDKey holds the request id of the update in tele.Context storage.
	RIDKey = "rid"

	storedContextKey = "log_ctx"
)

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(storedContextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(storedContextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// NewUpdateContext derives a fresh logging context for the update in c (rid, update, user
// and chat ids), stores it together with the rid and returns it.
func NewUpdateContext(c tele.Context) context.Context {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get(RIDKey).(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set(RIDKey, rid)
	}

	ctx := logger.WithUpdateMeta(logger.WithRID(context.Background(), rid), updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// BuildContext returns the stored update context, creating it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	return NewUpdateContext(c)
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
