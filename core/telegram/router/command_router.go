package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/remindbot/core/logger"
	tg "github.com/m3rciful/remindbot/core/telegram"
	"github.com/m3rciful/remindbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. Admin-only commands get the
// access check between the receipt logger and the handler.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	admin := 0
	for endpoint, cmd := range cmds {
		name, inner := normalizeHandlerName(endpoint), cmd.Handler
		h := func(c tele.Context) error { return summarized(c, name, inner) }
		if cmd.AdminOnly {
			h = adminOnly(h)
			admin++
		}
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: guarded(h)})
	}

	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "wire.complete",
		slog.Int("commands", len(cmds)),
		slog.Int("admin_commands", admin),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
