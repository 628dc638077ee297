package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/remindbot/core/config"
	"github.com/m3rciful/remindbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the global chain in order: recover, rate_limit (only with
// rate_limit.interval_ms > 0), logger, metrics. onLimited runs for dropped updates.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil {
		if mw, ok := rateLimitMiddleware(cfg.RateLimit, onLimited); ok {
			chain = append(chain, mw)
		}
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimitMiddleware(rl coreconfig.RateLimitConfig, onLimited tele.HandlerFunc) (Middleware, bool) {
	if rl.IntervalMS <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(rl.ExcludeUpdates))
	for _, kind := range rl.ExcludeUpdates {
		if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
			exclude[kind] = struct{}{}
		}
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  time.Duration(rl.IntervalMS) * time.Millisecond,
			Exclude:   exclude,
			OnLimited: onLimited,
		}),
	}, true
}

// MiddlewareNames lists the chain for startup logs.
func MiddlewareNames(chain []Middleware) []string {
	names := make([]string, 0, len(chain))
	for _, mw := range chain {
		names = append(names, mw.Name)
	}
	return names
}
