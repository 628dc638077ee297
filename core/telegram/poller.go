package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/remindbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// PollerFromConfig maps the telegram and webhook sections onto BuildPoller.
func PollerFromConfig(cfg *coreconfig.Config) tele.Poller {
	return BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})
}

// BuildPoller returns a webhook listener for the webhook run mode and a long poller
// otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if !strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.LongPoller{Timeout: pollTimeout(opts.LongPollTimeoutSeconds)}
	}
	return &tele.Webhook{
		Listen:   net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
		Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
	}
}

// RunModeName names the poller kind for logs.
func RunModeName(p tele.Poller) string {
	switch p.(type) {
	case *tele.Webhook:
		return coreconfig.RunModeWebhook
	case *tele.LongPoller:
		return coreconfig.RunModeLongpoll
	default:
		return "custom"
	}
}

func pollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = coreconfig.DefaultLongPollTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}
