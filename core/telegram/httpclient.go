package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/remindbot/core/telegram/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls. The client timeout
// must exceed the long-poll timeout, otherwise getUpdates is cut short.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	return netutil.NewClient(netutil.ClientOptions{
		Timeout:         pollTimeout + 30*time.Second,
		ResponseTimeout: pollTimeout + 5*time.Second,
		Retries:         3,
		Backoff:         2 * time.Second,
	})
}
