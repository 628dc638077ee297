// Package netutil holds the HTTP plumbing shared by the Telegram poller, the outbound
// sender and the price client: a retrying transport and the retry policy behind it.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether err is a transient network failure (dial, reset, timeout)
// or a Telegram flood wait. Plain HTTP status codes are never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, flood := floodWait(err); flood {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var (
		netErr net.Error
		opErr  *net.OpError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return true
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return true
	case errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err):
		return ShouldRetry(urlErr.Err)
	}
	return false
}

// RetryDelay is the pause before the next attempt: the server-requested wait for flood
// errors, otherwise base times the attempt number.
func RetryDelay(err error, attempt int, base time.Duration) time.Duration {
	if wait, ok := floodWait(err); ok {
		return wait
	}
	return base * time.Duration(attempt)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func floodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	return time.Duration(flood.RetryAfter) * time.Second, true
}
