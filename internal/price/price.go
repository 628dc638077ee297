// Package price fetches the current Bitcoin rate from a CoinDesk-style JSON endpoint.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/core/telegram/netutil"
)

const (
	// DefaultURL serves {"bpi":{"USD":{"rate":"..."}}}.
	DefaultURL      = "https://api.coindesk.com/v1/bpi/currentprice/BTC.json"
	DefaultCurrency = "USD"
	DefaultTimeout  = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// rate must look like a decimal number; thousands separators are allowed.
var rateRe = regexp.MustCompile(`^\d{1,3}(,\d{3})*(\.\d+)?$|^\d+(\.\d+)?$`)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	URL      string        `yaml:"url" envconfig:"PRICE_URL"`
	Currency string        `yaml:"currency" envconfig:"PRICE_CURRENCY"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"PRICE_TIMEOUT"`
	Retries  int           `yaml:"retries" envconfig:"PRICE_RETRIES"`

	// HTTPClient overrides the default retrying client.
	HTTPClient *http.Client `yaml:"-" ignored:"true"`
}

// Client performs price lookups. It is safe for concurrent use.
type Client struct {
	url      string
	currency string
	timeout  time.Duration
	http     *http.Client
}

// New returns a Client with defaults applied.
func New(opts Options) *Client {
	c := &Client{
		url:      strings.TrimSpace(opts.URL),
		currency: strings.TrimSpace(opts.Currency),
		timeout:  opts.Timeout,
		http:     opts.HTTPClient,
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.currency == "" {
		c.currency = DefaultCurrency
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = netutil.NewClient(netutil.ClientOptions{
			Timeout:         c.timeout,
			ResponseTimeout: c.timeout,
			Retries:         opts.Retries,
			Backoff:         500 * time.Millisecond,
		})
	}
	return c
}

type quote struct {
	BPI map[string]struct {
		Rate *string `json:"rate"`
	} `json:"bpi"`
}

// Get performs one GET against the endpoint and returns the rate string exactly as served.
// Every failure is reported as *UpstreamError.
func (c *Client) Get(ctx context.Context) (rate string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
			logger.LogEvent(ctx, logger.PRICE, slog.LevelWarn, "price.fetch", attrs...)
			return
		}
		logger.LogEvent(ctx, logger.PRICE, slog.LevelDebug, "price.fetch", attrs...)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", &UpstreamError{Op: OpRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &UpstreamError{Op: OpRequest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &UpstreamError{Op: OpStatus, StatusCode: resp.StatusCode}
	}

	var q quote
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&q); err != nil {
		return "", &UpstreamError{Op: OpDecode, StatusCode: resp.StatusCode, Err: err}
	}
	cur, ok := q.BPI[c.currency]
	if !ok || cur.Rate == nil {
		return "", &UpstreamError{Op: OpDecode, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("missing bpi.%s.rate", c.currency)}
	}
	if !rateRe.MatchString(*cur.Rate) {
		return "", &UpstreamError{Op: OpDecode, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("rate %q is not a decimal number", *cur.Rate)}
	}
	return *cur.Rate, nil
}

// Upstream operations reported in UpstreamError.Op.
const (
	OpRequest = "request"
	OpStatus  = "status"
	OpDecode  = "decode"
)

// UpstreamError reports a failed price lookup.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Op == OpStatus:
		return fmt.Sprintf("price upstream: unexpected status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("price upstream: %s: %v", e.Op, e.Err)
	default:
		return "price upstream: " + e.Op
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Code is picked up by the router for the err_code log field.
func (e *UpstreamError) Code() string { return "price_" + e.Op }

// Timeout reports whether the lookup ran out of time.
func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
