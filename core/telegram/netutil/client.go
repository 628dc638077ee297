package netutil

import (
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes NewClient. Zero values fall back to the defaults below.
type ClientOptions struct {
	Timeout         time.Duration
	ResponseTimeout time.Duration
	Retries         int
	Backoff         time.Duration
}

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultBackoff           = 2 * time.Second
)

// NewClient returns an HTTP client whose transport retries transient network
// failures (see ShouldRetry) with a linear backoff.
func NewClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = defaultResponseTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &RetryTransport{
			Base:       transport,
			MaxRetries: opts.Retries,
			Backoff:    opts.Backoff,
		},
	}
}

// RetryTransport re-issues a request when the round trip fails with a retryable error.
// Requests with a body are retried only when GetBody is set.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	Backoff    time.Duration
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.MaxRetries && ShouldRetry(err); attempt++ {
		if waitErr := Sleep(req.Context(), RetryDelay(err, attempt, t.Backoff)); waitErr != nil {
			return nil, waitErr
		}
		retry, cloneErr := rewind(req)
		if cloneErr != nil {
			return nil, cloneErr
		}
		if retry == nil {
			break
		}
		resp, err = base.RoundTrip(retry)
	}
	return resp, err
}

// rewind clones req for another attempt. It returns nil when the body cannot be replayed.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
