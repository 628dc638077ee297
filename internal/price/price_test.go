package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL, HTTPClient: srv.Client()})
}

func TestGetReturnsRateVerbatim(t *testing.T) {
	c := serve(t, http.StatusOK, `{"bpi":{"USD":{"code":"USD","rate":"43,123.4567","rate_float":43123.4567}}}`)
	rate, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "43,123.4567", rate)
}

func TestGetFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		op     string
	}{
		{"server error", http.StatusServiceUnavailable, `oops`, OpStatus},
		{"malformed body", http.StatusOK, `{"bpi":`, OpDecode},
		{"missing currency", http.StatusOK, `{"bpi":{"EUR":{"rate":"1.0"}}}`, OpDecode},
		{"missing rate", http.StatusOK, `{"bpi":{"USD":{"code":"USD"}}}`, OpDecode},
		{"non numeric rate", http.StatusOK, `{"bpi":{"USD":{"rate":"n/a"}}}`, OpDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serve(t, tt.status, tt.body).Get(context.Background())
			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr), "got %v", err)
			assert.Equal(t, tt.op, upErr.Op)
		})
	}
}

func TestGetStatusCodeReported(t *testing.T) {
	_, err := serve(t, http.StatusNotFound, "").Get(context.Background())
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, "price_status", upErr.Code())
}

func TestGetTimesOut(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(Options{URL: srv.URL, Timeout: 50 * time.Millisecond, HTTPClient: srv.Client()})
	_, err := c.Get(context.Background())
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, OpRequest, upErr.Op)
	assert.True(t, upErr.Timeout())
}

func TestNewDefaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultURL, c.url)
	assert.Equal(t, DefaultCurrency, c.currency)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.NotNil(t, c.http)
}
