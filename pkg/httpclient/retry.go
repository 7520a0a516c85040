package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// retryTransport retries transient failures with exponential backoff
// and jitter. Only idempotent methods (GET, HEAD, OPTIONS) are
// retried; anything else passes through untouched.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{
		base:        base,
		maxAttempts: cfg.RetryAttempts + 1,
		baseBackoff: cfg.RetryBackoff,
		maxBackoff:  cfg.MaxBackoff,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotentMethod(req.Method) {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := t.backoff(attempt - 1)
			// A server-supplied Retry-After shorter than our own
			// delay wins.
			if lastResp != nil {
				if after := parseRetryAfter(lastResp); after > 0 && after < delay {
					delay = after
				}
			}
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastErr = err
		lastResp = resp

		if err != nil && !retryableError(err) {
			return nil, err
		}

		// The body of a response we will not return must be drained.
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// retryableStatus reports whether a status code is worth another try:
// 5xx, request timeout, and rate limiting.
func retryableStatus(statusCode int) bool {
	switch {
	case statusCode >= 500 && statusCode < 600:
		return true
	case statusCode == http.StatusRequestTimeout:
		return true
	case statusCode == http.StatusTooManyRequests:
		return true
	}
	return false
}

// retryableError reports whether a transport error looks transient.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return retryableError(urlErr.Err)
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"temporary failure in name resolution",
		"eof",
	} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// backoff computes the delay before retry n: baseBackoff doubled per
// attempt, capped at maxBackoff, plus up to 20% jitter.
func (t *retryTransport) backoff(attempt int) time.Duration {
	d := float64(t.baseBackoff) * math.Pow(2.0, float64(attempt-1))
	if d > float64(t.maxBackoff) {
		d = float64(t.maxBackoff)
	}
	return time.Duration(d + rand.Float64()*d*0.2)
}

// parseRetryAfter reads a Retry-After header in either seconds or
// HTTP-date form. Missing or unparseable headers return 0.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}
	return 0
}
