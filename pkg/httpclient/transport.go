package httpclient

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingTransport sets the User-Agent and logs every request with its
// outcome and duration.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
}

func newLoggingTransport(base http.RoundTripper, userAgent string) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, userAgent: userAgent}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		slog.Warn("http request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration,
			"error", err.Error(),
		)
		return resp, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	slog.Log(req.Context(), level, "http request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
