package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New creates an HTTP client from the given configuration. The
// transport stack is, outermost first: retry (when RetryAttempts > 0),
// logging/User-Agent, then a pooled TLS transport.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var transport http.RoundTripper = newLoggingTransport(base, cfg.UserAgent)
	if cfg.RetryAttempts > 0 {
		transport = newRetryTransport(transport, cfg)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}
