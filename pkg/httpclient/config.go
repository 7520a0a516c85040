package httpclient

import (
	"fmt"
	"time"
)

// Config tunes the client's timeout and retry behavior.
type Config struct {
	// Timeout bounds the whole request, retries included. Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the initial try.
	// 0 disables retrying.
	RetryAttempts int

	// RetryBackoff is the delay before the first retry. Doubles per
	// attempt, with jitter.
	RetryBackoff time.Duration

	// MaxBackoff caps the per-retry delay.
	MaxBackoff time.Duration

	// UserAgent is sent on every request. Required.
	UserAgent string
}

// DefaultConfig returns the settings the artifact downloader uses.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  100 * time.Millisecond,
		MaxBackoff:    30 * time.Second,
		UserAgent:     "conduit-http-client/1.0",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.RetryAttempts > 0 {
		if c.RetryBackoff <= 0 {
			return fmt.Errorf("retry_backoff must be > 0 when retry_attempts > 0, got %v", c.RetryBackoff)
		}
		if c.MaxBackoff < c.RetryBackoff {
			return fmt.Errorf("max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}
	return nil
}
