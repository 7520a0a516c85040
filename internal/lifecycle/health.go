// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// healthProbeInterval is the pause between probe iterations.
	healthProbeInterval = 1 * time.Second

	// healthRequestTimeout bounds each individual health request so a
	// hung endpoint cannot stall the whole iteration.
	healthRequestTimeout = 2 * time.Second

	// waitingNoticeAfter and waitingNoticeFailures gate the single
	// "still waiting" notice: both must be exceeded before it fires.
	waitingNoticeAfter    = 5 * time.Second
	waitingNoticeFailures = 5
)

// HealthEndpoint identifies one HTTP endpoint that must answer 2xx
// before the gateway counts as ready.
type HealthEndpoint struct {
	Name string
	Host string
	Port int
	Path string
}

// URL renders the endpoint as a probe URL. Host defaults to loopback
// and Path to "/".
func (e HealthEndpoint) URL() string {
	host := e.Host
	if host == "" {
		host = "127.0.0.1"
	}
	path := e.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://%s:%d%s", host, e.Port, path)
}

// label is the endpoint's name for reporting, falling back to the URL.
func (e HealthEndpoint) label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URL()
}

// HealthCheckResult contains the result of a single probe request.
type HealthCheckResult struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	Error        error
}

// WaitOutcome classifies how a readiness wait ended.
type WaitOutcome string

const (
	// OutcomeReady means every endpoint answered 2xx in one iteration.
	OutcomeReady WaitOutcome = "ready"
	// OutcomeTimedOut means the deadline expired before convergence.
	OutcomeTimedOut WaitOutcome = "timed_out"
	// OutcomeProcessDied means a supervised process exited during the
	// wait. Readiness can never be reached once that happens.
	OutcomeProcessDied WaitOutcome = "process_died"
)

// WaitResult reports how AwaitHealthy ended.
type WaitResult struct {
	Outcome     WaitOutcome
	DeadProcess Role
	// FailingEndpoints holds the labels of the endpoints that were
	// still unhealthy in the last completed iteration.
	FailingEndpoints []string
	Attempts         int
	Elapsed          time.Duration
}

// HealthProber polls a set of endpoints until they all report healthy,
// checking between iterations that the supervised processes are still
// alive. Process death is detected before HTTP state so a crashed
// child surfaces as such rather than as a slow timeout.
type HealthProber struct {
	client       *http.Client
	interval     time.Duration
	alive        func(pid int) bool
	noticeAfter  time.Duration
	noticeStreak int

	// OnWaiting, if set, is called at most once per wait after the
	// probe has failed repeatedly, so callers can tell the user the
	// gateway is slow rather than stuck.
	OnWaiting func(elapsed time.Duration, failing []string)
}

// NewHealthProber creates a prober with a 1s iteration interval and a
// 2s per-request timeout.
func NewHealthProber() *HealthProber {
	return &HealthProber{
		client:       &http.Client{Timeout: healthRequestTimeout},
		interval:     healthProbeInterval,
		alive:        IsProcessRunning,
		noticeAfter:  waitingNoticeAfter,
		noticeStreak: waitingNoticeFailures,
	}
}

// WithInterval sets the pause between probe iterations.
func (p *HealthProber) WithInterval(interval time.Duration) *HealthProber {
	p.interval = interval
	return p
}

// WithHTTPClient sets a custom HTTP client.
func (p *HealthProber) WithHTTPClient(client *http.Client) *HealthProber {
	p.client = client
	return p
}

// WithAliveFunc replaces the process liveness check.
func (p *HealthProber) WithAliveFunc(alive func(pid int) bool) *HealthProber {
	p.alive = alive
	return p
}

// WithWaitingNotice tunes when the OnWaiting callback fires.
func (p *HealthProber) WithWaitingNotice(after time.Duration, streak int) *HealthProber {
	p.noticeAfter = after
	p.noticeStreak = streak
	return p
}

// Check performs a single probe of one endpoint. A 2xx status counts
// as success; anything else, including transport errors, does not.
func (p *HealthProber) Check(ctx context.Context, endpoint HealthEndpoint) *HealthCheckResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL(), nil)
	if err != nil {
		return &HealthCheckResult{
			Success: false,
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	resp, err := p.client.Do(req)
	responseTime := time.Since(start)

	if err != nil {
		return &HealthCheckResult{
			Success:      false,
			ResponseTime: responseTime,
			Error:        fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	return &HealthCheckResult{
		Success:      success,
		StatusCode:   resp.StatusCode,
		ResponseTime: responseTime,
		Error:        nil,
	}
}

// AwaitHealthy polls every endpoint once per interval until all answer
// 2xx in the same iteration, a supervised process dies, the timeout
// expires, or ctx is cancelled. Each iteration checks process liveness
// first, then the endpoints.
func (p *HealthProber) AwaitHealthy(ctx context.Context, endpoints []HealthEndpoint, processes []ManagedProcess, timeout time.Duration) WaitResult {
	start := time.Now()
	deadline := start.Add(timeout)

	attempts := 0
	allFailedStreak := 0
	notified := false
	var lastFailing []string

	for {
		attempts++

		for _, proc := range processes {
			if !p.alive(proc.PID) {
				return WaitResult{
					Outcome:          OutcomeProcessDied,
					DeadProcess:      proc.Role,
					FailingEndpoints: lastFailing,
					Attempts:         attempts,
					Elapsed:          time.Since(start),
				}
			}
		}

		failing := p.probeAll(ctx, endpoints)
		if len(failing) == 0 {
			return WaitResult{
				Outcome:  OutcomeReady,
				Attempts: attempts,
				Elapsed:  time.Since(start),
			}
		}
		lastFailing = failing

		if len(failing) == len(endpoints) {
			allFailedStreak++
		} else {
			allFailedStreak = 0
		}

		if !notified && allFailedStreak >= p.noticeStreak && time.Since(start) >= p.noticeAfter {
			notified = true
			if p.OnWaiting != nil {
				p.OnWaiting(time.Since(start), failing)
			}
		}

		if !time.Now().Add(p.interval).Before(deadline) {
			return WaitResult{
				Outcome:          OutcomeTimedOut,
				FailingEndpoints: failing,
				Attempts:         attempts,
				Elapsed:          time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return WaitResult{
				Outcome:          OutcomeTimedOut,
				FailingEndpoints: failing,
				Attempts:         attempts,
				Elapsed:          time.Since(start),
			}
		case <-time.After(p.interval):
		}
	}
}

// probeAll checks every endpoint once and returns the labels of those
// that did not answer 2xx.
func (p *HealthProber) probeAll(ctx context.Context, endpoints []HealthEndpoint) []string {
	var failing []string
	for _, endpoint := range endpoints {
		result := p.Check(ctx, endpoint)
		if !result.Success {
			failing = append(failing, endpoint.label())
		}
	}
	return failing
}
