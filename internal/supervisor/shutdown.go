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

package supervisor

import (
	"time"

	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/log"
)

// shutdownGracePeriod is how long a process gets to exit after SIGTERM
// before it is killed.
const shutdownGracePeriod = 10 * time.Second

// ShutdownController tears down every process the registry records:
// SIGTERM, a bounded wait, then SIGKILL. Registry entries whose PID is
// dead, or alive but belonging to an unrelated process after PID
// reuse, are stale and skipped. The registry file is removed at the
// end regardless of per-process outcomes, and every path through
// StopAll succeeds when there is nothing left to stop, so the
// operation is idempotent.
type ShutdownController struct {
	sctx        *Context
	gracePeriod time.Duration

	// Seams for tests; default to the real lifecycle functions.
	stop    func(pid int, timeout time.Duration, force bool) error
	alive   func(pid int) bool
	matches func(pid int, hint string) bool
}

// NewShutdownController creates a controller over the invocation's
// registry.
func NewShutdownController(sctx *Context) *ShutdownController {
	return &ShutdownController{
		sctx:        sctx,
		gracePeriod: shutdownGracePeriod,
		stop:        lifecycle.GracefulShutdown,
		alive:       lifecycle.IsProcessRunning,
		matches:     lifecycle.ProcessMatches,
	}
}

// WithGracePeriod overrides the SIGTERM-to-SIGKILL window.
func (c *ShutdownController) WithGracePeriod(d time.Duration) *ShutdownController {
	c.gracePeriod = d
	return c
}

// StopAll stops every registered process and clears the registry.
// It returns true when at least one live process was actually stopped.
// A missing registry, a malformed registry, and already-dead PIDs all
// return (false, nil): "nothing running" is the normal quiet state,
// not a fault.
func (c *ShutdownController) StopAll() (bool, error) {
	reg, err := c.sctx.Registry.Load()
	if err != nil {
		// A corrupt registry cannot name anything safe to signal.
		// Treat it as empty and clear it below.
		c.sctx.Logger.Debug("ignoring unreadable process registry", "error", err)
	}

	if reg.IsEmpty() {
		if err := c.sctx.Registry.Clear(); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := c.sctx.Events.LogStop(); err != nil {
		c.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
	}

	c.sctx.Logger.Debug("state transition", log.StateKey, StateStopping.String())
	stopped := false
	for _, proc := range reg.Entries() {
		if c.stopOne(proc) {
			stopped = true
		}
	}

	if err := c.sctx.Registry.Clear(); err != nil {
		return stopped, err
	}
	c.sctx.Logger.Debug("state transition", log.StateKey, StateStopped.String())
	return stopped, nil
}

// stopOne terminates a single registry entry. Returns true when a live
// process was signalled, false when the entry was stale.
func (c *ShutdownController) stopOne(proc lifecycle.ManagedProcess) bool {
	logger := c.sctx.Logger.With(log.RoleKey, proc.Role.String(), log.PIDKey, proc.PID)

	if !c.alive(proc.PID) {
		logger.Info("registry entry already stopped")
		c.logStale(proc, "process not running")
		return false
	}

	if !c.matches(proc.PID, proc.Role.BinaryHint()) {
		// PID reuse: something else lives there now. Never signal it.
		logger.Info("registry PID belongs to an unrelated process, skipping")
		c.logStale(proc, "pid reused by unrelated process")
		return false
	}

	start := time.Now()
	logger.Debug("stopping process", "grace_period", c.gracePeriod)

	err := c.stop(proc.PID, c.gracePeriod, true)
	switch {
	case err == nil:
		if logErr := c.sctx.Events.LogProcessStopped(proc.Role, proc.PID, time.Since(start)); logErr != nil {
			logger.Debug("failed to write lifecycle event", "error", logErr)
		}
	case err == lifecycle.ErrProcessNotRunning:
		// Exited between the liveness check and the signal.
		c.logStale(proc, "exited before signal")
		return false
	default:
		// SIGKILL path or signalling failure. The process may survive,
		// but teardown is best-effort; record and move on.
		logger.Warn("process did not stop cleanly", "error", err)
		if logErr := c.sctx.Events.LogProcessKilled(proc.Role, proc.PID); logErr != nil {
			logger.Debug("failed to write lifecycle event", "error", logErr)
		}
	}
	return true
}

func (c *ShutdownController) logStale(proc lifecycle.ManagedProcess, reason string) {
	if err := c.sctx.Events.LogStaleRegistryEntry(proc.Role, proc.PID, reason); err != nil {
		c.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
	}
}
