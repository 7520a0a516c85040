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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LifecycleEvent is one line of the supervision audit trail. Events
// are appended as JSONL so the file can be inspected with standard
// tools after the CLI has exited.
type LifecycleEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	Event        string            `json:"event"` // "up_start", "process_launched", "stop", etc.
	InvocationID string            `json:"invocation_id,omitempty"`
	Role         string            `json:"role,omitempty"`
	PID          int               `json:"pid,omitempty"`
	Attempt      int               `json:"attempt,omitempty"`
	Version      string            `json:"version,omitempty"`
	Success      bool              `json:"success"`
	Message      string            `json:"message,omitempty"`
	Flags        map[string]string `json:"flags,omitempty"`
	ConfigFile   string            `json:"config_file,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// LifecycleLogger records supervision events to a file. All events
// written by one logger share an invocation ID so the lines belonging
// to a single up or down run can be correlated.
type LifecycleLogger struct {
	logPath      string
	invocationID string
}

// NewLifecycleLogger creates a new lifecycle logger.
func NewLifecycleLogger(logPath, invocationID string) *LifecycleLogger {
	return &LifecycleLogger{
		logPath:      logPath,
		invocationID: invocationID,
	}
}

// LogUpStart logs the beginning of a startup run.
func (l *LifecycleLogger) LogUpStart(version string, args []string, configFile string) error {
	return l.writeEvent(LifecycleEvent{
		Event:      "up_start",
		Version:    version,
		Success:    true,
		Message:    "Gateway startup initiated",
		Flags:      parseFlags(args),
		ConfigFile: configFile,
	})
}

// LogProcessLaunched logs a successful detached spawn.
func (l *LifecycleLogger) LogProcessLaunched(role Role, pid int, logPath string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "process_launched",
		Role:    role.String(),
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Launched %s (log: %s)", role, logPath),
	})
}

// LogRegistrySaved logs that the PID registry was written.
func (l *LifecycleLogger) LogRegistrySaved(reg Registry) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "registry_saved",
		Success: true,
		Message: fmt.Sprintf("Registry saved (envoy: %d, control plane: %d)", reg.ProxyPID, reg.ControlPlanePID),
	})
}

// LogHealthWaiting logs the throttled notice that convergence is slow.
func (l *LifecycleLogger) LogHealthWaiting(elapsed time.Duration, failing []string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "health_waiting",
		Success: true,
		Message: fmt.Sprintf("Still waiting for health after %v (failing: %s)", elapsed.Round(time.Second), strings.Join(failing, ", ")),
	})
}

// LogHealthConverged logs that every endpoint reported healthy.
func (l *LifecycleLogger) LogHealthConverged(attempts int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "health_converged",
		Attempt: attempts,
		Success: true,
		Message: fmt.Sprintf("All endpoints healthy (attempts: %d, duration: %v)", attempts, duration.Round(time.Millisecond)),
	})
}

// LogProcessDied logs that a supervised process exited during startup.
func (l *LifecycleLogger) LogProcessDied(role Role, pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "process_died",
		Role:    role.String(),
		PID:     pid,
		Success: false,
		Message: fmt.Sprintf("%s exited before becoming healthy", role),
	})
}

// LogPortConflictRetry logs a retry triggered by a port conflict.
func (l *LifecycleLogger) LogPortConflictRetry(port, attempt int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "port_conflict_retry",
		Attempt: attempt,
		Success: false,
		Message: fmt.Sprintf("Port %d in use, retrying (attempt %d)", port, attempt),
	})
}

// LogUpSuccess logs a completed startup.
func (l *LifecycleLogger) LogUpSuccess(duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "up_success",
		Success: true,
		Message: fmt.Sprintf("Gateway started successfully (duration: %v)", duration.Round(time.Millisecond)),
	})
}

// LogUpFailed logs an abandoned startup after teardown.
func (l *LifecycleLogger) LogUpFailed(err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "up_failed",
		Success: false,
		Message: "Gateway failed to start",
		Error:   err.Error(),
	})
}

// LogAlreadyRunning logs that a healthy gateway was already up.
func (l *LifecycleLogger) LogAlreadyRunning(reg Registry) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "already_running",
		Success: true,
		Message: fmt.Sprintf("Gateway already running (envoy: %d, control plane: %d)", reg.ProxyPID, reg.ControlPlanePID),
	})
}

// LogStop logs the beginning of a shutdown run.
func (l *LifecycleLogger) LogStop() error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop",
		Success: true,
		Message: "Gateway stop initiated",
	})
}

// LogProcessStopped logs a graceful process exit.
func (l *LifecycleLogger) LogProcessStopped(role Role, pid int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "process_stopped",
		Role:    role.String(),
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("%s stopped (duration: %v)", role, duration.Round(time.Millisecond)),
	})
}

// LogProcessKilled logs a forced kill after the graceful window.
func (l *LifecycleLogger) LogProcessKilled(role Role, pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "process_killed",
		Role:    role.String(),
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("%s did not exit in time, sent SIGKILL", role),
	})
}

// LogStaleRegistryEntry logs a registry entry that no longer matches a
// live process.
func (l *LifecycleLogger) LogStaleRegistryEntry(role Role, pid int, reason string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stale_registry_entry",
		Role:    role.String(),
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Stale registry entry skipped: %s", reason),
	})
}

// LogStopComplete logs a finished shutdown run.
func (l *LifecycleLogger) LogStopComplete(duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_complete",
		Success: true,
		Message: fmt.Sprintf("Gateway stopped (duration: %v)", duration.Round(time.Millisecond)),
	})
}

// writeEvent appends a lifecycle event to the log file.
func (l *LifecycleLogger) writeEvent(event LifecycleEvent) error {
	event.Timestamp = time.Now()
	event.InvocationID = l.invocationID

	// Ensure log directory exists
	logDir := filepath.Dir(l.logPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file in append mode
	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// parseFlags converts command-line arguments to a map of flags.
// This is a simple parser for logging purposes.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Skip non-flag arguments
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		// Remove leading dashes
		key := strings.TrimLeft(arg, "-")

		// Check if next arg is the value (not another flag)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			flags[key] = args[i+1]
			i++ // Skip value in next iteration
		} else {
			// Boolean flag
			flags[key] = "true"
		}
	}

	return flags
}
