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
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// Role identifies a managed gateway process.
type Role string

const (
	// RoleProxy is the Envoy-derived data plane.
	RoleProxy Role = "proxy"

	// RoleControlPlane is the companion control-plane service.
	RoleControlPlane Role = "control-plane"
)

// String returns the role name.
func (r Role) String() string { return string(r) }

// LogName returns the base name of the role's process log file. Log
// files are named after the binaries users know (envoy, steward), not
// the role labels.
func (r Role) LogName() string {
	switch r {
	case RoleProxy:
		return "envoy"
	case RoleControlPlane:
		return "steward"
	}
	return string(r)
}

// BinaryHint returns a substring expected in the process's command
// line, used to recognize registry PIDs that still belong to us.
func (r Role) BinaryHint() string {
	switch r {
	case RoleProxy:
		return "envoy"
	case RoleControlPlane:
		return "steward"
	}
	return string(r)
}

// Roles lists all managed roles in launch order: the control plane starts
// first so the proxy has something to connect to.
func Roles() []Role {
	return []Role{RoleControlPlane, RoleProxy}
}

// ParseRole maps a user-supplied role name to a Role. The log file
// base names (envoy, steward) are accepted as aliases.
func ParseRole(name string) (Role, error) {
	switch name {
	case "proxy", "envoy":
		return RoleProxy, nil
	case "control-plane", "steward":
		return RoleControlPlane, nil
	}
	return "", fmt.Errorf("unknown role %q (expected proxy or control-plane)", name)
}

// ManagedProcess is one running gateway process under supervision.
type ManagedProcess struct {
	// Role identifies which process this is.
	Role Role

	// PID is the operating system process ID.
	PID int

	// LogPath is the file receiving the process's stdout and stderr.
	LogPath string
}

// IsProcessRunning checks if a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so send signal 0 to probe.
	// EPERM means the process exists but belongs to another user.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// SendSignal sends a signal to the given process.
func SendSignal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal %v to process %d: %w", sig, pid, err)
	}

	return nil
}

// WaitForExit waits for the process to exit, checking every interval.
// Returns ErrShutdownTimeout if the process is still running after timeout.
func WaitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := 100 * time.Millisecond

	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return nil
		}
		time.Sleep(interval)
	}

	return ErrShutdownTimeout
}

// GracefulShutdown sends SIGTERM to a process and waits for it to exit.
// If force is true and the timeout is exceeded, sends SIGKILL.
func GracefulShutdown(pid int, timeout time.Duration, force bool) error {
	// Verify process is running
	if !IsProcessRunning(pid) {
		return ErrProcessNotRunning
	}

	// Send SIGTERM
	if err := SendSignal(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for process to exit
	err := WaitForExit(pid, timeout)
	if err == nil {
		return nil // Process exited gracefully
	}

	if !force {
		return err // Timeout but force not requested
	}

	// Force kill with SIGKILL
	if err := SendSignal(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	// Wait a short time for SIGKILL to take effect
	if err := WaitForExit(pid, 5*time.Second); err != nil {
		return fmt.Errorf("process did not die after SIGKILL: %w", err)
	}

	return nil
}
