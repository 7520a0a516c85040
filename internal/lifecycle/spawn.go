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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// LaunchSpec describes a background process to start: the binary, its
// arguments, the environment it runs with, and the file its combined
// stdout and stderr are appended to.
type LaunchSpec struct {
	Role    Role
	Binary  string
	Args    []string
	Env     []string
	LogPath string
}

// Daemonizer launches a process detached from the calling terminal and
// returns its PID. Implementations must guarantee the child survives
// the caller exiting.
type Daemonizer interface {
	SpawnDetached(spec LaunchSpec) (int, error)
}

// Spawner is the production Daemonizer. It starts children in their own
// session and process group with output redirected to a log file.
type Spawner struct{}

// NewSpawner creates a new process spawner.
func NewSpawner() *Spawner {
	return &Spawner{}
}

// SpawnDetached spawns a detached background process.
// The process:
// - Runs in its own process group (not killed when parent exits)
// - Has stdin closed, stdout/stderr redirected to spec.LogPath
// - Has a new session ID (fully detached)
//
// If spec.Env is nil the child inherits the parent environment.
// Returns the PID of the spawned process.
func (s *Spawner) SpawnDetached(spec LaunchSpec) (int, error) {
	logDir := filepath.Dir(spec.LogPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Truncate: each launch starts a fresh log for its process.
	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Env = spec.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	// Redirect output to log file
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil // Close stdin

	// Detach from the terminal. Setsid puts the child in a new
	// session, which also makes it the leader of a new process
	// group; combining it with Setpgid fails with EPERM on Linux.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start process: %w", err)
	}

	// Get PID before releasing
	pid := cmd.Process.Pid

	// Release the process (don't wait for it)
	// This is safe because we configured it to be detached
	if err := cmd.Process.Release(); err != nil {
		// Process is already running, this is not fatal
		// but we should log it
		return pid, fmt.Errorf("process started but failed to release: %w", err)
	}

	return pid, nil
}
