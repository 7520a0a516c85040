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
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestSpawner_SpawnDetached(t *testing.T) {
	if os.Getenv("SKIP_SPAWN_TESTS") != "" {
		t.Skip("Skipping spawn tests (SKIP_SPAWN_TESTS is set)")
	}

	tmpDir := t.TempDir()

	t.Run("spawns detached process", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "test.log")
		spawner := NewSpawner()

		// Spawn a process that writes to stdout and runs for a bit
		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "sh",
			Args:    []string{"-c", "echo 'test output'; sleep 1"},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}

		// Verify process is running
		if !IsProcessRunning(pid) {
			t.Error("Spawned process is not running")
		}

		// Wait for process to complete
		time.Sleep(2 * time.Second)

		// Verify log file was created and contains output
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}

		if !strings.Contains(string(content), "test output") {
			t.Errorf("Log file does not contain expected output: %s", content)
		}
	})

	t.Run("creates log directory if missing", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "nested", "dir", "test.log")
		spawner := NewSpawner()

		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "sh",
			Args:    []string{"-c", "echo 'test'"},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		// Verify directory was created
		logDir := filepath.Dir(logPath)
		info, err := os.Stat(logDir)
		if err != nil {
			t.Fatalf("Log directory not created: %v", err)
		}

		// Verify directory permissions
		if mode := info.Mode() & os.ModePerm; mode != 0700 {
			t.Errorf("Log directory mode = %04o, want 0700", mode)
		}
	})

	t.Run("detaches into its own session and process group", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "detach.log")
		spawner := NewSpawner()

		// Setsid alone must be enough: pairing it with Setpgid makes
		// the kernel reject the spawn outright (EPERM on Linux, since
		// a session leader cannot have its group reassigned).
		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "sleep",
			Args:    []string{"2"},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		if !IsProcessRunning(pid) {
			t.Error("Spawned process not running")
		}

		// The child leads its own process group, separate from ours,
		// so terminal signals to our group never reach it.
		childPgid, err := syscall.Getpgid(pid)
		if err != nil {
			t.Fatalf("Getpgid(%d) error = %v", pid, err)
		}
		if childPgid != pid {
			t.Errorf("child pgid = %d, want %d (own group leader)", childPgid, pid)
		}
		ownPgid, err := syscall.Getpgid(os.Getpid())
		if err != nil {
			t.Fatalf("Getpgid(self) error = %v", err)
		}
		if childPgid == ownPgid {
			t.Error("child shares the test process group, not detached")
		}

		time.Sleep(500 * time.Millisecond)
		if !IsProcessRunning(pid) {
			t.Error("Process died prematurely")
		}
	})

	t.Run("sets correct log file permissions", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "perms.log")
		spawner := NewSpawner()

		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "echo",
			Args:    []string{"test"},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		// Wait for file to be created
		time.Sleep(100 * time.Millisecond)

		info, err := os.Stat(logPath)
		if err != nil {
			t.Fatalf("Failed to stat log file: %v", err)
		}

		if mode := info.Mode() & os.ModePerm; mode != 0600 {
			t.Errorf("Log file mode = %04o, want 0600", mode)
		}
	})

	t.Run("truncates existing log file", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "truncate.log")

		// Leftovers from a previous launch must not survive.
		if err := os.WriteFile(logPath, []byte("stale content from last run\n"), 0600); err != nil {
			t.Fatalf("Failed to create initial log: %v", err)
		}

		spawner := NewSpawner()
		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "echo",
			Args:    []string{"fresh"},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		// Wait for output
		time.Sleep(500 * time.Millisecond)

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}

		contentStr := string(content)
		if strings.Contains(contentStr, "stale content") {
			t.Error("Log file was not truncated on launch")
		}
		if !strings.Contains(contentStr, "fresh") {
			t.Error("New content was not written")
		}
	})

	t.Run("handles invalid binary path", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "error.log")
		spawner := NewSpawner()

		_, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "/nonexistent/binary",
			LogPath: logPath,
		})
		if err == nil {
			t.Error("SpawnDetached() with invalid binary succeeded, want error")
		}
	})
}

func TestSpawner_Env(t *testing.T) {
	if os.Getenv("SKIP_SPAWN_TESTS") != "" {
		t.Skip("Skipping spawn tests (SKIP_SPAWN_TESTS is set)")
	}

	tmpDir := t.TempDir()

	t.Run("passes explicit environment to child", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "env.log")
		spawner := NewSpawner()

		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "sh",
			Args:    []string{"-c", "echo $TEST_VAR"},
			Env:     []string{"TEST_VAR=test_value", "PATH=" + os.Getenv("PATH")},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		// Wait for output
		time.Sleep(500 * time.Millisecond)

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("Failed to read log: %v", err)
		}

		if !strings.Contains(string(content), "test_value") {
			t.Errorf("Environment variable not passed to child: %s", content)
		}
	})

	t.Run("inherits parent environment when unset", func(t *testing.T) {
		t.Setenv("CONDUIT_SPAWN_INHERIT_TEST", "inherited_value")

		logPath := filepath.Join(tmpDir, "inherit.log")
		spawner := NewSpawner()

		pid, err := spawner.SpawnDetached(LaunchSpec{
			Binary:  "sh",
			Args:    []string{"-c", "echo $CONDUIT_SPAWN_INHERIT_TEST"},
			LogPath: logPath,
		})
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		time.Sleep(500 * time.Millisecond)

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("Failed to read log: %v", err)
		}

		if !strings.Contains(string(content), "inherited_value") {
			t.Errorf("Parent environment not inherited: %s", content)
		}
	})
}
