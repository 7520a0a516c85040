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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/lifecycle"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	home := t.TempDir()
	runDir := filepath.Join(home, "run")
	paths := &config.Paths{
		Home:         home,
		RunDir:       runDir,
		LogDir:       filepath.Join(runDir, "logs"),
		BinDir:       filepath.Join(home, "bin"),
		RegistryPath: filepath.Join(runDir, config.RegistryFileName),
	}
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewContext(paths, logger, "info")
}

func TestShutdownControllerStopAll(t *testing.T) {
	t.Run("no registry file succeeds with nothing stopped", func(t *testing.T) {
		sctx := testContext(t)
		ctrl := NewShutdownController(sctx)

		stopped, err := ctrl.StopAll()
		if err != nil {
			t.Fatalf("StopAll() error = %v", err)
		}
		if stopped {
			t.Error("StopAll() = true, want false when nothing registered")
		}
	})

	t.Run("double stop is idempotent", func(t *testing.T) {
		sctx := testContext(t)
		if err := sctx.Registry.Save(lifecycle.Registry{ProxyPID: 11, ControlPlanePID: 12}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		alive := map[int]bool{11: true, 12: true}
		ctrl := NewShutdownController(sctx)
		ctrl.alive = func(pid int) bool { return alive[pid] }
		ctrl.matches = func(pid int, hint string) bool { return true }
		ctrl.stop = func(pid int, timeout time.Duration, force bool) error {
			alive[pid] = false
			return nil
		}

		stopped, err := ctrl.StopAll()
		if err != nil {
			t.Fatalf("first StopAll() error = %v", err)
		}
		if !stopped {
			t.Error("first StopAll() = false, want true")
		}

		stopped, err = ctrl.StopAll()
		if err != nil {
			t.Fatalf("second StopAll() error = %v", err)
		}
		if stopped {
			t.Error("second StopAll() = true, want false")
		}
		if sctx.Registry.Exists() {
			t.Error("registry file still present after StopAll")
		}
	})

	t.Run("nonexistent pid is stale, not an error", func(t *testing.T) {
		sctx := testContext(t)
		// PID 99999 is vanishingly unlikely to exist, and the real
		// liveness check is used deliberately.
		if err := sctx.Registry.Save(lifecycle.Registry{ProxyPID: 99999}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		ctrl := NewShutdownController(sctx)
		signalled := false
		ctrl.stop = func(pid int, timeout time.Duration, force bool) error {
			signalled = true
			return nil
		}

		stopped, err := ctrl.StopAll()
		if err != nil {
			t.Fatalf("StopAll() error = %v", err)
		}
		if stopped {
			t.Error("StopAll() = true, want false for dead PID")
		}
		if signalled {
			t.Error("dead PID was signalled")
		}
		if sctx.Registry.Exists() {
			t.Error("registry file not deleted")
		}
	})

	t.Run("pid reused by unrelated process is never signalled", func(t *testing.T) {
		sctx := testContext(t)
		if err := sctx.Registry.Save(lifecycle.Registry{ControlPlanePID: 42}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		ctrl := NewShutdownController(sctx)
		ctrl.alive = func(pid int) bool { return true }
		ctrl.matches = func(pid int, hint string) bool { return false }
		ctrl.stop = func(pid int, timeout time.Duration, force bool) error {
			t.Fatal("unrelated process was signalled")
			return nil
		}

		stopped, err := ctrl.StopAll()
		if err != nil {
			t.Fatalf("StopAll() error = %v", err)
		}
		if stopped {
			t.Error("StopAll() = true, want false")
		}
	})

	t.Run("malformed registry treated as empty", func(t *testing.T) {
		sctx := testContext(t)
		if err := os.WriteFile(sctx.Registry.Path(), []byte("not json{"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		ctrl := NewShutdownController(sctx)
		stopped, err := ctrl.StopAll()
		if err != nil {
			t.Fatalf("StopAll() error = %v", err)
		}
		if stopped {
			t.Error("StopAll() = true, want false")
		}
		if sctx.Registry.Exists() {
			t.Error("malformed registry file not removed")
		}
	})

	t.Run("stop order is proxy before control plane", func(t *testing.T) {
		sctx := testContext(t)
		if err := sctx.Registry.Save(lifecycle.Registry{ProxyPID: 21, ControlPlanePID: 22}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		var order []int
		ctrl := NewShutdownController(sctx)
		ctrl.alive = func(pid int) bool { return true }
		ctrl.matches = func(pid int, hint string) bool { return true }
		ctrl.stop = func(pid int, timeout time.Duration, force bool) error {
			order = append(order, pid)
			return nil
		}

		if _, err := ctrl.StopAll(); err != nil {
			t.Fatalf("StopAll() error = %v", err)
		}
		if len(order) != 2 || order[0] != 21 || order[1] != 22 {
			t.Errorf("stop order = %v, want [21 22]", order)
		}
	})
}
