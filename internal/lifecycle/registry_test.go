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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_SetPIDAndPIDFor(t *testing.T) {
	var reg Registry

	if !reg.IsEmpty() {
		t.Error("zero registry IsEmpty() = false, want true")
	}

	reg.SetPID(RoleProxy, 100)
	reg.SetPID(RoleControlPlane, 200)

	if got := reg.PIDFor(RoleProxy); got != 100 {
		t.Errorf("PIDFor(proxy) = %d, want 100", got)
	}
	if got := reg.PIDFor(RoleControlPlane); got != 200 {
		t.Errorf("PIDFor(control-plane) = %d, want 200", got)
	}
	if reg.IsEmpty() {
		t.Error("populated registry IsEmpty() = true, want false")
	}
}

func TestRegistry_Entries(t *testing.T) {
	t.Run("teardown order lists the proxy first", func(t *testing.T) {
		reg := Registry{ProxyPID: 100, ControlPlanePID: 200}

		entries := reg.Entries()
		if len(entries) != 2 {
			t.Fatalf("Entries() returned %d entries, want 2", len(entries))
		}
		if entries[0].Role != RoleProxy || entries[0].PID != 100 {
			t.Errorf("Entries()[0] = %+v, want proxy/100", entries[0])
		}
		if entries[1].Role != RoleControlPlane || entries[1].PID != 200 {
			t.Errorf("Entries()[1] = %+v, want control-plane/200", entries[1])
		}
	})

	t.Run("omits unset PIDs", func(t *testing.T) {
		reg := Registry{ControlPlanePID: 200}

		entries := reg.Entries()
		if len(entries) != 1 {
			t.Fatalf("Entries() returned %d entries, want 1", len(entries))
		}
		if entries[0].Role != RoleControlPlane {
			t.Errorf("Entries()[0].Role = %q, want %q", entries[0].Role, RoleControlPlane)
		}
	})

	t.Run("empty registry has no entries", func(t *testing.T) {
		if entries := (Registry{}).Entries(); len(entries) != 0 {
			t.Errorf("Entries() = %v, want none", entries)
		}
	})
}

func TestRegistryManager_SaveLoad(t *testing.T) {
	t.Run("round-trips a registry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conduit.pid")
		manager := NewRegistryManager(path)

		want := Registry{ProxyPID: 12345, ControlPlanePID: 67890}
		if err := manager.Save(want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := manager.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != want {
			t.Errorf("Load() = %+v, want %+v", got, want)
		}
	})

	t.Run("writes the documented field names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conduit.pid")
		manager := NewRegistryManager(path)

		if err := manager.Save(Registry{ProxyPID: 1, ControlPlanePID: 2}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read registry file: %v", err)
		}

		var raw map[string]int
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Registry file is not valid JSON: %v", err)
		}
		if raw["envoy_pid"] != 1 {
			t.Errorf(`raw["envoy_pid"] = %d, want 1`, raw["envoy_pid"])
		}
		if raw["control_plane_pid"] != 2 {
			t.Errorf(`raw["control_plane_pid"] = %d, want 2`, raw["control_plane_pid"])
		}
	})

	t.Run("save replaces previous contents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conduit.pid")
		manager := NewRegistryManager(path)

		if err := manager.Save(Registry{ProxyPID: 1, ControlPlanePID: 2}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := manager.Save(Registry{ProxyPID: 3, ControlPlanePID: 4}); err != nil {
			t.Fatalf("second Save() error = %v", err)
		}

		got, err := manager.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.ProxyPID != 3 || got.ControlPlanePID != 4 {
			t.Errorf("Load() = %+v, want second save", got)
		}
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "run", "conduit.pid")
		manager := NewRegistryManager(path)

		if err := manager.Save(Registry{ProxyPID: 1}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if !manager.Exists() {
			t.Error("Exists() = false after Save()")
		}
	})

	t.Run("registry file is private", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conduit.pid")
		manager := NewRegistryManager(path)

		if err := manager.Save(Registry{ProxyPID: 1}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Failed to stat registry: %v", err)
		}
		if mode := info.Mode() & os.ModePerm; mode != 0600 {
			t.Errorf("Registry mode = %04o, want 0600", mode)
		}
	})

	t.Run("rejects world-writable directories", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Chmod(dir, 0o777); err != nil {
			t.Fatalf("Failed to chmod dir: %v", err)
		}

		manager := NewRegistryManager(filepath.Join(dir, "conduit.pid"))
		if err := manager.Save(Registry{ProxyPID: 1}); err == nil {
			t.Error("Save() into world-writable directory succeeded, want error")
		}
	})
}

func TestRegistryManager_Load(t *testing.T) {
	t.Run("missing file yields an empty registry", func(t *testing.T) {
		manager := NewRegistryManager(filepath.Join(t.TempDir(), "conduit.pid"))

		reg, err := manager.Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if !reg.IsEmpty() {
			t.Errorf("Load() = %+v, want empty", reg)
		}
	})

	t.Run("malformed file yields an empty registry and a typed error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conduit.pid")
		if err := os.WriteFile(path, []byte("not json{"), 0o600); err != nil {
			t.Fatalf("Failed to write malformed registry: %v", err)
		}

		manager := NewRegistryManager(path)
		reg, err := manager.Load()

		if !errors.Is(err, ErrMalformedRegistry) {
			t.Errorf("Load() error = %v, want ErrMalformedRegistry", err)
		}
		if !reg.IsEmpty() {
			t.Errorf("Load() = %+v, want empty on malformed input", reg)
		}
	})
}

func TestRegistryManager_Clear(t *testing.T) {
	t.Run("removes the registry file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conduit.pid")
		manager := NewRegistryManager(path)

		if err := manager.Save(Registry{ProxyPID: 1}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := manager.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if manager.Exists() {
			t.Error("Exists() = true after Clear()")
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		manager := NewRegistryManager(filepath.Join(t.TempDir(), "conduit.pid"))

		if err := manager.Clear(); err != nil {
			t.Errorf("Clear() on missing file error = %v, want nil", err)
		}
		if err := manager.Clear(); err != nil {
			t.Errorf("second Clear() error = %v, want nil", err)
		}
	})
}
