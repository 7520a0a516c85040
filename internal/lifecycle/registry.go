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

	"github.com/tombee/conduit/pkg/errors"
)

// ErrMalformedRegistry indicates the registry file exists but does not
// contain valid registry JSON. Load returns it alongside an empty
// registry so callers can treat the state as "nothing running" while
// still surfacing the corruption at debug level.
var ErrMalformedRegistry = errors.New("malformed process registry")

// Registry records the PIDs of the gateway processes managed by a
// single invocation. A zero PID means the corresponding process was
// never launched or has already been cleared.
type Registry struct {
	ProxyPID        int `json:"envoy_pid,omitempty"`
	ControlPlanePID int `json:"control_plane_pid,omitempty"`
}

// SetPID records the PID for the given role.
func (r *Registry) SetPID(role Role, pid int) {
	switch role {
	case RoleProxy:
		r.ProxyPID = pid
	case RoleControlPlane:
		r.ControlPlanePID = pid
	}
}

// PIDFor returns the recorded PID for the given role, or zero if none
// is recorded.
func (r Registry) PIDFor(role Role) int {
	switch role {
	case RoleProxy:
		return r.ProxyPID
	case RoleControlPlane:
		return r.ControlPlanePID
	}
	return 0
}

// IsEmpty reports whether the registry records no PIDs at all.
func (r Registry) IsEmpty() bool {
	return r.ProxyPID == 0 && r.ControlPlanePID == 0
}

// Entries returns the recorded processes in teardown order. The proxy
// is listed before the control plane so that stopping in order drains
// traffic before the configuration source goes away.
func (r Registry) Entries() []ManagedProcess {
	var entries []ManagedProcess
	if r.ProxyPID != 0 {
		entries = append(entries, ManagedProcess{Role: RoleProxy, PID: r.ProxyPID})
	}
	if r.ControlPlanePID != 0 {
		entries = append(entries, ManagedProcess{Role: RoleControlPlane, PID: r.ControlPlanePID})
	}
	return entries
}

// RegistryManager persists the process registry as a JSON file. There
// is exactly one registry per runtime home, so concurrent invocations
// against the same home are not coordinated beyond last-write-wins.
type RegistryManager struct {
	path string
}

// NewRegistryManager creates a manager for the registry file at path.
func NewRegistryManager(path string) *RegistryManager {
	return &RegistryManager{path: path}
}

// Path returns the location of the registry file.
func (m *RegistryManager) Path() string {
	return m.path
}

// Save writes the registry to disk, replacing any previous contents.
// The parent directory is created if needed and checked for unsafe
// permissions before the file is written.
func (m *RegistryManager) Save(reg Registry) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating registry directory %s", dir)
	}

	if err := verifyDirectorySafety(dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding process registry")
	}
	data = append(data, '\n')

	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return errors.Wrapf(err, "writing process registry %s", m.path)
	}
	return nil
}

// Load reads the registry from disk. A missing file yields an empty
// registry and no error. A file that cannot be parsed yields an empty
// registry and an error wrapping ErrMalformedRegistry.
func (m *RegistryManager) Load() (Registry, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Registry{}, nil
		}
		return Registry{}, errors.Wrapf(err, "reading process registry %s", m.path)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("%w: %s: %v", ErrMalformedRegistry, m.path, err)
	}
	return reg, nil
}

// Clear removes the registry file. It is a no-op if the file does not
// exist.
func (m *RegistryManager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing process registry %s", m.path)
	}
	return nil
}

// Exists reports whether a registry file is present on disk.
func (m *RegistryManager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// verifyDirectorySafety rejects registry directories that other users
// can write to, since a writable directory would let them swap the
// registry for one naming arbitrary PIDs.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "checking registry directory %s", dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("registry path %s is not a directory", dir)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("registry directory %s is world-writable", dir)
	}
	return nil
}
