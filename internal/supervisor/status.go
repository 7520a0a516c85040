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
	"github.com/tombee/conduit/internal/lifecycle"
)

// Status is a point-in-time view of what the registry records.
type Status struct {
	// Registry is the raw registry contents.
	Registry lifecycle.Registry

	// Live are entries verified to be running gateway processes.
	Live []lifecycle.ManagedProcess

	// Stale are entries whose PID is dead or owned by an unrelated
	// process after reuse.
	Stale []lifecycle.ManagedProcess
}

// FullyRunning reports whether every managed role has a verified live
// process.
func (s Status) FullyRunning() bool {
	return len(s.Stale) == 0 && len(s.Live) == len(lifecycle.Roles()) && len(s.Live) > 0
}

// CurrentStatus loads the registry and sorts its entries into live and
// stale. A missing or malformed registry yields an empty status.
func CurrentStatus(sctx *Context) Status {
	reg, err := sctx.Registry.Load()
	if err != nil {
		sctx.Logger.Debug("ignoring unreadable process registry", "error", err)
		return Status{}
	}

	status := Status{Registry: reg}
	for _, proc := range reg.Entries() {
		proc.LogPath = sctx.Paths.ProcessLogPath(proc.Role.LogName())
		if lifecycle.IsProcessRunning(proc.PID) && lifecycle.ProcessMatches(proc.PID, proc.Role.BinaryHint()) {
			status.Live = append(status.Live, proc)
		} else {
			status.Stale = append(status.Stale, proc)
		}
	}
	return status
}
