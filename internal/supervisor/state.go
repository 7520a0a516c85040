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

// State is one phase of the supervisor's lifecycle state machine. The
// state lives only for the duration of a single invocation; the PID
// registry is the only thing that survives across runs.
type State string

const (
	// StateIdle is the initial state before any work happens.
	StateIdle State = "idle"

	// StateResolvingArtifacts covers proxy download/cache checks and
	// local build-output discovery.
	StateResolvingArtifacts State = "resolving_artifacts"

	// StateRendering covers generation of the runtime config files.
	StateRendering State = "rendering"

	// StateLaunching covers port probing and detached process spawns.
	// A port conflict loops back here after stale-instance cleanup;
	// it is the machine's only self-loop.
	StateLaunching State = "launching"

	// StateAwaitingHealth covers the health convergence poll.
	StateAwaitingHealth State = "awaiting_health"

	// StateRunning means every endpoint reported healthy.
	StateRunning State = "running"

	// StateStopping covers graceful teardown.
	StateStopping State = "stopping"

	// StateStopped means teardown finished.
	StateStopped State = "stopped"

	// StateFailed is terminal for the invocation. Once anything has
	// been launched, the transition into Failed always runs teardown
	// first, so a failed up leaves nothing behind.
	StateFailed State = "failed"
)

// String returns the state name.
func (s State) String() string { return string(s) }
