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

/*
Package lifecycle manages the gateway's process lifecycle primitives.

This package provides the PID registry, detached process spawning, liveness
probing, multi-endpoint health convergence, and lifecycle event logging used
by the supervisor to run the proxy and control plane as background daemons.

# PID Registry

The registry is a JSON file recording one PID per managed role. It is
overwritten on every successful launch and removed on teardown. A missing or
malformed file reads as empty so that teardown can always proceed:

	manager := lifecycle.NewRegistryManager("/path/to/conduit.pid")
	if err := manager.Save(&lifecycle.Registry{ProxyPID: 1234, ControlPlanePID: 1235}); err != nil {
	    // Handle error
	}

Registry entries may be stale: PIDs are verified with signal-0 probing and a
command-line match before any signal is sent, so an unrelated process that
reused a recorded PID is never touched.

# Process Spawning

Managed processes are spawned detached, in their own session, with output
redirected to a per-role log file. The PID comes straight from the spawn
call:

	spawner := lifecycle.NewSpawner()
	pid, err := spawner.SpawnDetached("/path/to/envoy", args, logPath)
	if err != nil {
	    // Handle error
	}

# Health Convergence

The prober polls every configured endpoint once per second and watches the
managed PIDs between probes. It resolves to Ready, TimedOut, or ProcessDied:

	prober := lifecycle.NewHealthProber()
	result := prober.AwaitHealthy(ctx, endpoints, processes, 60*time.Second)

# Lifecycle Logging

Supervisor events are appended as JSONL for postmortem inspection:

	logger := lifecycle.NewLifecycleLogger("/path/to/lifecycle.log")
	logger.LogProcessLaunched(lifecycle.RoleProxy, pid)
*/
package lifecycle
