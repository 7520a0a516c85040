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

// Package supervisor is the lifecycle orchestrator for the gateway's
// two managed processes.
//
// One up invocation drives a sequential state machine: resolve
// artifacts, render configs, launch the control plane then the proxy
// as detached daemons, and poll health endpoints until the gateway
// converges. Port conflicts are the only retryable failure; every
// other failure after launch tears down whatever was started before
// the error surfaces, so a failed up never leaves a process behind.
// Down loads the persisted PID registry and stops everything it
// names, tolerating entries that are already gone.
//
// The orchestrator's collaborators (artifact source, renderer,
// daemonizer, prober) are interfaces; NewNativeCollaborators wires the
// production set, tests substitute fakes. All state except the PID
// registry is confined to the invocation's Context value.
package supervisor
