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

// Package artifact resolves the binaries the gateway runs.
//
// Two kinds of artifact exist and they are resolved differently. The
// proxy is a pinned upstream Envoy build, downloaded once per version
// into the runtime home's bin/ directory and reused from there. The
// control plane binary and the wasm filter plugins are build outputs
// of this repository; they are only ever discovered on disk, never
// downloaded, and their absence points the user at 'conduit build'.
//
// Proxy caching uses a marker file written after the binary is fully
// installed. The marker, not the binary, is the cache-validity signal,
// so an interrupted download can never be mistaken for a usable cache
// entry.
package artifact
