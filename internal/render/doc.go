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

// Package render turns a validated gateway config into the files the
// managed processes actually read.
//
// Two files are produced under the runtime home's run/ directory. The
// proxy bootstrap (envoy.yaml) is generated from an embedded template:
// one Envoy listener per configured listener, one upstream cluster per
// provider, and the wasm filter plugins wired to their build outputs.
// The control plane's config (conduit.rendered.yaml) is the user's
// config with environment references resolved in place.
//
// The supervisor treats rendering as opaque: any failure here comes
// back as a ConfigRenderError wrapping the cause.
package render
