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
	"fmt"
	"os"

	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/render"
)

const (
	// EnvRenderedConfig tells the control plane where its resolved
	// config lives.
	EnvRenderedConfig = "CONDUIT_CONFIG_PATH_RENDERED"

	// EnvTracingEndpoint overrides the OTLP collector endpoint for
	// both managed processes. The supervisor only forwards it.
	EnvTracingEndpoint = "OTEL_TRACING_GRPC_ENDPOINT"

	// defaultTracingEndpoint is a local collector on the conventional
	// OTLP gRPC port.
	defaultTracingEndpoint = "http://localhost:4317"

	// proxyLogFormat matches the control plane's log line shape so the
	// two process logs interleave cleanly.
	proxyLogFormat = "[%Y-%m-%d %T.%e][%l] %v"
)

// launchSpecs builds the launch order: control plane first, then the
// proxy whose bootstrap references it.
func (o *Orchestrator) launchSpecs(proxyBinary, controlPlaneBinary string, rendered *render.RenderResult, accessKeys map[string]string) []lifecycle.LaunchSpec {
	return []lifecycle.LaunchSpec{
		{
			Role:    lifecycle.RoleControlPlane,
			Binary:  controlPlaneBinary,
			Args:    nil,
			Env:     o.controlPlaneEnv(rendered, accessKeys),
			LogPath: o.sctx.Paths.ProcessLogPath(lifecycle.RoleControlPlane.LogName()),
		},
		{
			Role:   lifecycle.RoleProxy,
			Binary: proxyBinary,
			Args: []string{
				"--config-path", rendered.ProxyConfigPath,
				"--component-log-level", "wasm:" + o.sctx.LogLevel,
				"--log-format", proxyLogFormat,
			},
			Env:     os.Environ(),
			LogPath: o.sctx.Paths.ProcessLogPath(lifecycle.RoleProxy.LogName()),
		},
	}
}

// controlPlaneEnv is the caller's environment plus the supervisor's
// overrides: log level, rendered config location, tracing endpoint,
// and the resolved provider credentials. Values are forwarded
// unmodified; the supervisor never interprets them.
func (o *Orchestrator) controlPlaneEnv(rendered *render.RenderResult, accessKeys map[string]string) []string {
	env := os.Environ()

	env = append(env,
		"RUST_LOG="+o.sctx.LogLevel,
		EnvRenderedConfig+"="+rendered.GatewayConfigPath,
	)

	if os.Getenv(EnvTracingEndpoint) == "" {
		env = append(env, EnvTracingEndpoint+"="+defaultTracingEndpoint)
	}

	for name, value := range accessKeys {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}
	return env
}
