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

package render

import (
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/lifecycle"
)

// HealthEndpoints derives the readiness probe set from a gateway
// config: every listener's /healthz (answered by the rendered
// bootstrap's direct response) plus the control plane's health port.
// The proxy admin port is deliberately not probed; it comes up before
// the listeners do and would report ready too early.
func HealthEndpoints(cfg *config.GatewayConfig) []lifecycle.HealthEndpoint {
	endpoints := make([]lifecycle.HealthEndpoint, 0, len(cfg.Listeners)+1)

	for _, listener := range cfg.Listeners {
		host := listener.Address
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		endpoints = append(endpoints, lifecycle.HealthEndpoint{
			Name: "listener/" + listener.Name,
			Host: host,
			Port: listener.Port,
			Path: "/healthz",
		})
	}

	endpoints = append(endpoints, lifecycle.HealthEndpoint{
		Name: "control-plane",
		Host: "127.0.0.1",
		Port: ControlPlaneHealthPort,
		Path: "/healthz",
	})

	return endpoints
}
