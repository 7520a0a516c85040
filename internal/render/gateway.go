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
	"fmt"
	"os"

	"github.com/tombee/conduit/internal/config"
)

// RenderGatewayConfig writes the control plane's resolved config: the
// user's config file with $VAR and ${VAR} references substituted from
// env first, then the process environment. The output can contain
// resolved credentials, so it is written 0600.
func (r *Renderer) RenderGatewayConfig(cfg *config.GatewayConfig, env map[string]string) (string, error) {
	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("reading config %s: %w", cfg.Path, err)
	}

	resolved := os.Expand(string(raw), func(name string) string {
		if value, ok := env[name]; ok {
			return value
		}
		return os.Getenv(name)
	})

	outPath := r.paths.RenderedGatewayConfigPath()
	if err := os.MkdirAll(r.paths.RunDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(resolved), 0o600); err != nil {
		return "", fmt.Errorf("writing resolved config: %w", err)
	}
	return outPath, nil
}
