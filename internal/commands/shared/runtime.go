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

package shared

import (
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/log"
	"github.com/tombee/conduit/internal/supervisor"
)

// NewSupervisorContext resolves the runtime paths, ensures the home
// directory layout exists, and builds the per-invocation supervisor
// context. The global --verbose/--quiet flags override the
// environment-derived log level.
func NewSupervisorContext() (*supervisor.Context, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	cfg := log.FromEnv()
	if GetVerbose() {
		cfg.Level = "debug"
	}
	if GetQuiet() {
		cfg.Level = "error"
	}

	return supervisor.NewContext(paths, log.New(cfg), log.NormalizeLevel(cfg.Level)), nil
}

// LocateConfig finds and loads the gateway config, preferring the
// positional argument over the global --config flag.
func LocateConfig(positional string) (*config.GatewayConfig, error) {
	explicit := positional
	if explicit == "" {
		explicit = GetConfigPath()
	}
	path, err := config.Find(explicit)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
