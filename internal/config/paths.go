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

package config

import (
	"os"
	"path/filepath"
)

// DefaultHomeDirName is the directory under the user's home that holds all
// conduit runtime state.
const DefaultHomeDirName = ".conduit"

// RegistryFileName is the PID registry file under the run directory.
const RegistryFileName = "conduit.pid"

// Paths holds the resolved runtime directory layout.
//
//	<home>/
//	  run/        rendered configs, PID registry
//	  run/logs/   managed process logs, lifecycle event log
//	  bin/        cached proxy binaries
type Paths struct {
	// Home is the conduit home directory.
	// Environment: CONDUIT_HOME
	// Default: ~/.conduit
	Home string

	// RunDir holds per-instance runtime state (rendered configs, registry).
	RunDir string

	// LogDir holds managed process log files.
	LogDir string

	// BinDir caches downloaded proxy binaries.
	BinDir string

	// RegistryPath is the PID registry file.
	RegistryPath string
}

// ResolvePaths computes the runtime directory layout.
// Respects the CONDUIT_HOME environment variable; no directories are created.
func ResolvePaths() (*Paths, error) {
	home := os.Getenv("CONDUIT_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		home = filepath.Join(userHome, DefaultHomeDirName)
	}
	return pathsFromHome(home), nil
}

func pathsFromHome(home string) *Paths {
	runDir := filepath.Join(home, "run")
	return &Paths{
		Home:         home,
		RunDir:       runDir,
		LogDir:       filepath.Join(runDir, "logs"),
		BinDir:       filepath.Join(home, "bin"),
		RegistryPath: filepath.Join(runDir, RegistryFileName),
	}
}

// EnsureDirs creates the runtime directories if they do not exist.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.Home, p.RunDir, p.LogDir, p.BinDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ProcessLogPath returns the log file path for a managed process role name.
func (p *Paths) ProcessLogPath(role string) string {
	return filepath.Join(p.LogDir, role+".log")
}

// LifecycleLogPath returns the JSONL lifecycle event log path.
func (p *Paths) LifecycleLogPath() string {
	return filepath.Join(p.LogDir, "lifecycle.log")
}

// RenderedProxyConfigPath is where the rendered proxy bootstrap config lands.
func (p *Paths) RenderedProxyConfigPath() string {
	return filepath.Join(p.RunDir, "envoy.yaml")
}

// RenderedGatewayConfigPath is where the resolved gateway config for the
// control plane lands.
func (p *Paths) RenderedGatewayConfigPath() string {
	return filepath.Join(p.RunDir, "conduit.rendered.yaml")
}
