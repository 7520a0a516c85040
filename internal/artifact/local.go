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

package artifact

import (
	"os"
	"path/filepath"

	"github.com/tombee/conduit/pkg/errors"
)

// Relative paths of the in-repo build outputs, rooted at the
// repository directory containing crates/.
const (
	ControlPlaneRelPath  = "crates/target/release/steward"
	IngressFilterRelPath = "crates/target/wasm32-wasip1/release/ingress_filter.wasm"
	EgressFilterRelPath  = "crates/target/wasm32-wasip1/release/egress_filter.wasm"
)

// BuildArtifacts holds the absolute paths of the locally built gateway
// components.
type BuildArtifacts struct {
	ControlPlaneBinary string
	IngressFilter      string
	EgressFilter       string
}

// ErrRepoRootNotFound means no ancestor of the starting directory
// contains a crates/ workspace.
var ErrRepoRootNotFound = errors.New("repository root with crates/ not found")

// LocateRepoRoot walks from startDir toward the filesystem root and
// returns the first directory containing a crates/ workspace. Build
// outputs are resolved relative to it, so the CLI works from any
// subdirectory of a checkout.
func LocateRepoRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", startDir)
	}

	for {
		candidate := filepath.Join(dir, "crates")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Wrapf(ErrRepoRootNotFound, "searched from %s", startDir)
		}
		dir = parent
	}
}

// ResolveBuildArtifacts checks that every locally built component
// exists under repoRoot and returns their absolute paths. The first
// missing artifact is reported as a MissingBuildArtifactError so the
// user is pointed at 'conduit build'.
func ResolveBuildArtifacts(repoRoot string) (*BuildArtifacts, error) {
	artifacts := &BuildArtifacts{
		ControlPlaneBinary: filepath.Join(repoRoot, filepath.FromSlash(ControlPlaneRelPath)),
		IngressFilter:      filepath.Join(repoRoot, filepath.FromSlash(IngressFilterRelPath)),
		EgressFilter:       filepath.Join(repoRoot, filepath.FromSlash(EgressFilterRelPath)),
	}

	checks := []struct {
		name string
		path string
	}{
		{"control plane binary (steward)", artifacts.ControlPlaneBinary},
		{"ingress filter plugin", artifacts.IngressFilter},
		{"egress filter plugin", artifacts.EgressFilter},
	}

	for _, check := range checks {
		if _, err := os.Stat(check.path); err != nil {
			return nil, &errors.MissingBuildArtifactError{Artifact: check.name, Path: check.path}
		}
	}

	return artifacts, nil
}
