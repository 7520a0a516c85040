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

package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/conduit/internal/artifact"
)

// demosDirName is the demo tree at the gateway repo root.
const demosDirName = "demos"

// loadDemo finds a demo gateway config whose path matches the glob
// (relative to the repo's demos/ directory) and returns its content.
// The glob supports ** via doublestar, so `--from-demo '**/ollama*'`
// works from anywhere inside the repo.
func loadDemo(glob string) ([]byte, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	repoRoot, err := artifact.LocateRepoRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("--from-demo needs to run inside the gateway repository: %w", err)
	}

	demosDir := filepath.Join(repoRoot, demosDirName)
	matches, err := doublestar.Glob(os.DirFS(demosDir), glob)
	if err != nil {
		return nil, fmt.Errorf("invalid demo glob %q: %w", glob, err)
	}

	var configs []string
	for _, match := range matches {
		if filepath.Ext(match) == ".yaml" || filepath.Ext(match) == ".yml" {
			configs = append(configs, match)
		}
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no demo config under %s matches %q", demosDir, glob)
	}
	sort.Strings(configs)
	if len(configs) > 1 {
		return nil, fmt.Errorf("glob %q matches %d demo configs (%v); be more specific", glob, len(configs), configs)
	}

	return os.ReadFile(filepath.Join(demosDir, configs[0]))
}
