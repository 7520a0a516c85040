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
	"strings"
)

// UpsertEnvPlaceholders appends an empty `KEY=` line to the .env file
// at path for every key not already present, creating the file when
// needed. Existing lines, including filled-in values, are never
// touched. Returns the keys that were added.
func UpsertEnvPlaceholders(path string, keys []string) ([]string, error) {
	existing := make(map[string]bool)
	var lines []string

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		trimmed := strings.TrimRight(string(data), "\n")
		if trimmed != "" {
			lines = strings.Split(trimmed, "\n")
		}
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			if name, _, ok := strings.Cut(trimmed, "="); ok {
				existing[strings.TrimSpace(name)] = true
			}
		}
	case os.IsNotExist(err):
		// New file.
	default:
		return nil, err
	}

	var added []string
	for _, key := range keys {
		if existing[key] {
			continue
		}
		lines = append(lines, key+"=")
		added = append(added, key)
	}
	if len(added) == 0 {
		return nil, nil
	}

	content := strings.Join(lines, "\n") + "\n"
	// 0600: the file is meant to hold credentials.
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return added, nil
}
