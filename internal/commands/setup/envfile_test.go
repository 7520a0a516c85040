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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestUpsertEnvPlaceholders(t *testing.T) {
	t.Run("creates a new file with placeholders", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")

		added, err := UpsertEnvPlaceholders(path, []string{"OPENAI_API_KEY", "GROQ_KEY"})
		if err != nil {
			t.Fatalf("UpsertEnvPlaceholders() error = %v", err)
		}
		if !reflect.DeepEqual(added, []string{"OPENAI_API_KEY", "GROQ_KEY"}) {
			t.Errorf("added = %v", added)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		want := "OPENAI_API_KEY=\nGROQ_KEY=\n"
		if string(data) != want {
			t.Errorf("file content = %q, want %q", data, want)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("file mode = %o, want 600", info.Mode().Perm())
		}
	})

	t.Run("keeps existing values untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		original := "# keys\nOPENAI_API_KEY=sk-live\n"
		if err := os.WriteFile(path, []byte(original), 0o600); err != nil {
			t.Fatal(err)
		}

		added, err := UpsertEnvPlaceholders(path, []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY"})
		if err != nil {
			t.Fatalf("UpsertEnvPlaceholders() error = %v", err)
		}
		if !reflect.DeepEqual(added, []string{"ANTHROPIC_API_KEY"}) {
			t.Errorf("added = %v, want only the missing key", added)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		content := string(data)
		if !strings.Contains(content, "OPENAI_API_KEY=sk-live") {
			t.Errorf("existing value was modified: %q", content)
		}
		if !strings.Contains(content, "ANTHROPIC_API_KEY=") {
			t.Errorf("placeholder missing: %q", content)
		}
	})

	t.Run("no keys to add leaves the file alone", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("A=1\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		added, err := UpsertEnvPlaceholders(path, []string{"A"})
		if err != nil {
			t.Fatalf("UpsertEnvPlaceholders() error = %v", err)
		}
		if added != nil {
			t.Errorf("added = %v, want nil", added)
		}

		data, _ := os.ReadFile(path)
		if string(data) != "A=1\n" {
			t.Errorf("file rewritten without changes: %q", data)
		}
	})
}
