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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/config"
)

func execInit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitCommand(t *testing.T) {
	t.Run("template scaffolds a valid config", func(t *testing.T) {
		dir := t.TempDir()

		out, err := execInit(t, dir, "--template", "llm_router")
		if err != nil {
			t.Fatalf("init error = %v\noutput: %s", err, out)
		}

		cfg, err := config.Load(filepath.Join(dir, "conduit.yaml"))
		if err != nil {
			t.Fatalf("scaffolded config does not load: %v", err)
		}
		if err := config.Validate(cfg); err != nil {
			t.Errorf("scaffolded config invalid: %v", err)
		}

		// llm_router references provider keys, so .env placeholders
		// must appear.
		envData, err := os.ReadFile(filepath.Join(dir, ".env"))
		if err != nil {
			t.Fatalf("reading .env: %v", err)
		}
		if !strings.Contains(string(envData), "OPENAI_API_KEY=") {
			t.Errorf(".env = %q, want OPENAI_API_KEY placeholder", envData)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "conduit.yaml")
		if err := os.WriteFile(target, []byte("keep me"), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := execInit(t, dir, "--template", "echo_gateway")
		var exitErr *shared.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitUsage {
			t.Fatalf("err = %v, want usage ExitError", err)
		}

		data, _ := os.ReadFile(target)
		if string(data) != "keep me" {
			t.Error("existing file was overwritten")
		}
	})

	t.Run("force overwrites", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "conduit.yaml")
		if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}

		if out, err := execInit(t, dir, "--template", "echo_gateway", "--force"); err != nil {
			t.Fatalf("init error = %v\noutput: %s", err, out)
		}
		if _, err := config.Load(target); err != nil {
			t.Errorf("overwritten config does not load: %v", err)
		}
	})

	t.Run("no-env skips placeholder file", func(t *testing.T) {
		dir := t.TempDir()

		if _, err := execInit(t, dir, "--template", "llm_router", "--no-env"); err != nil {
			t.Fatalf("init error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, ".env")); !os.IsNotExist(err) {
			t.Error(".env written despite --no-env")
		}
	})

	t.Run("yes uses the default template", func(t *testing.T) {
		dir := t.TempDir()

		if _, err := execInit(t, dir, "--yes"); err != nil {
			t.Fatalf("init error = %v", err)
		}
		cfg, err := config.Load(filepath.Join(dir, "conduit.yaml"))
		if err != nil {
			t.Fatalf("config does not load: %v", err)
		}
		if err := config.Validate(cfg); err != nil {
			t.Errorf("default scaffold invalid: %v", err)
		}
	})

	t.Run("list-templates names every template", func(t *testing.T) {
		out, err := execInit(t, "--list-templates")
		if err != nil {
			t.Fatalf("init error = %v", err)
		}
		for _, name := range []string{"echo_gateway", "llm_router", "claude_code_router", "ollama_local"} {
			if !strings.Contains(out, name) {
				t.Errorf("output missing template %s:\n%s", name, out)
			}
		}
	})

	t.Run("unknown template is a usage error", func(t *testing.T) {
		_, err := execInit(t, t.TempDir(), "--template", "no_such_template")
		var exitErr *shared.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitUsage {
			t.Fatalf("err = %v, want usage ExitError", err)
		}
	})
}
