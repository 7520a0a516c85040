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

// Package validate implements `conduit validate`: the config half of
// the up pipeline without launching anything.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/config"
)

// Report is the machine-readable validation result for --json.
type Report struct {
	Valid      bool     `json:"valid"`
	Path       string   `json:"path,omitempty"`
	Listeners  []string `json:"listeners,omitempty"`
	Providers  []string `json:"providers,omitempty"`
	AccessKeys []KeyRef `json:"access_keys,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// KeyRef reports whether one referenced access key is resolvable.
type KeyRef struct {
	Name     string `json:"name"`
	Resolved bool   `json:"resolved"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [CONFIG]",
		Short: "Validate the gateway config without starting anything",
		Long: `Validate locates and parses the gateway config, checks its schema, and
verifies that every referenced access key is resolvable. Nothing is
launched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	positional := ""
	if len(args) > 0 {
		positional = args[0]
	}

	report, err := buildReport(positional)
	if shared.GetJSON() {
		data, marshalErr := json.MarshalIndent(report, "", "  ")
		if marshalErr != nil {
			return shared.NewRuntimeError("encoding validation report", marshalErr)
		}
		cmd.Println(string(data))
		if err != nil {
			return shared.NewUsageError("", err)
		}
		return nil
	}

	if err != nil {
		cmd.Println(shared.RenderError("Config invalid"))
		return shared.NewUsageError("config validation failed", err)
	}

	cmd.Println(shared.RenderOK("Config valid: " + report.Path))
	for _, warning := range report.Warnings {
		cmd.Printf("  %s\n", shared.RenderWarn(warning))
	}
	for _, l := range report.Listeners {
		cmd.Printf("  %s %s\n", shared.RenderLabel("listener:"), l)
	}
	for _, p := range report.Providers {
		cmd.Printf("  %s %s\n", shared.RenderLabel("provider:"), p)
	}
	for _, key := range report.AccessKeys {
		if key.Resolved {
			cmd.Printf("  %s\n", shared.RenderOK("access key "+key.Name))
		} else {
			cmd.Printf("  %s\n", shared.RenderWarn("access key "+key.Name+" unresolved"))
		}
	}
	return nil
}

func buildReport(positional string) (*Report, error) {
	report := &Report{}

	cfg, err := shared.LocateConfig(positional)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	report.Path = cfg.Path
	report.Warnings = cfg.Warnings

	if err := config.Validate(cfg); err != nil {
		report.Error = err.Error()
		return report, err
	}

	for _, l := range cfg.Listeners {
		addr := l.Address
		if addr == "" {
			addr = "127.0.0.1"
		}
		report.Listeners = append(report.Listeners, fmt.Sprintf("%s (%s:%d)", l.Name, addr, l.Port))
	}
	for _, p := range cfg.Providers {
		report.Providers = append(report.Providers, fmt.Sprintf("%s (%s)", p.Name, p.Kind))
	}

	refs := config.AccessKeyRefs(cfg)
	resolver, err := config.NewAccessKeyResolver(cfg.Path)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	resolved, resolveErr := resolver.Resolve(refs)
	for _, ref := range refs {
		_, ok := resolved[ref]
		report.AccessKeys = append(report.AccessKeys, KeyRef{Name: ref, Resolved: ok})
	}
	if resolveErr != nil {
		report.Error = resolveErr.Error()
		return report, resolveErr
	}

	report.Valid = true
	return report, nil
}
