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

// Package setup implements `conduit init`: scaffold a gateway project
// from an embedded template or a demo config.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/templates"
)

type options struct {
	template      string
	fromDemo      string
	yes           bool
	force         bool
	noEnv         bool
	listTemplates bool
}

// NewCommand creates the init command
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Scaffold a gateway config",
		Long: `Create a conduit.yaml in the target directory (default: current
directory) from a built-in template, plus a .env file with placeholders
for every access key the template references.

Without --template the command runs an interactive wizard.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "Template name (skips the wizard)")
	cmd.Flags().StringVar(&opts.fromDemo, "from-demo", "", "Copy a demo config matching this glob from the repo's demos/ tree")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Accept wizard defaults without prompting")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing conduit.yaml")
	cmd.Flags().BoolVar(&opts.noEnv, "no-env", false, "Skip writing .env placeholders")
	cmd.Flags().BoolVar(&opts.listTemplates, "list-templates", false, "List built-in templates and exit")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, opts *options) error {
	if opts.listTemplates {
		return listTemplates(cmd)
	}
	if opts.fromDemo != "" && opts.template != "" {
		return shared.NewUsageError("--template and --from-demo are mutually exclusive", nil)
	}

	target := filepath.Join(dir, config.DefaultFileName)
	if _, err := os.Stat(target); err == nil && !opts.force {
		return shared.NewUsageError(fmt.Sprintf("%s already exists (use --force to overwrite)", target), nil)
	}

	var content []byte
	var err error
	switch {
	case opts.fromDemo != "":
		content, err = loadDemo(opts.fromDemo)
		if err != nil {
			return shared.NewUsageError("locating demo config", err)
		}
	case opts.template != "":
		content, err = templates.Get(opts.template)
		if err != nil {
			return shared.NewUsageError("loading template", err)
		}
	case opts.yes:
		content, err = templates.Get(defaultTemplate)
		if err != nil {
			return shared.NewRuntimeError("loading default template", err)
		}
	default:
		content, err = runWizard()
		if err != nil {
			return shared.NewUsageError("wizard aborted", err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return shared.NewRuntimeError("creating target directory", err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return shared.NewRuntimeError("writing "+target, err)
	}
	cmd.Println(shared.RenderOK("Wrote " + target))

	if !opts.noEnv {
		refs := templates.AccessKeyRefs(content)
		if len(refs) > 0 {
			envPath := filepath.Join(dir, ".env")
			added, err := UpsertEnvPlaceholders(envPath, refs)
			if err != nil {
				return shared.NewRuntimeError("updating "+envPath, err)
			}
			if len(added) > 0 {
				cmd.Println(shared.RenderOK(fmt.Sprintf("Added %d placeholder(s) to %s", len(added), envPath)))
				for _, name := range added {
					cmd.Printf("  %s\n", shared.RenderLabel(name+"="))
				}
			}
		}
	}

	cmd.Println(shared.RenderLabel("Next: fill in any access keys, then run 'conduit up'"))
	return nil
}

func listTemplates(cmd *cobra.Command) error {
	list, err := templates.List()
	if err != nil {
		return shared.NewRuntimeError("reading embedded templates", err)
	}
	for _, tmpl := range list {
		cmd.Printf("  %s  %s\n", shared.Bold.Render(tmpl.Name), shared.RenderLabel(tmpl.Description))
	}
	return nil
}
