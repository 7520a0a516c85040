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

// Package build implements `conduit build`: run the in-repo cargo
// builds that produce the control plane binary and the wasm plugins
// the artifact resolver expects.
package build

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/artifact"
	"github.com/tombee/conduit/internal/commands/shared"
)

// wasmTarget is the build target for the proxy's wasm filters.
const wasmTarget = "wasm32-wasip1"

type options struct {
	pluginsOnly bool
	stewardOnly bool
	release     bool
}

// NewCommand creates the build command
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the control plane and wasm plugins",
		Long: `Build runs the cargo builds that produce the artifacts 'conduit up'
launches: the steward control plane binary and the wasm filter plugins.
It must be run inside the gateway repository (the directory tree
containing crates/).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.pluginsOnly, "plugins-only", false, "Only build the wasm plugins")
	cmd.Flags().BoolVar(&opts.stewardOnly, "steward-only", false, "Only build the control plane")
	cmd.Flags().BoolVar(&opts.release, "release", true, "Build with --release (what the resolver expects)")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *options) error {
	if opts.pluginsOnly && opts.stewardOnly {
		return shared.NewUsageError("--plugins-only and --steward-only are mutually exclusive", nil)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return shared.NewRuntimeError("resolving working directory", err)
	}
	repoRoot, err := artifact.LocateRepoRoot(cwd)
	if err != nil {
		return shared.NewUsageError("not inside a gateway repository", err)
	}

	if !opts.pluginsOnly {
		args := cargoArgs(opts.release, "-p", "steward")
		if err := runCargo(cmd, repoRoot, args); err != nil {
			return shared.NewRuntimeError("building control plane", err)
		}
	}
	if !opts.stewardOnly {
		args := cargoArgs(opts.release, "--target", wasmTarget)
		if err := runCargo(cmd, repoRoot, args); err != nil {
			return shared.NewRuntimeError("building wasm plugins", err)
		}
	}

	cmd.Println(shared.RenderOK("Build complete"))
	return nil
}

func cargoArgs(release bool, extra ...string) []string {
	args := []string{"build"}
	if release {
		args = append(args, "--release")
	}
	return append(args, extra...)
}

// runCargo streams cargo's output directly; its progress lines are the
// user feedback for a long build.
func runCargo(cmd *cobra.Command, repoRoot string, args []string) error {
	cmd.Println(shared.RenderLabel("cargo " + strings.Join(args, " ")))

	cargo := exec.CommandContext(cmd.Context(), "cargo", args...)
	cargo.Dir = repoRoot
	cargo.Stdout = cmd.OutOrStdout()
	cargo.Stderr = cmd.ErrOrStderr()
	if err := cargo.Run(); err != nil {
		return fmt.Errorf("cargo %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
