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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/conduit/internal/cli"
	buildcmd "github.com/tombee/conduit/internal/commands/build"
	"github.com/tombee/conduit/internal/commands/down"
	"github.com/tombee/conduit/internal/commands/logs"
	"github.com/tombee/conduit/internal/commands/setup"
	"github.com/tombee/conduit/internal/commands/up"
	"github.com/tombee/conduit/internal/commands/validate"
	versioncmd "github.com/tombee/conduit/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Gateway lifecycle commands
	rootCmd.AddCommand(up.NewCommand())
	rootCmd.AddCommand(down.NewCommand())
	rootCmd.AddCommand(logs.NewCommand())

	// Project commands
	rootCmd.AddCommand(setup.NewCommand())
	rootCmd.AddCommand(validate.NewCommand())
	rootCmd.AddCommand(buildcmd.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// An interrupt cancels the command context, which lets a running
	// `up` tear down anything it already launched before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		cli.HandleExitError(err)
	}
}
