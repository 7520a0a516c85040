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

// Package down implements `conduit down`: stop every registered
// gateway process. Teardown is best-effort and idempotent, so the
// command always exits 0.
package down

import (
	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/supervisor"
)

// NewCommand creates the down command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop the gateway",
		Long: `Stop the gateway processes recorded in the PID registry. Each process
gets SIGTERM and a grace period before SIGKILL. Running down with
nothing up is a no-op.`,
		Args: cobra.NoArgs,
		RunE: runDown,
	}
}

func runDown(cmd *cobra.Command, args []string) error {
	sctx, err := shared.NewSupervisorContext()
	if err != nil {
		// Without a home directory there is nothing registered to stop.
		cmd.Println(shared.RenderOK("Gateway not running"))
		return nil
	}

	stopped, err := supervisor.NewShutdownController(sctx).StopAll()
	if err != nil {
		// Best-effort: report it, but never fail the command.
		sctx.Logger.Warn("teardown did not fully complete", "error", err)
		cmd.Println(shared.RenderWarn("Gateway stopped with warnings (see logs)"))
		return nil
	}

	if stopped {
		cmd.Println(shared.RenderOK("Gateway stopped"))
	} else {
		cmd.Println(shared.RenderOK("Gateway not running"))
	}
	return nil
}
