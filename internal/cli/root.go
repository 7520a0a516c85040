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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for conduit
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conduit",
		Short: "Conduit - local LLM gateway supervisor",
		Long: `Conduit runs a local LLM gateway: an Envoy-based proxy in front of your
model providers plus its control plane, both supervised as background
daemons.

Run 'conduit init' to scaffold a gateway config, then 'conduit up' to
start it and 'conduit down' to stop it.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	// Add global flags
	shared.BindGlobalFlags(cmd.PersistentFlags())

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
