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

// Package logs implements `conduit logs`: print or follow the managed
// process log files.
package logs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/logtail"
)

// defaultLines is how much history the one-shot mode prints per role.
const defaultLines = 100

type options struct {
	follow bool
	role   string
	lines  int
}

// NewCommand creates the logs command
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show gateway process logs",
		Long: `Print the managed process logs from the conduit run directory. With
--follow, stream appended lines until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Stream appended log lines")
	cmd.Flags().StringVar(&opts.role, "role", "", "Only show one role's log (proxy or control-plane)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", defaultLines, "History lines to print per log")

	return cmd
}

func runLogs(cmd *cobra.Command, opts *options) error {
	sctx, err := shared.NewSupervisorContext()
	if err != nil {
		return shared.NewRuntimeError("resolving runtime directories", err)
	}

	roles := lifecycle.Roles()
	if opts.role != "" {
		role, err := lifecycle.ParseRole(opts.role)
		if err != nil {
			return shared.NewUsageError("invalid --role", err)
		}
		roles = []lifecycle.Role{role}
	}

	sources := make([]logtail.Source, 0, len(roles))
	anyExists := false
	for _, role := range roles {
		path := sctx.Paths.ProcessLogPath(role.LogName())
		if _, err := os.Stat(path); err == nil {
			anyExists = true
		}
		sources = append(sources, logtail.Source{Label: role.String(), Path: path})
	}
	if !anyExists && !opts.follow {
		cmd.Println(shared.RenderLabel(fmt.Sprintf("No logs yet under %s; run 'conduit up' first", sctx.Paths.LogDir)))
		return nil
	}

	tailer := logtail.New(cmd.OutOrStdout(), sources...).WithLogger(sctx.Logger)
	if err := tailer.Dump(opts.lines); err != nil {
		return shared.NewRuntimeError("reading log files", err)
	}
	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tailer.Follow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return shared.NewRuntimeError("following log files", err)
	}
	return nil
}
