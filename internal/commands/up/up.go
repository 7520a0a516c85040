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

// Package up implements `conduit up`: launch the gateway processes as
// daemons, wait for health convergence, and report where they listen.
package up

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/logtail"
	"github.com/tombee/conduit/internal/render"
	"github.com/tombee/conduit/internal/supervisor"
	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

type options struct {
	foreground bool
	timeout    time.Duration
}

// NewCommand creates the up command
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "up [CONFIG]",
		Short: "Start the gateway",
		Long: `Start the gateway: launch the proxy and control plane as background
daemons, wait until their health endpoints converge, and record their
PIDs so 'conduit down' can stop them later.

If a healthy instance is already running, up reports it and exits
without launching anything.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positional := ""
			if len(args) > 0 {
				positional = args[0]
			}
			return run(cmd, positional, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.foreground, "foreground", "f", false, "Stay attached and stream process logs after startup")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", supervisor.DefaultHealthTimeout, "Health convergence deadline")

	return cmd
}

func run(cmd *cobra.Command, positional string, opts *options) error {
	cfg, err := shared.LocateConfig(positional)
	if err != nil {
		return shared.NewUsageError("locating gateway config", err)
	}
	if err := config.Validate(cfg); err != nil {
		return shared.NewUsageError("invalid gateway config", err)
	}
	for _, warning := range cfg.Warnings {
		cmd.Printf("%s\n", shared.RenderWarn(warning))
	}

	sctx, err := shared.NewSupervisorContext()
	if err != nil {
		return shared.NewRuntimeError("preparing runtime directories", err)
	}

	resolver, err := config.NewAccessKeyResolver(cfg.Path)
	if err != nil {
		return shared.NewRuntimeError("reading access key sources", err)
	}
	accessKeys, err := resolver.Resolve(config.AccessKeyRefs(cfg))
	if err != nil {
		return shared.NewUsageError("resolving access keys", err)
	}

	// A healthy instance already up is a no-op, not an error.
	if alreadyRunning(cmd.Context(), sctx, cfg) {
		cmd.Println(shared.RenderOK("Gateway already running"))
		printEndpoints(cmd, cfg)
		return nil
	}

	collab, err := supervisor.NewNativeCollaborators(sctx)
	if err != nil {
		return shared.NewRuntimeError("preparing gateway launch", err)
	}

	spinner := shared.NewSpinner()
	spinner.Start("Starting gateway")
	defer spinner.Stop()

	if prober, ok := collab.Prober.(*lifecycle.HealthProber); ok {
		prober.OnWaiting = func(elapsed time.Duration, failing []string) {
			spinner.Update(fmt.Sprintf("Still waiting for %d endpoint(s) after %s", len(failing), elapsed.Round(time.Second)))
		}
	}

	orch := supervisor.NewOrchestrator(sctx, collab)
	orch.OnPhase = func(state supervisor.State) {
		if msg := phaseMessage(state); msg != "" {
			spinner.Update(msg)
		}
	}

	result, err := orch.Up(cmd.Context(), supervisor.UpOptions{
		Config:        cfg,
		AccessKeys:    accessKeys,
		HealthTimeout: opts.timeout,
	})
	spinner.Stop()
	if err != nil {
		return upError(err)
	}

	cmd.Println(shared.RenderOK(fmt.Sprintf("Gateway running (%d launch attempt(s), %s)",
		result.Attempts, result.Duration.Round(time.Millisecond))))
	printEndpoints(cmd, cfg)
	for _, proc := range result.Processes {
		cmd.Printf("  %s %s\n", shared.RenderLabel(fmt.Sprintf("%s log:", proc.Role)), proc.LogPath)
	}

	if opts.foreground {
		return followForeground(cmd, sctx, result.Processes)
	}
	return nil
}

// alreadyRunning reports whether the registry names live processes and
// every health endpoint currently answers 2xx.
func alreadyRunning(ctx context.Context, sctx *supervisor.Context, cfg *config.GatewayConfig) bool {
	status := supervisor.CurrentStatus(sctx)
	if !status.FullyRunning() {
		return false
	}

	prober := lifecycle.NewHealthProber()
	for _, endpoint := range render.HealthEndpoints(cfg) {
		if res := prober.Check(ctx, endpoint); !res.Success {
			return false
		}
	}
	return true
}

// followForeground streams both role logs until the user interrupts,
// then tears the gateway down.
func followForeground(cmd *cobra.Command, sctx *supervisor.Context, procs []lifecycle.ManagedProcess) error {
	sources := make([]logtail.Source, 0, len(procs))
	for _, proc := range procs {
		sources = append(sources, logtail.Source{Label: proc.Role.String(), Path: proc.LogPath})
	}

	cmd.Println(shared.RenderLabel("Streaming logs; Ctrl-C stops the gateway"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tailer := logtail.New(cmd.OutOrStdout(), sources...).WithLogger(sctx.Logger)
	if err := tailer.Follow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sctx.Logger.Warn("log streaming ended", "error", err)
	}

	cmd.Println()
	if _, err := supervisor.NewShutdownController(sctx).StopAll(); err != nil {
		sctx.Logger.Warn("teardown on interrupt did not complete", "error", err)
	}
	cmd.Println(shared.RenderOK("Gateway stopped"))
	return nil
}

func printEndpoints(cmd *cobra.Command, cfg *config.GatewayConfig) {
	for _, listener := range cfg.Listeners {
		addr := listener.Address
		if addr == "" {
			addr = "127.0.0.1"
		}
		cmd.Printf("  %s http://%s:%d\n", shared.RenderLabel(listener.Name+":"), addr, listener.Port)
	}
}

func phaseMessage(state supervisor.State) string {
	switch state {
	case supervisor.StateResolvingArtifacts:
		return "Resolving gateway binaries"
	case supervisor.StateRendering:
		return "Rendering runtime configs"
	case supervisor.StateLaunching:
		return "Launching processes"
	case supervisor.StateAwaitingHealth:
		return "Waiting for health endpoints"
	default:
		return ""
	}
}

// upError maps orchestrator failures onto exit codes: config problems
// are usage errors, everything after launch is a runtime failure.
func upError(err error) error {
	var validationErr *conduiterrors.ValidationError
	if errors.As(err, &validationErr) {
		return shared.NewUsageError("gateway start failed", err)
	}
	return shared.NewRuntimeError("gateway start failed", err)
}
