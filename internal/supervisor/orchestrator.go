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

package supervisor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tombee/conduit/internal/artifact"
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/log"
	"github.com/tombee/conduit/internal/render"
	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

const (
	// DefaultHealthTimeout bounds the native health convergence wait.
	// The containerized driver passes a longer deadline.
	DefaultHealthTimeout = 60 * time.Second

	// DefaultMaxAttempts is the total launch attempt budget when a
	// port conflict keeps recurring.
	DefaultMaxAttempts = 3

	// DefaultRetryInterval is the pause between launch attempts.
	DefaultRetryInterval = 2 * time.Second
)

// ArtifactSource resolves the binaries and plugins the gateway runs.
type ArtifactSource interface {
	// ProxyBinary returns a path to a usable proxy binary, downloading
	// it when the cache is cold.
	ProxyBinary(ctx context.Context) (string, error)

	// BuildArtifacts returns the local build outputs (control plane
	// binary and wasm plugins).
	BuildArtifacts() (*artifact.BuildArtifacts, error)
}

// Renderer produces the runtime config files both processes read. The
// orchestrator treats it as opaque; failures come back wrapped in a
// ConfigRenderError.
type Renderer interface {
	RenderAll(cfg *config.GatewayConfig, env map[string]string) (*render.RenderResult, error)
}

// Prober drives the health convergence wait.
type Prober interface {
	AwaitHealthy(ctx context.Context, endpoints []lifecycle.HealthEndpoint, processes []lifecycle.ManagedProcess, timeout time.Duration) lifecycle.WaitResult
}

// ShutdownRunner tears down every registered process. It is invoked on
// each port-conflict retry and on every post-launch failure path.
type ShutdownRunner interface {
	StopAll() (bool, error)
}

// Collaborators are the pluggable pieces the orchestrator coordinates.
// Production wiring lives in the up command; tests substitute fakes.
type Collaborators struct {
	Artifacts ArtifactSource

	// NewRenderer builds the renderer once the build artifacts are
	// known; the proxy bootstrap embeds the wasm plugin paths.
	NewRenderer func(artifacts *artifact.BuildArtifacts) Renderer

	Daemonizer lifecycle.Daemonizer
	Prober     Prober
	Shutdown   ShutdownRunner
}

// UpOptions parameterizes one startup run.
type UpOptions struct {
	// Config is the validated gateway config.
	Config *config.GatewayConfig

	// AccessKeys are the resolved provider credentials, exported into
	// the control plane's environment.
	AccessKeys map[string]string

	// HealthTimeout bounds the convergence wait. Zero means
	// DefaultHealthTimeout.
	HealthTimeout time.Duration

	// MaxAttempts is the total launch attempt budget; only port
	// conflicts consume extra attempts. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// RetryInterval is the pause between attempts. Zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration
}

// UpResult describes a successful startup.
type UpResult struct {
	// Processes are the launched gateway processes.
	Processes []lifecycle.ManagedProcess

	// Endpoints are the health endpoints that converged.
	Endpoints []lifecycle.HealthEndpoint

	// Rendered reports where the runtime config files were written.
	Rendered *render.RenderResult

	// Attempts counts launch attempts, including the successful one.
	Attempts int

	// Duration is the total wall-clock time of the run.
	Duration time.Duration
}

// Orchestrator is the lifecycle state machine for one up invocation.
// It is single-threaded: phases run sequentially in the calling
// goroutine, and the only concurrency is the managed processes
// themselves.
type Orchestrator struct {
	sctx   *Context
	collab Collaborators
	state  State

	// Seams for tests; default to the real lifecycle functions.
	probePorts func(ports []int) error
	scanLog    func(path string) bool

	// OnPhase, if set, is called on every state transition so the CLI
	// can print per-phase status lines.
	OnPhase func(state State)

	// OnWaiting is forwarded to the prober's slow-convergence notice.
	OnWaiting func(elapsed time.Duration, failing []string)
}

// NewOrchestrator creates the state machine for one invocation.
func NewOrchestrator(sctx *Context, collab Collaborators) *Orchestrator {
	return &Orchestrator{
		sctx:       sctx,
		collab:     collab,
		state:      StateIdle,
		probePorts: lifecycle.ProbePorts,
		scanLog:    lifecycle.ScanLogForBindConflict,
	}
}

// State returns the machine's current state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) setState(s State) {
	o.sctx.Logger.Debug("state transition", log.StateKey, s.String(), "from", o.state.String())
	o.state = s
	if o.OnPhase != nil {
		o.OnPhase(s)
	}
}

// Up drives the machine from Idle to Running. On any failure after a
// process has been launched, everything launched is torn down before
// the error is returned: a failed up leaves zero managed processes.
func (o *Orchestrator) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	start := time.Now()
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = DefaultHealthTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	// Nothing is launched during the first two phases, so their
	// failures abort without any teardown.
	o.setState(StateResolvingArtifacts)
	proxyBinary, err := o.collab.Artifacts.ProxyBinary(ctx)
	if err != nil {
		return nil, o.fail(err)
	}
	builds, err := o.collab.Artifacts.BuildArtifacts()
	if err != nil {
		return nil, o.fail(err)
	}

	o.setState(StateRendering)
	rendered, err := o.collab.NewRenderer(builds).RenderAll(opts.Config, opts.AccessKeys)
	if err != nil {
		return nil, o.fail(err)
	}

	endpoints := render.HealthEndpoints(opts.Config)
	ports := append(opts.Config.ListenerPorts(), render.ControlPlaneHealthPort)

	result := &UpResult{Endpoints: endpoints, Rendered: rendered}
	attempt := 0

	run := func() error {
		attempt++
		result.Attempts = attempt
		result.Processes = nil

		o.setState(StateLaunching)
		if err := o.probePorts(ports); err != nil {
			return o.conflict(err, attempt)
		}

		procs, err := o.launchAll(proxyBinary, builds.ControlPlaneBinary, rendered, opts)
		if err != nil {
			// A partial launch may have left the first process alive.
			o.teardown()
			return backoff.Permanent(err)
		}
		result.Processes = procs

		o.setState(StateAwaitingHealth)
		return o.awaitHealth(ctx, endpoints, procs, opts.HealthTimeout, attempt)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.RetryInterval), uint64(opts.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(run, policy); err != nil {
		o.setState(StateFailed)
		if logErr := o.sctx.Events.LogUpFailed(err); logErr != nil {
			o.sctx.Logger.Debug("failed to write lifecycle event", "error", logErr)
		}
		return nil, err
	}

	o.setState(StateRunning)
	result.Duration = time.Since(start)
	if err := o.sctx.Events.LogUpSuccess(result.Duration); err != nil {
		o.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
	}
	return result, nil
}

// launchAll spawns the control plane then the proxy and persists the
// registry. Launch order matters: the proxy's bootstrap points at the
// control plane, so the control plane must exist first.
func (o *Orchestrator) launchAll(proxyBinary, controlPlaneBinary string, rendered *render.RenderResult, opts UpOptions) ([]lifecycle.ManagedProcess, error) {
	specs := o.launchSpecs(proxyBinary, controlPlaneBinary, rendered, opts.AccessKeys)

	var procs []lifecycle.ManagedProcess
	reg := lifecycle.Registry{}
	for _, spec := range specs {
		pid, err := o.collab.Daemonizer.SpawnDetached(spec)
		if err != nil {
			return procs, conduiterrors.Wrapf(err, "launching %s", spec.Role)
		}
		procs = append(procs, lifecycle.ManagedProcess{Role: spec.Role, PID: pid, LogPath: spec.LogPath})
		reg.SetPID(spec.Role, pid)

		// Persist after every spawn, not once at the end: teardown
		// works off the registry on disk, so a process is only safe
		// from orphaning once its PID is recorded there.
		if err := o.sctx.Registry.Save(reg); err != nil {
			return procs, err
		}

		o.sctx.Logger.Info("process launched",
			log.RoleKey, spec.Role.String(), log.PIDKey, pid, "log", spec.LogPath)
		if err := o.sctx.Events.LogProcessLaunched(spec.Role, pid, spec.LogPath); err != nil {
			o.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
		}
	}

	if err := o.sctx.Events.LogRegistrySaved(reg); err != nil {
		o.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
	}
	return procs, nil
}

// awaitHealth runs the convergence wait and classifies its outcome.
// Every non-ready outcome tears down before returning.
func (o *Orchestrator) awaitHealth(ctx context.Context, endpoints []lifecycle.HealthEndpoint, procs []lifecycle.ManagedProcess, timeout time.Duration, attempt int) error {
	res := o.collab.Prober.AwaitHealthy(ctx, endpoints, procs, timeout)

	switch res.Outcome {
	case lifecycle.OutcomeReady:
		if err := o.sctx.Events.LogHealthConverged(res.Attempts, res.Elapsed); err != nil {
			o.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
		}
		return nil

	case lifecycle.OutcomeProcessDied:
		dead := findProcess(procs, res.DeadProcess)
		if err := o.sctx.Events.LogProcessDied(dead.Role, dead.PID); err != nil {
			o.sctx.Logger.Debug("failed to write lifecycle event", "error", err)
		}
		o.teardown()

		// A child that lost the bind race dies with "address already
		// in use" in its log; that is the one crash worth retrying.
		if o.scanLog(dead.LogPath) {
			return o.conflictAfterCleanup(&conduiterrors.PortConflictError{Port: portHint(endpoints, dead.Role)}, attempt)
		}
		return backoff.Permanent(&conduiterrors.ProcessDiedError{Role: dead.Role.String(), PID: dead.PID})

	default: // lifecycle.OutcomeTimedOut
		o.teardown()
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return backoff.Permanent(&conduiterrors.HealthCheckTimeoutError{
			Timeout:   timeout,
			Endpoints: res.FailingEndpoints,
		})
	}
}

// conflict handles a pre-launch port conflict: clear any stale prior
// instance squatting on the ports, then let the backoff policy retry.
func (o *Orchestrator) conflict(err error, attempt int) error {
	o.teardown()
	return o.conflictAfterCleanup(err, attempt)
}

// conflictAfterCleanup records the retry without running teardown
// again; callers on the post-launch path have already torn down.
func (o *Orchestrator) conflictAfterCleanup(err error, attempt int) error {
	var conflictErr *conduiterrors.PortConflictError
	port := 0
	if conduiterrors.As(err, &conflictErr) {
		port = conflictErr.Port
	}
	o.sctx.Logger.Warn("port conflict during launch", "port", port, "attempt", attempt)
	if logErr := o.sctx.Events.LogPortConflictRetry(port, attempt); logErr != nil {
		o.sctx.Logger.Debug("failed to write lifecycle event", "error", logErr)
	}
	return err
}

// teardown invokes the shutdown controller, best-effort. It is safe to
// call with nothing launched.
func (o *Orchestrator) teardown() {
	if _, err := o.collab.Shutdown.StopAll(); err != nil {
		o.sctx.Logger.Warn("cleanup after failed launch did not complete", "error", err)
	}
}

// fail marks the invocation failed before anything was launched.
func (o *Orchestrator) fail(err error) error {
	o.setState(StateFailed)
	if logErr := o.sctx.Events.LogUpFailed(err); logErr != nil {
		o.sctx.Logger.Debug("failed to write lifecycle event", "error", logErr)
	}
	return err
}

func findProcess(procs []lifecycle.ManagedProcess, role lifecycle.Role) lifecycle.ManagedProcess {
	for _, p := range procs {
		if p.Role == role {
			return p
		}
	}
	return lifecycle.ManagedProcess{Role: role}
}

// portHint picks a representative port for a conflict message when the
// conflict was inferred from a process log rather than a bind probe.
func portHint(endpoints []lifecycle.HealthEndpoint, role lifecycle.Role) int {
	if role == lifecycle.RoleControlPlane {
		return render.ControlPlaneHealthPort
	}
	for _, e := range endpoints {
		if e.Port != render.ControlPlaneHealthPort {
			return e.Port
		}
	}
	return 0
}
