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
	"log/slog"

	"github.com/google/uuid"

	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/log"
)

// Context carries the per-invocation state every supervisor component
// needs: the resolved runtime paths, the registry and event log bound
// to them, and an invocation ID correlating everything one `up` or
// `down` run writes. It replaces what would otherwise be module-level
// globals; construct one per CLI invocation and pass it down.
type Context struct {
	// Paths is the resolved runtime directory layout.
	Paths *config.Paths

	// InvocationID uniquely identifies this CLI run in logs.
	InvocationID string

	// Logger is the structured logger for supervisor internals.
	Logger *slog.Logger

	// LogLevel is the effective level name, propagated to the managed
	// processes (RUST_LOG for the control plane, wasm component level
	// for the proxy).
	LogLevel string

	// Registry persists managed PIDs across invocations.
	Registry *lifecycle.RegistryManager

	// Events appends lifecycle events to the JSONL audit log.
	Events *lifecycle.LifecycleLogger
}

// NewContext builds the invocation context for the given runtime paths.
func NewContext(paths *config.Paths, logger *slog.Logger, logLevel string) *Context {
	id := uuid.New().String()
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Paths:        paths,
		InvocationID: id,
		Logger:       logger.With(log.InvocationIDKey, id),
		LogLevel:     logLevel,
		Registry:     lifecycle.NewRegistryManager(paths.RegistryPath),
		Events:       lifecycle.NewLifecycleLogger(paths.LifecycleLogPath(), id),
	}
}
