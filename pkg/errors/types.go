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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// UnsupportedPlatformError indicates the host OS/architecture combination has
// no published proxy build. Use this before attempting any download.
type UnsupportedPlatformError struct {
	// OS is the runtime operating system (e.g., "darwin")
	OS string

	// Arch is the runtime architecture (e.g., "amd64")
	Arch string
}

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s: no prebuilt proxy binary is published for this target", e.OS, e.Arch)
}

// ErrorType implements ErrorClassifier.
func (e *UnsupportedPlatformError) ErrorType() string { return "unsupported_platform" }

// IsRetryable implements ErrorClassifier.
func (e *UnsupportedPlatformError) IsRetryable() bool { return false }

// ArtifactDownloadError represents a failed proxy binary download or
// extraction. The URL is always recorded so the failure can be reproduced by
// hand.
type ArtifactDownloadError struct {
	// URL is the release archive that was being fetched
	URL string

	// Reason explains which stage failed (fetch, extract, install)
	Reason string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ArtifactDownloadError) Error() string {
	return fmt.Sprintf("downloading proxy binary from %s: %s", e.URL, e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ArtifactDownloadError) Unwrap() error { return e.Cause }

// ErrorType implements ErrorClassifier.
func (e *ArtifactDownloadError) ErrorType() string { return "artifact_download" }

// IsRetryable implements ErrorClassifier.
func (e *ArtifactDownloadError) IsRetryable() bool { return false }

// MissingBuildArtifactError indicates a local build output (control plane
// binary or wasm plugin) was not found at its expected path. These artifacts
// are never downloaded; the user must build them first.
type MissingBuildArtifactError struct {
	// Artifact names what is missing (e.g., "control plane binary")
	Artifact string

	// Path is where the artifact was expected
	Path string
}

// Error implements the error interface.
func (e *MissingBuildArtifactError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.Artifact, e.Path)
}

// IsUserVisible implements UserVisibleError.
func (e *MissingBuildArtifactError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *MissingBuildArtifactError) UserMessage() string {
	return fmt.Sprintf("%s is missing", e.Artifact)
}

// Suggestion implements UserVisibleError.
func (e *MissingBuildArtifactError) Suggestion() string {
	return "Run 'conduit build' to produce the local build artifacts"
}

// ErrorType implements ErrorClassifier.
func (e *MissingBuildArtifactError) ErrorType() string { return "missing_build_artifact" }

// IsRetryable implements ErrorClassifier.
func (e *MissingBuildArtifactError) IsRetryable() bool { return false }

// ConfigRenderError wraps any failure from the config rendering stage. The
// renderer is opaque to callers; only the wrapped cause carries detail.
type ConfigRenderError struct {
	// Path is the user config file being rendered
	Path string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ConfigRenderError) Error() string {
	return fmt.Sprintf("rendering configuration from %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigRenderError) Unwrap() error { return e.Cause }

// ErrorType implements ErrorClassifier.
func (e *ConfigRenderError) ErrorType() string { return "config_render" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigRenderError) IsRetryable() bool { return false }

// PortConflictError indicates a listener port is already bound by another
// process. This is the only retryable startup failure: the caller may tear
// down stale instances and try again.
type PortConflictError struct {
	// Port is the conflicting TCP port
	Port int

	// Cause is the underlying bind error, when the conflict was observed
	// directly rather than inferred from process output
	Cause error
}

// Error implements the error interface.
func (e *PortConflictError) Error() string {
	return fmt.Sprintf("port %d is already in use", e.Port)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PortConflictError) Unwrap() error { return e.Cause }

// ErrorType implements ErrorClassifier.
func (e *PortConflictError) ErrorType() string { return "port_conflict" }

// IsRetryable implements ErrorClassifier.
func (e *PortConflictError) IsRetryable() bool { return true }

// ProcessDiedError indicates a managed process exited while the supervisor
// was waiting for the gateway to become healthy.
type ProcessDiedError struct {
	// Role identifies which process died ("proxy" or "control-plane")
	Role string

	// PID is the process ID that disappeared
	PID int
}

// Error implements the error interface.
func (e *ProcessDiedError) Error() string {
	return fmt.Sprintf("%s process (pid %d) exited during health check", e.Role, e.PID)
}

// ErrorType implements ErrorClassifier.
func (e *ProcessDiedError) ErrorType() string { return "process_died" }

// IsRetryable implements ErrorClassifier.
func (e *ProcessDiedError) IsRetryable() bool { return false }

// HealthCheckTimeoutError indicates the gateway never converged to healthy
// within the configured deadline.
type HealthCheckTimeoutError struct {
	// Timeout is the deadline that expired
	Timeout time.Duration

	// Endpoints lists the health endpoints that were still failing
	Endpoints []string
}

// Error implements the error interface.
func (e *HealthCheckTimeoutError) Error() string {
	if len(e.Endpoints) > 0 {
		return fmt.Sprintf("gateway did not become healthy within %v (failing: %v)", e.Timeout, e.Endpoints)
	}
	return fmt.Sprintf("gateway did not become healthy within %v", e.Timeout)
}

// ErrorType implements ErrorClassifier.
func (e *HealthCheckTimeoutError) ErrorType() string { return "health_check_timeout" }

// IsRetryable implements ErrorClassifier.
func (e *HealthCheckTimeoutError) IsRetryable() bool { return false }

// StaleRegistryEntryError records that a PID from the registry no longer
// refers to a live managed process. It is informational: teardown treats the
// entry as already stopped and continues.
type StaleRegistryEntryError struct {
	// Role identifies the registry entry ("proxy" or "control-plane")
	Role string

	// PID is the recorded process ID
	PID int
}

// Error implements the error interface.
func (e *StaleRegistryEntryError) Error() string {
	return fmt.Sprintf("stale registry entry for %s (pid %d)", e.Role, e.PID)
}

// ErrorType implements ErrorClassifier.
func (e *StaleRegistryEntryError) ErrorType() string { return "stale_registry_entry" }

// IsRetryable implements ErrorClassifier.
func (e *StaleRegistryEntryError) IsRetryable() bool { return false }
