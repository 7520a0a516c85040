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

package errors_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *conduiterrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &conduiterrors.ValidationError{
				Field:      "listeners",
				Message:    "at least one listener is required",
				Suggestion: "Add a listener to the config",
			},
			wantMsg: "validation failed on listeners: at least one listener is required",
		},
		{
			name: "without field",
			err: &conduiterrors.ValidationError{
				Message: "config file not found",
			},
			wantMsg: "validation failed: config file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestUnsupportedPlatformError_Error(t *testing.T) {
	err := &conduiterrors.UnsupportedPlatformError{OS: "darwin", Arch: "amd64"}

	msg := err.Error()
	if !strings.Contains(msg, "darwin/amd64") {
		t.Errorf("error should name the platform, got: %s", msg)
	}
	if err.IsRetryable() {
		t.Error("UnsupportedPlatformError should not be retryable")
	}
}

func TestArtifactDownloadError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &conduiterrors.ArtifactDownloadError{
		URL:    "https://example.com/envoy.tar.xz",
		Reason: "fetch failed",
		Cause:  cause,
	}

	msg := err.Error()
	if !strings.Contains(msg, "https://example.com/envoy.tar.xz") {
		t.Errorf("error should carry the URL, got: %s", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestMissingBuildArtifactError(t *testing.T) {
	err := &conduiterrors.MissingBuildArtifactError{
		Artifact: "control plane binary",
		Path:     "/repo/crates/target/release/steward",
	}

	msg := err.Error()
	if !strings.Contains(msg, "control plane binary") || !strings.Contains(msg, "/repo/crates/target/release/steward") {
		t.Errorf("error should name artifact and path, got: %s", msg)
	}
	if !err.IsUserVisible() {
		t.Error("missing build artifacts should be user visible")
	}
	if !strings.Contains(err.Suggestion(), "conduit build") {
		t.Errorf("suggestion should point at conduit build, got: %s", err.Suggestion())
	}
}

func TestPortConflictError_IsRetryable(t *testing.T) {
	err := &conduiterrors.PortConflictError{Port: 10000}

	if !err.IsRetryable() {
		t.Error("port conflicts must be retryable")
	}
	if !strings.Contains(err.Error(), "10000") {
		t.Errorf("error should carry the port, got: %s", err.Error())
	}
}

func TestPortConflictError_WrappedDetection(t *testing.T) {
	// The retry loop classifies errors through a wrap chain.
	inner := &conduiterrors.PortConflictError{Port: 8001}
	wrapped := conduiterrors.Wrapf(inner, "launching proxy attempt %d", 1)

	var pc *conduiterrors.PortConflictError
	if !errors.As(wrapped, &pc) {
		t.Fatal("PortConflictError should survive wrapping")
	}
	if pc.Port != 8001 {
		t.Errorf("Port = %d, want 8001", pc.Port)
	}
}

func TestProcessDiedError_Error(t *testing.T) {
	err := &conduiterrors.ProcessDiedError{Role: "proxy", PID: 4242}

	msg := err.Error()
	if !strings.Contains(msg, "proxy") || !strings.Contains(msg, "4242") {
		t.Errorf("error should carry role and pid, got: %s", msg)
	}
	if err.IsRetryable() {
		t.Error("process death is not retryable")
	}
}

func TestHealthCheckTimeoutError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *conduiterrors.HealthCheckTimeoutError
		want []string
	}{
		{
			name: "with failing endpoints",
			err: &conduiterrors.HealthCheckTimeoutError{
				Timeout:   60 * time.Second,
				Endpoints: []string{"127.0.0.1:10000/healthz"},
			},
			want: []string{"1m0s", "127.0.0.1:10000/healthz"},
		},
		{
			name: "without endpoints",
			err:  &conduiterrors.HealthCheckTimeoutError{Timeout: 30 * time.Second},
			want: []string{"30s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("error %q should contain %q", msg, want)
				}
			}
		})
	}
}

func TestStaleRegistryEntryError_Error(t *testing.T) {
	err := &conduiterrors.StaleRegistryEntryError{Role: "control-plane", PID: 99999}

	msg := err.Error()
	if !strings.Contains(msg, "control-plane") || !strings.Contains(msg, "99999") {
		t.Errorf("error should carry role and pid, got: %s", msg)
	}
	if err.ErrorType() != "stale_registry_entry" {
		t.Errorf("ErrorType = %q, want stale_registry_entry", err.ErrorType())
	}
}

func TestErrorClassifier_Coverage(t *testing.T) {
	// Every supervision error participates in classification.
	classifiers := []conduiterrors.ErrorClassifier{
		&conduiterrors.ValidationError{},
		&conduiterrors.UnsupportedPlatformError{},
		&conduiterrors.ArtifactDownloadError{},
		&conduiterrors.MissingBuildArtifactError{},
		&conduiterrors.ConfigRenderError{},
		&conduiterrors.PortConflictError{},
		&conduiterrors.ProcessDiedError{},
		&conduiterrors.HealthCheckTimeoutError{},
		&conduiterrors.StaleRegistryEntryError{},
	}

	seen := make(map[string]bool)
	for _, c := range classifiers {
		typ := c.ErrorType()
		if typ == "" {
			t.Errorf("%T has empty ErrorType", c)
		}
		if seen[typ] {
			t.Errorf("duplicate ErrorType %q", typ)
		}
		seen[typ] = true
	}

	// Only port conflicts are retryable.
	for _, c := range classifiers {
		_, isConflict := c.(*conduiterrors.PortConflictError)
		if c.IsRetryable() != isConflict {
			t.Errorf("%T IsRetryable = %v", c, c.IsRetryable())
		}
	}
}
