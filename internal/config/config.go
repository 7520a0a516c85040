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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	conduiterrors "github.com/tombee/conduit/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrConfigNotFound is returned when no config file could be located.
	ErrConfigNotFound = errors.New("config: no gateway config file found")
)

// DefaultFileName is the gateway config file looked up when no explicit path
// is given.
const DefaultFileName = "conduit.yaml"

// GatewayConfig represents the user-facing gateway configuration.
type GatewayConfig struct {
	// Version is the config schema version.
	Version string `yaml:"version,omitempty"`

	// Listeners declares the gateway's TCP listeners. At least one is
	// required; each listener becomes a health endpoint once the gateway
	// is up.
	Listeners []Listener `yaml:"listeners"`

	// Providers declares the upstream model providers the gateway routes to.
	Providers []Provider `yaml:"providers,omitempty"`

	// Routes maps incoming traffic onto providers.
	Routes []Route `yaml:"routes,omitempty"`

	// Tracing configures trace export for the managed processes.
	Tracing TracingConfig `yaml:"tracing,omitempty"`

	// Path is the file this config was loaded from. Not serialized.
	Path string `yaml:"-"`

	// Warnings collects non-fatal findings from loading, such as
	// unknown fields. Not serialized.
	Warnings []string `yaml:"-"`
}

// Listener declares a single gateway TCP listener.
type Listener struct {
	// Name identifies the listener (e.g., "ingress", "egress").
	Name string `yaml:"name"`

	// Address is the bind address. Default: 127.0.0.1
	Address string `yaml:"address,omitempty"`

	// Port is the TCP port to bind.
	Port int `yaml:"port"`
}

// Provider declares an upstream model provider.
type Provider struct {
	// Name identifies the provider within this config.
	Name string `yaml:"name"`

	// Kind selects the provider protocol (openai, anthropic, ollama, ...).
	Kind string `yaml:"kind"`

	// BaseURL overrides the provider's default endpoint. Required for
	// self-hosted kinds like ollama.
	BaseURL string `yaml:"base_url,omitempty"`

	// AccessKey is the credential reference. A leading $ marks an
	// environment-style reference resolved at launch (e.g., $OPENAI_API_KEY);
	// the raw value is never written to rendered output.
	AccessKey string `yaml:"access_key,omitempty"`

	// Models lists the model identifiers served by this provider.
	Models []string `yaml:"models,omitempty"`

	// Default marks the fallback provider for unmatched routes.
	Default bool `yaml:"default,omitempty"`
}

// Route maps request traffic onto a provider.
type Route struct {
	// Name identifies the route.
	Name string `yaml:"name"`

	// Provider is the target provider name.
	Provider string `yaml:"provider"`

	// Model pins a specific model for this route.
	Model string `yaml:"model,omitempty"`

	// Prefix matches requests by path prefix.
	Prefix string `yaml:"prefix,omitempty"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	// Enabled turns on trace export from both managed processes.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Environment: OTEL_TRACING_GRPC_ENDPOINT
	// Default: http://localhost:4317
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Load reads and parses a gateway config file.
// Parse errors include the yaml library's line information.
func Load(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &conduiterrors.ValidationError{
				Field:      "config",
				Message:    fmt.Sprintf("config file not found: %s", path),
				Suggestion: "Run 'conduit init' to create one",
			}
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &conduiterrors.ValidationError{
			Field:   "config",
			Message: fmt.Sprintf("parsing %s: %v", path, err),
		}
	}

	cfg.Path = path
	cfg.applyDefaults()

	// Unknown fields are a warning, not an error: a newer config
	// against an older binary should still launch.
	strict := yaml.NewDecoder(bytes.NewReader(data))
	strict.KnownFields(true)
	var probe GatewayConfig
	if err := strict.Decode(&probe); err != nil && err != io.EOF {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unrecognized fields in %s: %v", path, err))
	}

	return &cfg, nil
}

// applyDefaults fills in optional fields.
func (c *GatewayConfig) applyDefaults() {
	for i := range c.Listeners {
		if c.Listeners[i].Address == "" {
			c.Listeners[i].Address = "127.0.0.1"
		}
	}
}

// ListenerPorts returns the declared listener ports in config order.
func (c *GatewayConfig) ListenerPorts() []int {
	ports := make([]int, 0, len(c.Listeners))
	for _, l := range c.Listeners {
		ports = append(ports, l.Port)
	}
	return ports
}

// DefaultProvider returns the provider marked default, or nil.
func (c *GatewayConfig) DefaultProvider() *Provider {
	for i := range c.Providers {
		if c.Providers[i].Default {
			return &c.Providers[i]
		}
	}
	return nil
}

// Find locates the gateway config file.
// Search order: the explicit path (when non-empty), ./conduit.yaml,
// <conduit home>/conduit.yaml.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, nil
	}

	paths, err := ResolvePaths()
	if err != nil {
		return "", err
	}
	fallback := filepath.Join(paths.Home, DefaultFileName)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}

	return "", ErrConfigNotFound
}
