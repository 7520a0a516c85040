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
	"fmt"
	"strings"

	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

// SupportedProviderKinds lists provider kinds the gateway can route to.
var SupportedProviderKinds = []string{
	"openai",
	"anthropic",
	"mistral",
	"deepseek",
	"groq",
	"gemini",
	"ollama",
}

// IsSupportedKind returns true if the given provider kind is known.
func IsSupportedKind(kind string) bool {
	for _, supported := range SupportedProviderKinds {
		if kind == supported {
			return true
		}
	}
	return false
}

// Validate checks the gateway config for structural problems. The first
// failure is returned as a ValidationError naming the offending field.
func Validate(cfg *GatewayConfig) error {
	if len(cfg.Listeners) == 0 {
		return &conduiterrors.ValidationError{
			Field:      "listeners",
			Message:    "at least one listener is required",
			Suggestion: "Declare a listener with a name and port",
		}
	}

	seenPorts := make(map[int]string)
	seenNames := make(map[string]bool)
	for i, l := range cfg.Listeners {
		field := fmt.Sprintf("listeners[%d]", i)
		if l.Name == "" {
			return &conduiterrors.ValidationError{
				Field:   field + ".name",
				Message: "listener name is required",
			}
		}
		if seenNames[l.Name] {
			return &conduiterrors.ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate listener name %q", l.Name),
			}
		}
		seenNames[l.Name] = true
		if l.Port < 1 || l.Port > 65535 {
			return &conduiterrors.ValidationError{
				Field:   field + ".port",
				Message: fmt.Sprintf("port %d is out of range (1-65535)", l.Port),
			}
		}
		if other, dup := seenPorts[l.Port]; dup {
			return &conduiterrors.ValidationError{
				Field:   field + ".port",
				Message: fmt.Sprintf("port %d is already used by listener %q", l.Port, other),
			}
		}
		seenPorts[l.Port] = l.Name
	}

	providerNames := make(map[string]bool)
	defaults := 0
	for i, p := range cfg.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if p.Name == "" {
			return &conduiterrors.ValidationError{
				Field:   field + ".name",
				Message: "provider name is required",
			}
		}
		if providerNames[p.Name] {
			return &conduiterrors.ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate provider name %q", p.Name),
			}
		}
		providerNames[p.Name] = true
		if !IsSupportedKind(p.Kind) {
			return &conduiterrors.ValidationError{
				Field:      field + ".kind",
				Message:    fmt.Sprintf("unknown provider kind %q", p.Kind),
				Suggestion: "Supported kinds: " + strings.Join(SupportedProviderKinds, ", "),
			}
		}
		if err := validateAccessKeyRef(field, &p); err != nil {
			return err
		}
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return &conduiterrors.ValidationError{
			Field:   "providers",
			Message: "only one provider may be marked default",
		}
	}

	for i, r := range cfg.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if r.Provider == "" {
			return &conduiterrors.ValidationError{
				Field:   field + ".provider",
				Message: "route provider is required",
			}
		}
		if !providerNames[r.Provider] {
			return &conduiterrors.ValidationError{
				Field:   field + ".provider",
				Message: fmt.Sprintf("route references unknown provider %q", r.Provider),
			}
		}
	}

	return nil
}

// validateAccessKeyRef checks the access_key reference syntax. Self-hosted
// kinds may omit the key; everything else needs either a $VAR reference or a
// base_url override for local testing.
func validateAccessKeyRef(field string, p *Provider) error {
	if p.AccessKey == "" {
		if p.Kind == "ollama" || p.BaseURL != "" {
			return nil
		}
		return &conduiterrors.ValidationError{
			Field:      field + ".access_key",
			Message:    fmt.Sprintf("provider %q requires an access key", p.Name),
			Suggestion: "Reference an environment variable, e.g. access_key: $OPENAI_API_KEY",
		}
	}
	if strings.HasPrefix(p.AccessKey, "$") {
		name := strings.TrimPrefix(p.AccessKey, "$")
		name = strings.TrimPrefix(name, "{")
		name = strings.TrimSuffix(name, "}")
		if name == "" {
			return &conduiterrors.ValidationError{
				Field:   field + ".access_key",
				Message: "empty environment variable reference",
			}
		}
	}
	return nil
}
