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
	"errors"
	"strings"
	"testing"

	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

func validConfig() *GatewayConfig {
	return &GatewayConfig{
		Version: "1",
		Listeners: []Listener{
			{Name: "ingress", Address: "127.0.0.1", Port: 10000},
			{Name: "egress", Address: "127.0.0.1", Port: 12000},
		},
		Providers: []Provider{
			{Name: "openai", Kind: "openai", AccessKey: "$OPENAI_API_KEY", Default: true},
			{Name: "local", Kind: "ollama", BaseURL: "http://127.0.0.1:11434"},
		},
		Routes: []Route{
			{Name: "chat", Provider: "openai", Model: "gpt-4o"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*GatewayConfig)
		wantField string
	}{
		{
			name:      "no listeners",
			mutate:    func(c *GatewayConfig) { c.Listeners = nil },
			wantField: "listeners",
		},
		{
			name:      "unnamed listener",
			mutate:    func(c *GatewayConfig) { c.Listeners[0].Name = "" },
			wantField: "listeners[0].name",
		},
		{
			name:      "duplicate listener name",
			mutate:    func(c *GatewayConfig) { c.Listeners[1].Name = "ingress" },
			wantField: "listeners[1].name",
		},
		{
			name:      "port zero",
			mutate:    func(c *GatewayConfig) { c.Listeners[0].Port = 0 },
			wantField: "listeners[0].port",
		},
		{
			name:      "port too large",
			mutate:    func(c *GatewayConfig) { c.Listeners[0].Port = 70000 },
			wantField: "listeners[0].port",
		},
		{
			name:      "duplicate port",
			mutate:    func(c *GatewayConfig) { c.Listeners[1].Port = 10000 },
			wantField: "listeners[1].port",
		},
		{
			name:      "unnamed provider",
			mutate:    func(c *GatewayConfig) { c.Providers[0].Name = "" },
			wantField: "providers[0].name",
		},
		{
			name:      "duplicate provider name",
			mutate:    func(c *GatewayConfig) { c.Providers[1].Name = "openai" },
			wantField: "providers[1].name",
		},
		{
			name:      "unknown provider kind",
			mutate:    func(c *GatewayConfig) { c.Providers[0].Kind = "watson" },
			wantField: "providers[0].kind",
		},
		{
			name: "missing access key",
			mutate: func(c *GatewayConfig) {
				c.Providers[0].AccessKey = ""
				c.Providers[0].BaseURL = ""
			},
			wantField: "providers[0].access_key",
		},
		{
			name:      "empty env reference",
			mutate:    func(c *GatewayConfig) { c.Providers[0].AccessKey = "${}" },
			wantField: "providers[0].access_key",
		},
		{
			name: "two default providers",
			mutate: func(c *GatewayConfig) {
				c.Providers[1].Default = true
			},
			wantField: "providers",
		},
		{
			name:      "route without provider",
			mutate:    func(c *GatewayConfig) { c.Routes[0].Provider = "" },
			wantField: "routes[0].provider",
		},
		{
			name:      "route to unknown provider",
			mutate:    func(c *GatewayConfig) { c.Routes[0].Provider = "ghost" },
			wantField: "routes[0].provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verr *conduiterrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidate_AccessKeyOptionalForSelfHosted(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = []Provider{{Name: "local", Kind: "ollama"}}
	cfg.Routes = nil

	if err := Validate(cfg); err != nil {
		t.Errorf("ollama without access key should validate, got: %v", err)
	}
}

func TestIsSupportedKind(t *testing.T) {
	for _, kind := range SupportedProviderKinds {
		if !IsSupportedKind(kind) {
			t.Errorf("%q should be supported", kind)
		}
	}
	if IsSupportedKind("watson") {
		t.Error("watson should not be supported")
	}
}

func TestValidate_ErrorMessagesNameTheKinds(t *testing.T) {
	cfg := validConfig()
	cfg.Providers[0].Kind = "nope"

	err := Validate(cfg)
	var verr *conduiterrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Suggestion, "openai") {
		t.Errorf("suggestion should list supported kinds, got %q", verr.Suggestion)
	}
}
