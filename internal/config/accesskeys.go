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
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	conduiterrors "github.com/tombee/conduit/pkg/errors"
	"github.com/zalando/go-keyring"
)

// KeyringService is the keychain service name for conduit credentials.
const KeyringService = "conduit"

// AccessKeyRefs extracts the environment variable names referenced by
// provider access_key fields ($VAR or ${VAR} syntax), in config order,
// deduplicated.
func AccessKeyRefs(cfg *GatewayConfig) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, p := range cfg.Providers {
		name, ok := envRefName(p.AccessKey)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}

// envRefName extracts VAR from $VAR or ${VAR}. Returns false for literals.
func envRefName(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "$") {
		return "", false
	}
	name := strings.TrimPrefix(ref, "$")
	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") {
		name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// keySource resolves a single credential name. Sources are consulted in
// fixed priority order; the first hit wins.
type keySource interface {
	Name() string
	Lookup(key string) (string, bool)
}

type envSource struct{}

func (envSource) Name() string { return "environment" }

func (envSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

type dotEnvSource struct {
	values map[string]string
}

func (dotEnvSource) Name() string { return ".env" }

func (s dotEnvSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

type keyringSource struct {
	service   string
	available bool
}

// newKeyringSource probes the OS keychain once. On headless systems without
// a secret service the source reports unavailable and is skipped silently.
func newKeyringSource(service string) *keyringSource {
	s := &keyringSource{service: service, available: true}
	_, err := keyring.Get(service, "__conduit_availability_test__")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.available = false
	}
	return s
}

func (*keyringSource) Name() string { return "keychain" }

func (s *keyringSource) Lookup(key string) (string, bool) {
	if !s.available {
		return "", false
	}
	value, err := keyring.Get(s.service, key)
	if err != nil {
		return "", false
	}
	return value, true
}

// AccessKeyResolver resolves credential references from the environment, a
// .env file beside the config, and the OS keychain, in that order.
type AccessKeyResolver struct {
	sources []keySource
}

// NewAccessKeyResolver builds the resolution chain for a config at the given
// path. A missing .env file is not an error; a malformed one is.
func NewAccessKeyResolver(configPath string) (*AccessKeyResolver, error) {
	sources := []keySource{envSource{}}

	dotEnvPath := filepath.Join(filepath.Dir(configPath), ".env")
	values, err := ParseDotEnv(dotEnvPath)
	if err != nil {
		return nil, err
	}
	if values != nil {
		sources = append(sources, dotEnvSource{values: values})
	}

	sources = append(sources, newKeyringSource(KeyringService))
	return &AccessKeyResolver{sources: sources}, nil
}

// Resolve looks up every referenced key. All keys must resolve; the error
// lists every missing name so the user can fix them in one pass.
func (r *AccessKeyResolver) Resolve(refs []string) (map[string]string, error) {
	resolved := make(map[string]string, len(refs))
	var missing []string
	for _, ref := range refs {
		value, ok := r.lookup(ref)
		if !ok {
			missing = append(missing, ref)
			continue
		}
		resolved[ref] = value
	}
	if len(missing) > 0 {
		return nil, &conduiterrors.ValidationError{
			Field:      "providers.access_key",
			Message:    fmt.Sprintf("unresolved access keys: %s", strings.Join(missing, ", ")),
			Suggestion: "Export the variables, add them to .env next to the config, or store them in the OS keychain",
		}
	}
	return resolved, nil
}

func (r *AccessKeyResolver) lookup(key string) (string, bool) {
	for _, src := range r.sources {
		if value, ok := src.Lookup(key); ok {
			return value, true
		}
	}
	return "", false
}

// ParseDotEnv reads a KEY=value file. Returns (nil, nil) when the file does
// not exist. Blank lines and # comments are skipped; surrounding single or
// double quotes on values are stripped; an optional "export " prefix is
// accepted.
func ParseDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("parsing %s:%d: expected KEY=value", path, lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key == "" {
			return nil, fmt.Errorf("parsing %s:%d: empty key", path, lineNo)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
