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

package render

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/tombee/conduit/internal/artifact"
	"github.com/tombee/conduit/internal/config"
	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	home := t.TempDir()
	runDir := filepath.Join(home, "run")
	paths := &config.Paths{
		Home:         home,
		RunDir:       runDir,
		LogDir:       filepath.Join(runDir, "logs"),
		BinDir:       filepath.Join(home, "bin"),
		RegistryPath: filepath.Join(runDir, config.RegistryFileName),
	}
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	return paths
}

func testArtifacts() *artifact.BuildArtifacts {
	return &artifact.BuildArtifacts{
		ControlPlaneBinary: "/fake/target/release/steward",
		IngressFilter:      "/fake/target/wasm/ingress.wasm",
		EgressFilter:       "/fake/target/wasm/egress.wasm",
	}
}

func writeGatewayConfig(t *testing.T, content string) *config.GatewayConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

const renderTestConfig = `
listeners:
  - name: ingress
    address: 127.0.0.1
    port: 4000
providers:
  - name: openai
    kind: openai
    access_key: $OPENAI_API_KEY
    default: true
  - name: local
    kind: ollama
    base_url: http://127.0.0.1:11434
routes:
  - name: compat
    provider: openai
    prefix: /v1/
`

func TestRenderAll(t *testing.T) {
	paths := testPaths(t)
	cfg := writeGatewayConfig(t, renderTestConfig)

	renderer := NewRenderer(paths, testArtifacts())
	result, err := renderer.RenderAll(cfg, map[string]string{"OPENAI_API_KEY": "sk-test-value"})
	if err != nil {
		t.Fatalf("RenderAll() error = %v", err)
	}

	if result.ProxyConfigPath != paths.RenderedProxyConfigPath() {
		t.Errorf("ProxyConfigPath = %q, want %q", result.ProxyConfigPath, paths.RenderedProxyConfigPath())
	}
	if result.GatewayConfigPath != paths.RenderedGatewayConfigPath() {
		t.Errorf("GatewayConfigPath = %q, want %q", result.GatewayConfigPath, paths.RenderedGatewayConfigPath())
	}

	bootstrap, err := os.ReadFile(result.ProxyConfigPath)
	if err != nil {
		t.Fatalf("reading bootstrap: %v", err)
	}
	for _, want := range []string{
		"port_value: 9901",
		"port_value: 4000",
		"name: ingress",
		"path: /healthz",
		"prefix: /v1/",
		"cluster: provider_openai",
		"api.openai.com",
		"/fake/target/wasm/ingress.wasm",
	} {
		if !strings.Contains(string(bootstrap), want) {
			t.Errorf("bootstrap missing %q", want)
		}
	}

	gateway, err := os.ReadFile(result.GatewayConfigPath)
	if err != nil {
		t.Fatalf("reading gateway config: %v", err)
	}
	if !strings.Contains(string(gateway), "sk-test-value") {
		t.Error("gateway config did not substitute access key reference")
	}
	if strings.Contains(string(gateway), "$OPENAI_API_KEY") {
		t.Error("gateway config still contains unresolved reference")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(result.GatewayConfigPath)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("gateway config mode = %o, want 0600", perm)
		}
	}
}

func TestRenderAllWrapsFailures(t *testing.T) {
	paths := testPaths(t)
	cfg := writeGatewayConfig(t, renderTestConfig)
	// Remove the source file so the gateway render stage fails.
	if err := os.Remove(cfg.Path); err != nil {
		t.Fatalf("removing config: %v", err)
	}

	renderer := NewRenderer(paths, testArtifacts())
	_, err := renderer.RenderAll(cfg, nil)
	if err == nil {
		t.Fatal("RenderAll() expected error")
	}
	var renderErr *conduiterrors.ConfigRenderError
	if !conduiterrors.As(err, &renderErr) {
		t.Fatalf("error = %T, want *ConfigRenderError", err)
	}
	if renderErr.Path != cfg.Path {
		t.Errorf("Path = %q, want %q", renderErr.Path, cfg.Path)
	}
}

func TestRenderGatewayConfigEnvPrecedence(t *testing.T) {
	paths := testPaths(t)
	cfg := writeGatewayConfig(t, renderTestConfig)

	// The resolver-provided map wins over the process environment.
	t.Setenv("OPENAI_API_KEY", "sk-from-process-env")

	renderer := NewRenderer(paths, testArtifacts())
	outPath, err := renderer.RenderGatewayConfig(cfg, map[string]string{"OPENAI_API_KEY": "sk-from-resolver"})
	if err != nil {
		t.Fatalf("RenderGatewayConfig() error = %v", err)
	}

	resolved, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading resolved config: %v", err)
	}
	if !strings.Contains(string(resolved), "sk-from-resolver") {
		t.Error("resolver value not substituted")
	}
	if strings.Contains(string(resolved), "sk-from-process-env") {
		t.Error("process env value should be shadowed by resolver map")
	}
}

func TestRenderGatewayConfigFallsBackToProcessEnv(t *testing.T) {
	paths := testPaths(t)
	cfg := writeGatewayConfig(t, renderTestConfig)
	t.Setenv("OPENAI_API_KEY", "sk-from-process-env")

	renderer := NewRenderer(paths, testArtifacts())
	outPath, err := renderer.RenderGatewayConfig(cfg, nil)
	if err != nil {
		t.Fatalf("RenderGatewayConfig() error = %v", err)
	}

	resolved, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading resolved config: %v", err)
	}
	if !strings.Contains(string(resolved), "sk-from-process-env") {
		t.Error("process env value not substituted")
	}
}

func TestClusterForProvider(t *testing.T) {
	t.Run("default endpoint by kind", func(t *testing.T) {
		cluster, err := clusterForProvider(config.Provider{Name: "claude", Kind: "anthropic"})
		if err != nil {
			t.Fatalf("clusterForProvider() error = %v", err)
		}
		if cluster.Host != "api.anthropic.com" {
			t.Errorf("Host = %q, want api.anthropic.com", cluster.Host)
		}
		if cluster.Port != 443 || !cluster.TLS {
			t.Errorf("Port = %d TLS = %v, want 443/true", cluster.Port, cluster.TLS)
		}
		if cluster.Name != "provider_claude" {
			t.Errorf("Name = %q, want provider_claude", cluster.Name)
		}
	})

	t.Run("explicit base_url with port", func(t *testing.T) {
		cluster, err := clusterForProvider(config.Provider{
			Name:    "local",
			Kind:    "ollama",
			BaseURL: "http://127.0.0.1:11434",
		})
		if err != nil {
			t.Fatalf("clusterForProvider() error = %v", err)
		}
		if cluster.Host != "127.0.0.1" || cluster.Port != 11434 || cluster.TLS {
			t.Errorf("got %+v, want 127.0.0.1:11434 plaintext", cluster)
		}
	})

	t.Run("https without port defaults to 443", func(t *testing.T) {
		cluster, err := clusterForProvider(config.Provider{
			Name:    "custom",
			Kind:    "openai",
			BaseURL: "https://llm.internal.example",
		})
		if err != nil {
			t.Fatalf("clusterForProvider() error = %v", err)
		}
		if cluster.Port != 443 || !cluster.TLS {
			t.Errorf("Port = %d TLS = %v, want 443/true", cluster.Port, cluster.TLS)
		}
	})

	t.Run("unknown kind without base_url fails", func(t *testing.T) {
		_, err := clusterForProvider(config.Provider{Name: "mystery", Kind: "unknown"})
		if err == nil {
			t.Fatal("expected error for missing endpoint")
		}
	})

	t.Run("invalid base_url fails", func(t *testing.T) {
		_, err := clusterForProvider(config.Provider{Name: "bad", Kind: "openai", BaseURL: "://nope"})
		if err == nil {
			t.Fatal("expected error for invalid base_url")
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	cfg := &config.GatewayConfig{
		Listeners: []config.Listener{
			{Name: "ingress", Address: "127.0.0.1", Port: 4000},
			{Name: "egress", Address: "0.0.0.0", Port: 4001},
		},
	}

	endpoints := HealthEndpoints(cfg)
	if len(endpoints) != 3 {
		t.Fatalf("len(endpoints) = %d, want 3", len(endpoints))
	}

	if endpoints[0].Name != "listener/ingress" || endpoints[0].Port != 4000 {
		t.Errorf("endpoints[0] = %+v", endpoints[0])
	}
	if endpoints[1].Host != "127.0.0.1" {
		t.Errorf("wildcard bind should probe loopback, got %q", endpoints[1].Host)
	}
	last := endpoints[len(endpoints)-1]
	if last.Name != "control-plane" || last.Port != ControlPlaneHealthPort {
		t.Errorf("final endpoint = %+v, want control-plane on %d", last, ControlPlaneHealthPort)
	}
	for _, ep := range endpoints {
		if ep.Path != "/healthz" {
			t.Errorf("endpoint %s path = %q, want /healthz", ep.Name, ep.Path)
		}
	}
}
