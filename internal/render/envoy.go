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
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/template"

	"github.com/tombee/conduit/internal/artifact"
	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/pkg/errors"
)

//go:embed templates/envoy.yaml.tmpl
var envoyBootstrapTemplate string

const (
	// DefaultAdminPort is the proxy's local admin interface port.
	DefaultAdminPort = 9901

	// ControlPlaneHealthPort is where the control plane serves its
	// health endpoint. Fixed: the control plane binds it
	// unconditionally.
	ControlPlaneHealthPort = 10000
)

// defaultProviderEndpoints maps provider kinds to their public API
// endpoints, used when a provider omits base_url.
var defaultProviderEndpoints = map[string]string{
	"openai":    "https://api.openai.com",
	"anthropic": "https://api.anthropic.com",
	"mistral":   "https://api.mistral.ai",
	"deepseek":  "https://api.deepseek.com",
	"groq":      "https://api.groq.com",
	"gemini":    "https://generativelanguage.googleapis.com",
	"ollama":    "http://127.0.0.1:11434",
}

// Renderer writes the runtime config files for both managed processes.
type Renderer struct {
	paths     *config.Paths
	artifacts *artifact.BuildArtifacts
	adminPort int
}

// RenderResult reports where the rendered files were written.
type RenderResult struct {
	// ProxyConfigPath is the generated Envoy bootstrap.
	ProxyConfigPath string

	// GatewayConfigPath is the resolved config the control plane reads.
	GatewayConfigPath string
}

// NewRenderer creates a renderer writing into the given runtime paths,
// pointing the proxy's wasm filters at the given build outputs.
func NewRenderer(paths *config.Paths, artifacts *artifact.BuildArtifacts) *Renderer {
	return &Renderer{
		paths:     paths,
		artifacts: artifacts,
		adminPort: DefaultAdminPort,
	}
}

// WithAdminPort overrides the proxy admin port.
func (r *Renderer) WithAdminPort(port int) *Renderer {
	r.adminPort = port
	return r
}

// RenderAll renders both runtime config files. Any failure is wrapped
// in a ConfigRenderError carrying the user config path.
func (r *Renderer) RenderAll(cfg *config.GatewayConfig, env map[string]string) (*RenderResult, error) {
	proxyPath, err := r.RenderProxyConfig(cfg)
	if err != nil {
		return nil, &errors.ConfigRenderError{Path: cfg.Path, Cause: err}
	}

	gatewayPath, err := r.RenderGatewayConfig(cfg, env)
	if err != nil {
		return nil, &errors.ConfigRenderError{Path: cfg.Path, Cause: err}
	}

	return &RenderResult{
		ProxyConfigPath:   proxyPath,
		GatewayConfigPath: gatewayPath,
	}, nil
}

// bootstrapData is the template input for the proxy bootstrap.
type bootstrapData struct {
	AdminPort         int
	Listeners         []listenerData
	Clusters          []clusterData
	IngressFilterPath string
	EgressFilterPath  string
}

type listenerData struct {
	Name           string
	Address        string
	Port           int
	Routes         []routeData
	DefaultCluster string
}

type routeData struct {
	Prefix  string
	Cluster string
}

type clusterData struct {
	Name string
	Host string
	Port int
	TLS  bool
}

// RenderProxyConfig generates the Envoy bootstrap from the embedded
// template and writes it to the run directory.
func (r *Renderer) RenderProxyConfig(cfg *config.GatewayConfig) (string, error) {
	data, err := r.buildBootstrapData(cfg)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("envoy").Parse(envoyBootstrapTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing bootstrap template: %w", err)
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("executing bootstrap template: %w", err)
	}

	outPath := r.paths.RenderedProxyConfigPath()
	if err := os.MkdirAll(r.paths.RunDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	if err := os.WriteFile(outPath, rendered.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing proxy bootstrap: %w", err)
	}
	return outPath, nil
}

// buildBootstrapData flattens the gateway config into template input.
func (r *Renderer) buildBootstrapData(cfg *config.GatewayConfig) (*bootstrapData, error) {
	data := &bootstrapData{
		AdminPort:         r.adminPort,
		IngressFilterPath: r.artifacts.IngressFilter,
		EgressFilterPath:  r.artifacts.EgressFilter,
	}

	for _, provider := range cfg.Providers {
		cluster, err := clusterForProvider(provider)
		if err != nil {
			return nil, err
		}
		data.Clusters = append(data.Clusters, cluster)
	}

	// Prefix routes wire directly into the bootstrap; model-based
	// routes are the control plane's business.
	var routes []routeData
	for _, route := range cfg.Routes {
		if route.Prefix == "" {
			continue
		}
		routes = append(routes, routeData{
			Prefix:  route.Prefix,
			Cluster: clusterName(route.Provider),
		})
	}

	defaultCluster := ""
	if provider := cfg.DefaultProvider(); provider != nil {
		defaultCluster = clusterName(provider.Name)
	}

	for _, listener := range cfg.Listeners {
		data.Listeners = append(data.Listeners, listenerData{
			Name:           listener.Name,
			Address:        listener.Address,
			Port:           listener.Port,
			Routes:         routes,
			DefaultCluster: defaultCluster,
		})
	}

	return data, nil
}

// clusterName returns the bootstrap cluster name for a provider.
func clusterName(provider string) string {
	return "provider_" + provider
}

// clusterForProvider derives the upstream endpoint for a provider from
// its base URL, falling back to the kind's public endpoint.
func clusterForProvider(provider config.Provider) (clusterData, error) {
	baseURL := provider.BaseURL
	if baseURL == "" {
		baseURL = defaultProviderEndpoints[provider.Kind]
	}
	if baseURL == "" {
		return clusterData{}, fmt.Errorf("provider %q: no base_url and no default endpoint for kind %q", provider.Name, provider.Kind)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return clusterData{}, fmt.Errorf("provider %q: invalid base_url %q", provider.Name, baseURL)
	}

	tls := parsed.Scheme == "https"
	port := 80
	if tls {
		port = 443
	}
	if portStr := parsed.Port(); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return clusterData{}, fmt.Errorf("provider %q: invalid port in base_url %q", provider.Name, baseURL)
		}
	}

	return clusterData{
		Name: clusterName(provider.Name),
		Host: parsed.Hostname(),
		Port: port,
		TLS:  tls,
	}, nil
}
