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

// Package templates holds the embedded gateway config templates that
// `conduit init` scaffolds from.
package templates

import (
	"fmt"
	"regexp"
	"strings"

	"embed"
)

// Embed gateway config templates into the binary for offline availability
//
//go:embed *.yaml
var embeddedFS embed.FS

// accessKeyRefPattern matches $VAR access key references in a template.
var accessKeyRefPattern = regexp.MustCompile(`\$([A-Z][A-Z0-9_]*)`)

// Template represents metadata about an embedded gateway config template
type Template struct {
	Name        string
	Description string
	FilePath    string
}

// List returns all available embedded templates
func List() ([]Template, error) {
	entries, err := embeddedFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		templates = append(templates, Template{
			Name:        name,
			Description: getDescription(name),
			FilePath:    entry.Name(),
		})
	}

	return templates, nil
}

// Get returns the raw content of a specific template by name
func Get(name string) ([]byte, error) {
	// Validate template name to prevent path traversal (defense-in-depth)
	if name == "" || strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return nil, fmt.Errorf("invalid template name: %q", name)
	}
	filename := name + ".yaml"
	content, err := embeddedFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("template %q not found: %w", name, err)
	}
	return content, nil
}

// Exists checks if a template with the given name exists
func Exists(name string) bool {
	if name == "" || strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	filename := name + ".yaml"
	_, err := embeddedFS.ReadFile(filename)
	return err == nil
}

// AccessKeyRefs extracts the $VAR access key references appearing in a
// template, in order of first appearance, so init can seed a .env file
// with placeholders.
func AccessKeyRefs(content []byte) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, match := range accessKeyRefPattern.FindAllStringSubmatch(string(content), -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}

// getDescription returns a human-readable description for each template
func getDescription(name string) string {
	descriptions := map[string]string{
		"echo_gateway":       "Single listener routed to a local echo upstream, no credentials needed",
		"llm_router":         "Route OpenAI-compatible traffic across multiple model providers",
		"claude_code_router": "Anthropic-compatible endpoint for Claude Code with provider fallback",
		"ollama_local":       "Front a local Ollama instance, no credentials needed",
	}

	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "Gateway config template"
}
