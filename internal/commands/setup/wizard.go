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

package setup

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/tombee/conduit/internal/config"
	"github.com/tombee/conduit/internal/templates"
)

// defaultTemplate is what --yes scaffolds without asking.
const defaultTemplate = "echo_gateway"

// runWizard walks the user through template choice and the one setting
// everyone wants to change (the listen port), returning the config to
// write.
func runWizard() ([]byte, error) {
	list, err := templates.List()
	if err != nil {
		return nil, err
	}

	options := make([]huh.Option[string], 0, len(list))
	for _, tmpl := range list {
		options = append(options, huh.NewOption(fmt.Sprintf("%s - %s", tmpl.Name, tmpl.Description), tmpl.Name))
	}

	selected := defaultTemplate
	port := "4000"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Gateway template").
				Description("Pick the starting point for your conduit.yaml").
				Options(options...).
				Value(&selected),
			huh.NewInput().
				Title("Listen port").
				Description("Where the gateway accepts traffic").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 65535 {
						return fmt.Errorf("enter a port between 1 and 65535")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	content, err := templates.Get(selected)
	if err != nil {
		return nil, err
	}
	return applyPort(content, port)
}

// applyPort rewrites the first listener's port. Round-tripping through
// the config type keeps the output in the shape validate expects.
func applyPort(content []byte, port string) ([]byte, error) {
	n, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	var cfg config.GatewayConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Listeners) > 0 {
		cfg.Listeners[0].Port = n
	}
	return yaml.Marshal(&cfg)
}
