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

package supervisor

import (
	"context"
	"os"

	"github.com/tombee/conduit/internal/artifact"
	"github.com/tombee/conduit/internal/lifecycle"
	"github.com/tombee/conduit/internal/render"
)

// EnvEnvoyVersion overrides the pinned proxy version, mainly for
// testing against release candidates.
const EnvEnvoyVersion = "CONDUIT_ENVOY_VERSION"

// nativeArtifacts resolves artifacts for the native (non-container)
// deployment mode: a downloaded proxy and in-repo build outputs.
type nativeArtifacts struct {
	resolver *artifact.EnvoyResolver
	startDir string
}

func (n *nativeArtifacts) ProxyBinary(ctx context.Context) (string, error) {
	return n.resolver.Resolve(ctx)
}

func (n *nativeArtifacts) BuildArtifacts() (*artifact.BuildArtifacts, error) {
	repoRoot, err := artifact.LocateRepoRoot(n.startDir)
	if err != nil {
		return nil, err
	}
	return artifact.ResolveBuildArtifacts(repoRoot)
}

// NewNativeCollaborators wires the production collaborator set: the
// downloading artifact resolver, the template renderer, the detaching
// spawner, the HTTP health prober, and a shutdown controller over the
// invocation's registry.
func NewNativeCollaborators(sctx *Context) (Collaborators, error) {
	resolver, err := artifact.NewEnvoyResolver(sctx.Paths.BinDir)
	if err != nil {
		return Collaborators{}, err
	}
	if version := os.Getenv(EnvEnvoyVersion); version != "" {
		resolver = resolver.WithVersion(version)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return Collaborators{}, err
	}

	return Collaborators{
		Artifacts: &nativeArtifacts{resolver: resolver, startDir: cwd},
		NewRenderer: func(builds *artifact.BuildArtifacts) Renderer {
			return render.NewRenderer(sctx.Paths, builds)
		},
		Daemonizer: lifecycle.NewSpawner(),
		Prober:     lifecycle.NewHealthProber(),
		Shutdown:   NewShutdownController(sctx),
	}, nil
}
