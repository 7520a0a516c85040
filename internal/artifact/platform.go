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

package artifact

import (
	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

// platformSlugs maps GOOS/GOARCH pairs to the archive name suffix used
// by upstream proxy releases. darwin/amd64 is deliberately absent:
// upstream stopped publishing Intel macOS builds.
var platformSlugs = map[[2]string]string{
	{"linux", "amd64"}:  "linux-amd64",
	{"linux", "arm64"}:  "linux-arm64",
	{"darwin", "arm64"}: "darwin-arm64",
}

// PlatformSlug returns the release archive slug for an OS/architecture
// pair, or an UnsupportedPlatformError when no proxy build is
// published for it.
func PlatformSlug(goos, goarch string) (string, error) {
	slug, ok := platformSlugs[[2]string{goos, goarch}]
	if !ok {
		return "", &conduiterrors.UnsupportedPlatformError{OS: goos, Arch: goarch}
	}
	return slug, nil
}
