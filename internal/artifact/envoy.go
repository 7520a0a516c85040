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
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/tombee/conduit/pkg/errors"
	"github.com/tombee/conduit/pkg/httpclient"
)

const (
	// EnvoyVersion is the pinned proxy release the gateway runs.
	EnvoyVersion = "v1.37.0"

	// defaultReleaseBaseURL hosts the upstream proxy release archives.
	defaultReleaseBaseURL = "https://github.com/tetratelabs/archive-envoy/releases/download"

	// downloadTimeout bounds the whole archive download. Archives are
	// tens of megabytes, so this is generous even on slow links.
	downloadTimeout = 10 * time.Minute
)

// EnvoyResolver downloads and caches the pinned proxy binary. The
// cached binary lives at <binDir>/envoy-<version> with a sibling
// .version marker file that is written only after the binary is fully
// installed.
type EnvoyResolver struct {
	binDir  string
	version string
	baseURL string
	client  *http.Client
	goos    string
	goarch  string
}

// NewEnvoyResolver creates a resolver caching into binDir.
func NewEnvoyResolver(binDir string) (*EnvoyResolver, error) {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = downloadTimeout
	cfg.UserAgent = "conduit-artifact-resolver/1.0"

	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating download client")
	}

	return &EnvoyResolver{
		binDir:  binDir,
		version: EnvoyVersion,
		baseURL: defaultReleaseBaseURL,
		client:  client,
		goos:    runtime.GOOS,
		goarch:  runtime.GOARCH,
	}, nil
}

// WithVersion overrides the pinned proxy version.
func (r *EnvoyResolver) WithVersion(version string) *EnvoyResolver {
	r.version = version
	return r
}

// WithBaseURL overrides the release download host.
func (r *EnvoyResolver) WithBaseURL(baseURL string) *EnvoyResolver {
	r.baseURL = strings.TrimRight(baseURL, "/")
	return r
}

// WithHTTPClient sets a custom HTTP client.
func (r *EnvoyResolver) WithHTTPClient(client *http.Client) *EnvoyResolver {
	r.client = client
	return r
}

// WithPlatform overrides the host platform used to pick the archive.
func (r *EnvoyResolver) WithPlatform(goos, goarch string) *EnvoyResolver {
	r.goos = goos
	r.goarch = goarch
	return r
}

// BinaryPath returns where the cached proxy binary lives for the
// resolver's version, whether or not it exists yet.
func (r *EnvoyResolver) BinaryPath() string {
	return filepath.Join(r.binDir, "envoy-"+r.version)
}

// markerPath is the cache-validity marker for BinaryPath.
func (r *EnvoyResolver) markerPath() string {
	return r.BinaryPath() + ".version"
}

// IsCached reports whether a completed install of the pinned version
// is present. Only the marker counts; a binary without a marker is a
// leftover partial install.
func (r *EnvoyResolver) IsCached() bool {
	_, err := os.Stat(r.markerPath())
	return err == nil
}

// releaseURL builds the archive URL for the resolver's platform.
func (r *EnvoyResolver) releaseURL() (string, error) {
	slug, err := PlatformSlug(r.goos, r.goarch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/envoy-%s-%s.tar.xz", r.baseURL, r.version, r.version, slug), nil
}

// Resolve returns the path to a usable proxy binary, downloading and
// installing it first when the cache is cold.
func (r *EnvoyResolver) Resolve(ctx context.Context) (string, error) {
	if r.IsCached() {
		slog.Debug("proxy binary cached", "path", r.BinaryPath(), "version", r.version)
		return r.BinaryPath(), nil
	}

	url, err := r.releaseURL()
	if err != nil {
		return "", err
	}

	slog.Info("downloading proxy binary", "version", r.version, "url", url)
	if err := r.download(ctx, url); err != nil {
		return "", err
	}
	slog.Info("proxy binary installed", "path", r.BinaryPath())

	return r.BinaryPath(), nil
}

// download fetches the release archive and installs the proxy binary
// from it. The binary is written to a temp file, made executable, and
// renamed into place before the marker is written, so a crash at any
// point leaves either no visible binary or a complete one.
func (r *EnvoyResolver) download(ctx context.Context, url string) error {
	if err := os.MkdirAll(r.binDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating cache directory %s", r.binDir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "building request", Cause: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "fetching archive", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &errors.ArtifactDownloadError{
			URL:    url,
			Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	tmp, err := os.CreateTemp(r.binDir, ".envoy-download-*")
	if err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "creating temp file", Cause: err}
	}
	tmpPath := tmp.Name()

	// Remove the partial file on any failure past this point.
	installed := false
	defer func() {
		tmp.Close()
		if !installed {
			os.Remove(tmpPath)
		}
	}()

	if err := extractEnvoy(resp.Body, tmp); err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "extracting archive", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "flushing binary", Cause: err}
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "marking binary executable", Cause: err}
	}
	if err := os.Rename(tmpPath, r.BinaryPath()); err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "installing binary", Cause: err}
	}
	installed = true

	// Marker last: its presence certifies a complete install.
	if err := os.WriteFile(r.markerPath(), []byte(r.version+"\n"), 0o644); err != nil {
		return &errors.ArtifactDownloadError{URL: url, Reason: "writing version marker", Cause: err}
	}
	return nil
}

// extractEnvoy streams a .tar.xz archive and writes the proxy binary
// member to dst. The archive nests the binary under a versioned
// directory, so the member is matched by its bin/envoy suffix.
func extractEnvoy(archive io.Reader, dst io.Writer) error {
	xzReader, err := xz.NewReader(archive)
	if err != nil {
		return fmt.Errorf("opening xz stream: %w", err)
	}

	tarReader := tar.NewReader(xzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return fmt.Errorf("archive does not contain a bin/envoy member")
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		if header.Typeflag != tar.TypeReg || !strings.HasSuffix(header.Name, "bin/envoy") {
			continue
		}

		if _, err := io.Copy(dst, tarReader); err != nil {
			return fmt.Errorf("extracting %s: %w", header.Name, err)
		}
		return nil
	}
}
