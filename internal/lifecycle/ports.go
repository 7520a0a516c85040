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

package lifecycle

import (
	"fmt"
	"net"
	"os"
	"strings"

	conduiterrors "github.com/tombee/conduit/pkg/errors"
)

// bindConflictMarker is the substring the proxy and the control plane
// both print when a listener socket is already taken. Scanning for it
// covers races where the port was free at probe time but bound by the
// time the child started.
const bindConflictMarker = "address already in use"

// ProbePort attempts a loopback bind on the given port and returns a
// PortConflictError if the port is taken. The listener is closed
// immediately, so a conflict can still appear at launch time; the probe
// exists to catch the common case before any process is spawned.
func ProbePort(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return &conduiterrors.PortConflictError{Port: port, Cause: err}
	}
	listener.Close()
	return nil
}

// ProbePorts probes every port and returns the first conflict found.
func ProbePorts(ports []int) error {
	for _, port := range ports {
		if err := ProbePort(port); err != nil {
			return err
		}
	}
	return nil
}

// ScanLogForBindConflict reads a process log file and reports whether
// it contains a bind failure. Used after a child dies during startup
// to distinguish a port conflict, which is retryable, from every other
// crash, which is not. A missing or unreadable log reports no
// conflict.
func ScanLogForBindConflict(logPath string) bool {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), bindConflictMarker)
}
