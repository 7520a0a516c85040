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
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo contains information about a running process.
type ProcessInfo struct {
	PID     int
	Running bool
	Command string
}

// ProcessMatches reports whether the process with the given PID has the
// expected binary name in its command line. This prevents sending signals to
// an unrelated process that reused a PID from a stale registry entry.
func ProcessMatches(pid int, binaryName string) bool {
	if pid <= 0 || binaryName == "" {
		return false
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}

	if cmdline, err := proc.Cmdline(); err == nil && cmdline != "" {
		return strings.Contains(cmdline, binaryName)
	}

	// Fall back to the executable name when cmdline is unreadable.
	name, err := proc.Name()
	if err != nil {
		return false
	}
	return strings.Contains(name, binaryName)
}

// GetProcessInfo returns information about the process with the given PID.
func GetProcessInfo(pid int) (*ProcessInfo, error) {
	info := &ProcessInfo{
		PID:     pid,
		Running: IsProcessRunning(pid),
	}

	if info.Running {
		proc, err := process.NewProcess(int32(pid))
		if err != nil {
			info.Command = "<unknown>"
			return info, nil
		}
		cmd, err := proc.Cmdline()
		if err != nil || cmd == "" {
			info.Command = "<unknown>"
		} else {
			info.Command = cmd
		}
	}

	return info, nil
}
