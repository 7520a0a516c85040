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

// Package logtail streams the managed processes' log files to a
// terminal. It backs `conduit logs` and the foreground mode of
// `conduit up`: the supervisor never parses these logs, it only
// relays them.
package logtail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultTailLines is how much history Dump prints per source.
const DefaultTailLines = 50

// defaultPollInterval backs up fsnotify on filesystems that coalesce
// or drop write events.
const defaultPollInterval = 500 * time.Millisecond

// Source is one log file to stream, labelled so interleaved output
// stays attributable.
type Source struct {
	Label string
	Path  string
}

// Tailer streams one or more log files to a writer.
type Tailer struct {
	sources []Source
	out     io.Writer
	logger  *slog.Logger
	poll    time.Duration

	// offsets tracks how far each source has been relayed; carry
	// tracks a trailing partial line per source.
	offsets map[string]int64
	carry   map[string]string
}

// New creates a tailer writing to out. Output lines are prefixed with
// the source label when more than one source is given.
func New(out io.Writer, sources ...Source) *Tailer {
	return &Tailer{
		sources: sources,
		out:     out,
		logger:  slog.Default(),
		poll:    defaultPollInterval,
		offsets: make(map[string]int64),
		carry:   make(map[string]string),
	}
}

// WithLogger sets the logger for watcher diagnostics.
func (t *Tailer) WithLogger(logger *slog.Logger) *Tailer {
	t.logger = logger
	return t
}

// WithPollInterval overrides the fallback poll cadence.
func (t *Tailer) WithPollInterval(interval time.Duration) *Tailer {
	t.poll = interval
	return t
}

// Dump writes the last n lines of every source. Missing files are
// skipped: a process that never launched simply has no log yet.
func (t *Tailer) Dump(n int) error {
	for _, src := range t.sources {
		lines, err := LastLines(src.Path, n)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", src.Path, err)
		}
		for _, line := range lines {
			t.emit(src, line)
		}
		// Dump establishes the starting offset so a subsequent Follow
		// does not repeat history.
		if info, err := os.Stat(src.Path); err == nil {
			t.offsets[src.Path] = info.Size()
		}
	}
	return nil
}

// Follow streams appended log content until ctx is cancelled. It
// watches the log directories with fsnotify and polls as a fallback,
// so it keeps working when a process recreates or truncates its log.
func (t *Tailer) Follow(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	for _, src := range t.sources {
		dir := filepath.Dir(src.Path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	// Catch anything written between Dump and the watch starting.
	t.drainAll()

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.drainAll()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			for _, src := range t.sources {
				if src.Path == event.Name {
					t.drain(src)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("log watcher error", "error", err)
		}
	}
}

// drainAll relays unread content from every source.
func (t *Tailer) drainAll() {
	for _, src := range t.sources {
		t.drain(src)
	}
}

// drain relays any bytes beyond the source's offset. A file smaller
// than the recorded offset was truncated by a relaunch; start over
// from the top.
func (t *Tailer) drain(src Source) {
	f, err := os.Open(src.Path)
	if err != nil {
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return
	}
	offset := t.offsets[src.Path]
	if info.Size() < offset {
		offset = 0
		t.carry[src.Path] = ""
	}
	if info.Size() == offset {
		return
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return
	}
	t.offsets[src.Path] = offset + int64(len(data))

	text := t.carry[src.Path] + string(data)
	lines := strings.Split(text, "\n")
	t.carry[src.Path] = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		t.emit(src, line)
	}
}

func (t *Tailer) emit(src Source, line string) {
	if len(t.sources) > 1 {
		fmt.Fprintf(t.out, "%-8s | %s\n", src.Label, line)
		return
	}
	fmt.Fprintln(t.out, line)
}

// LastLines returns up to n trailing lines of the file at path.
func LastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
