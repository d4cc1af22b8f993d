/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file plus an autosave of the open project.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/storage"
	"pagecraft/internal/telemetry"
	"pagecraft/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Guard describes what to save when the process panics. Live returns the in-memory
// project including optimistic edits that were not persisted yet; when nil the
// handle's project is saved.
type Guard struct {
	Project *storage.ProjectHandle
	Live    func() domain.Project
}

// Recover captures a panic, logs it with a stacktrace, writes an error report
// and a crash snapshot of the project, then exits with status 2.
//
// Usage: defer crash.Recover(&crash.Guard{Project: ph, Live: board.Project})
func Recover(g *Guard) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var ph *storage.ProjectHandle
	if g != nil {
		ph = g.Project
	}
	reportPath, _ := writeReport(ph, r, stack)
	if path, err := g.snapshot(); err != nil {
		l.Error("autosave crash snapshot failed", slog.Any("err", err))
	} else if path != "" {
		l.Info("autosave crash snapshot written", slog.String("path", path))
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func (g *Guard) snapshot() (path string, err error) {
	if g == nil || g.Project == nil {
		return "", nil
	}
	ph := *g.Project
	if g.Live != nil {
		// Live may itself be what panicked
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("live snapshot: %v", r)
				}
			}()
			ph.Project = g.Live()
		}()
		if err != nil {
			return "", err
		}
	}
	return storage.AutosaveCrashSnapshot(&ph)
}

func writeReport(ph *storage.ProjectHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if ph != nil && ph.Root != "" {
		dir = filepath.Join(ph.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Pagecraft Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ph != nil {
		_, _ = fmt.Fprintf(&buf, "ProjectRoot: %s\n", ph.Root)
		_, _ = fmt.Fprintf(&buf, "Manifest: %s\n", ph.ManifestPath)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}

	// opt-in only; no-op without a crash URL
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
