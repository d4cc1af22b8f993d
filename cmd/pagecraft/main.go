/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pagecraft/internal/backend"
	"pagecraft/internal/config"
	"pagecraft/internal/crash"
	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/session"
	"pagecraft/internal/storage"
	"pagecraft/internal/telemetry"
	"pagecraft/internal/ui"
	"pagecraft/internal/version"
)

func usage() {
	fmt.Println("Pagecraft")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagecraft version|-v|--version           Show version")
	fmt.Println("  pagecraft init <dir> <name> [w h]        Create a project with one page of w x h (default 800 x 600)")
	fmt.Println("  pagecraft open <dir> [--watch]           Open project at <dir> and print summary; --watch reloads on external changes")
	fmt.Println("  pagecraft replay <dir> <script.json>     Replay a recorded pointer session and print the resulting page")
	fmt.Println("  pagecraft serve <dir> [addr]             Serve the project's elements over HTTP (default :8080)")
	fmt.Println("  pagecraft ui [<dir>]                     Launch desktop UI (build with -tags fyne for full UI)")
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func main() {
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
	}
	// config.Load already applied the PAGECRAFT_LOG_* overrides
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfg.General.TelemetryOptIn {
		tc := telemetry.FromEnv()
		tc.OptIn = true
		telemetry.NewDefault(tc)
	}

	guard := &crash.Guard{}
	defer crash.Recover(guard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer telemetry.Shutdown(context.Background())

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
	case "init":
		if len(args) < 4 {
			fmt.Println("init requires <dir> and <name>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		w, h := 800.0, 600.0
		if len(args) >= 6 {
			if _, err := fmt.Sscanf(args[4]+" "+args[5], "%g %g", &w, &h); err != nil || w <= 0 || h <= 0 {
				fmt.Println("init: page size must be two positive numbers")
				os.Exit(2)
			}
		}
		l.Info("init project", slog.String("root", abs), slog.String("name", args[3]))
		p := domain.Project{Name: args[3], Pages: []domain.Page{{ID: uuid.NewString(), Name: "Page 1", Width: w, Height: h, Elements: []domain.CanvasElement{}}}}
		ph, err := storage.InitProject(abs, p)
		if err != nil {
			fail(l, "init failed", err)
		}
		guard.Project = ph
		fmt.Println("Created project at", abs)
	case "open":
		if len(args) < 3 {
			fmt.Println("open requires <dir>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		s, err := session.Open(ctx, abs, session.Options{Config: cfg, Token: token})
		if err != nil {
			fail(l, "open failed", err)
		}
		guard.Project, guard.Live = s.Handle, s.Board.Project
		printSummary(s)
		if len(args) >= 4 && args[3] == "--watch" {
			fmt.Println("Watching for changes, press Ctrl+C to stop")
			werr := storage.WatchManifest(ctx, abs, 300*time.Millisecond, func() {
				changed, err := s.Reload()
				if err != nil {
					l.Warn("reload failed", slog.Any("err", err))
					return
				}
				if changed {
					printSummary(s)
				}
			})
			if werr != nil {
				l.Error("watch failed", slog.Any("err", werr))
			}
		}
		if err := s.Close(context.Background()); err != nil {
			fail(l, "close failed", err)
		}
	case "replay":
		if len(args) < 4 {
			fmt.Println("replay requires <dir> and <script.json>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		sc, err := session.LoadScript(args[3])
		if err != nil {
			fail(l, "load script failed", err)
		}
		s, err := session.Open(ctx, abs, session.Options{Config: cfg, Token: token})
		if err != nil {
			fail(l, "open failed", err)
		}
		guard.Project, guard.Live = s.Handle, s.Board.Project
		res, err := s.Replay(ctx, sc)
		if cerr := s.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			fail(l, "replay failed", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	case "serve":
		if len(args) < 3 {
			fmt.Println("serve requires <dir>")
			usage()
			os.Exit(2)
		}
		abs, _ := filepath.Abs(args[2])
		addr := ":8080"
		if len(args) >= 4 {
			addr = args[3]
		}
		ph, err := storage.Open(abs)
		if err != nil {
			fail(l, "open failed", err)
		}
		guard.Project = ph
		if spec := cfg.General.BackupPrune; spec != "" && cfg.General.BackupKeep > 0 {
			stopPrune, err := storage.ScheduleBackupPruning(abs, spec, cfg.General.BackupKeep)
			if err != nil {
				l.Warn("backup pruning disabled", slog.Any("err", err))
			} else {
				defer stopPrune()
			}
		}
		if err := backend.Serve(ctx, addr, backend.Handler(storage.NewManifestStore(ph), os.Getenv("PAGECRAFT_AUTH_SECRET"))); err != nil {
			fail(l, "serve failed", err)
		}
	case "ui":
		var dir string
		if len(args) >= 3 {
			dir = args[2]
		}
		if err := ui.Run(dir); err != nil {
			fmt.Println("Error:", err)
			if errors.Is(err, ui.ErrUnavailable) {
				os.Exit(2)
			}
			os.Exit(1)
		}
	default:
		usage()
	}
}

func printSummary(s *session.Session) {
	p := s.Board.Project()
	fmt.Printf("Project: %s\n", p.Name)
	fmt.Println("Root:", s.Handle.Root)
	if s.Handle.FromBackup {
		fmt.Println("Note: manifest was unreadable, loaded from the latest backup")
	}
	fmt.Printf("Backend: %s\n", s.Kind())
	for _, pg := range p.Pages {
		fmt.Printf("  page %s %gx%g, %d elements\n", pg.ID, pg.Width, pg.Height, len(pg.Elements))
	}
}
