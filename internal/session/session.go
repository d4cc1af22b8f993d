/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session assembles an editing session: the project on disk, the
// in-memory board, the configured element store, the commit bridge with its
// undo history, and the gesture controller on top.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"pagecraft/internal/backend"
	"pagecraft/internal/board"
	"pagecraft/internal/commit"
	"pagecraft/internal/config"
	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	applog "pagecraft/internal/log"
	"pagecraft/internal/storage"
	"pagecraft/internal/telemetry"
	"pagecraft/internal/undo"
	"pagecraft/internal/viewport"
)

// Options configures Open. Zero values are fine for headless use.
type Options struct {
	Config   config.AppConfig
	Token    string
	Host     interact.Host
	Selector domain.Selector
	Reporter domain.ErrorReporter
	Clock    commit.Clock
}

// Session is one open project.
type Session struct {
	Handle     *storage.ProjectHandle
	Board      *board.Board
	Bridge     *commit.Bridge
	History    *undo.ElementHistory
	Controller *interact.Controller

	kind    string
	store   domain.ElementStore
	closers []func() error
	log     *slog.Logger
}

// Open loads the project at root and wires the store selected by
// opts.Config.Backend.Kind. The first page, if any, becomes current.
func Open(ctx context.Context, root string, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg.ConfigVersion == 0 {
		cfg = config.Defaults()
	}
	l := applog.WithOperation(applog.WithComponent("session"), "open").With(slog.String("root", root))
	ph, err := storage.Open(root)
	if err != nil {
		return nil, err
	}
	if ph.FromBackup {
		l.Warn("manifest unreadable, opened latest backup")
	}
	s := &Session{
		Handle: ph,
		Board:  board.New(ph.Project),
		kind:   cfg.Backend.Kind,
		log:    applog.WithComponent("session"),
	}
	if err := s.openStore(ctx, cfg, opts.Token); err != nil {
		s.closeStores()
		return nil, err
	}
	if spec := cfg.General.BackupPrune; spec != "" && cfg.General.BackupKeep > 0 {
		stop, err := storage.ScheduleBackupPruning(root, spec, cfg.General.BackupKeep)
		if err != nil {
			l.Warn("backup pruning disabled", slog.Any("err", err))
		} else {
			s.closers = append(s.closers, func() error { stop(); return nil })
		}
	}

	s.History = undo.NewElementHistory(undo.Config{
		MaxBytes:    8 << 20,
		MaxPerPage:  200,
		MinInterval: time.Second,
	})
	reporter := opts.Reporter
	if reporter == nil {
		reporter = domain.ErrorReporterFunc(func(err error) {
			s.log.Error("change not saved", slog.Any("err", err))
		})
	}
	s.Bridge = commit.New(s.Board, s.store, commit.Options{
		Delay:    cfg.Editor.Debounce(),
		Timeout:  cfg.Backend.Timeout(),
		Clock:    opts.Clock,
		History:  s.History,
		Reporter: reporter,
	})
	s.Controller = interact.New(s.Board, countingCommitter{s.Bridge}, opts.Selector, opts.Host, ControllerConfig(cfg.Editor))
	if len(ph.Project.Pages) > 0 {
		s.Controller.SetPage(ph.Project.Pages[0].ID)
	}
	telemetry.Event("session_open", map[string]any{"backend": s.kind, "pages": len(ph.Project.Pages)})
	l.Info("session ready", slog.String("backend", s.kind), slog.Int("pages", len(ph.Project.Pages)))
	return s, nil
}

// ControllerConfig maps the editor section of the user config.
func ControllerConfig(e config.EditorConfig) interact.Config {
	return interact.Config{
		ReadOnly:        e.ReadOnly,
		LockImageAspect: e.LockImageAspect,
		SmartGuides:     e.SmartGuides,
		Grid:            e.GridSize,
		MinImageSize:    e.MinImageSize,
		MinTextSize:     e.MinTextSize,
		Viewport: viewport.Options{
			MinScale:     e.MinScale,
			MaxScale:     e.MaxScale,
			PanThreshold: e.PanThreshold,
			Enabled:      e.GesturesEnabled,
		},
	}
}

func (s *Session) openStore(ctx context.Context, cfg config.AppConfig, token string) error {
	switch cfg.Backend.Kind {
	case "", config.BackendManifest:
		s.kind = config.BackendManifest
		s.store = storage.NewManifestStore(s.Handle)
	case config.BackendSQLite:
		if rebuilt, err := storage.DetectAndRebuildIndex(ctx, s.Handle.Root, s.Handle.Project); err != nil {
			return fmt.Errorf("check index: %w", err)
		} else if rebuilt {
			s.log.Warn("element index rebuilt from manifest")
		}
		st, err := storage.OpenSQLiteStore(s.Handle.Root)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, st.Close)
		// the manifest is authoritative when a session starts
		if err := st.ImportProject(ctx, s.Handle.Project); err != nil {
			return fmt.Errorf("import into index: %w", err)
		}
		s.store = st
	case config.BackendHTTP:
		s.store = backend.NewClient(cfg.Backend.BaseURL, token, cfg.Backend.Timeout())
	case config.BackendPostgres:
		if cfg.Backend.DSN == "" {
			return errors.New("postgres backend requires backend.dsn")
		}
		pg, err := backend.OpenPG(ctx, cfg.Backend.DSN)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pg.Close)
		if err := pg.ImportProject(ctx, s.Handle.Project); err != nil {
			return fmt.Errorf("import into postgres: %w", err)
		}
		s.store = pg
	default:
		return fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
	return nil
}

// Kind returns the backend kind in use.
func (s *Session) Kind() string { return s.kind }

// Store returns the element store changes are written to.
func (s *Session) Store() domain.ElementStore { return s.store }

// Reload re-reads the manifest after an external change. It skips the
// reload while the user is mid-gesture or writes are pending, and when the
// file matches the board. It reports whether the board was replaced.
func (s *Session) Reload() (bool, error) {
	if s.Controller.Mode() != interact.ModeIdle || s.Bridge.Busy() {
		return false, nil
	}
	next := *s.Handle
	if err := storage.Reload(&next); err != nil {
		return false, err
	}
	if sameProject(next.Project, s.Board.Project()) {
		return false, nil
	}
	if ms, ok := s.store.(*storage.ManifestStore); ok {
		ms.SetProject(next.Project)
	} else {
		s.Handle.Project = next.Project
	}
	s.Board.Replace(next.Project)
	page := s.Controller.PageID()
	if _, ok := s.Board.Page(page); !ok && len(next.Project.Pages) > 0 {
		page = next.Project.Pages[0].ID
	}
	s.Controller.SetPage(page)
	s.log.Info("project reloaded from disk")
	return true, nil
}

func sameProject(a, b domain.Project) bool {
	ja, err1 := json.Marshal(a)
	jb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ja) == string(jb)
}

// Close ends any interaction, flushes pending writes and releases stores.
// Remote backends also refresh the local manifest so the project opens
// with the latest state offline.
func (s *Session) Close(ctx context.Context) error {
	s.Controller.Close()
	err := s.Bridge.Close(ctx)
	if s.kind != config.BackendManifest {
		s.Handle.Project = s.Board.Project()
		if serr := storage.Save(s.Handle); serr != nil && err == nil {
			err = serr
		}
	}
	if cerr := s.closeStores(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Session) closeStores() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// countingCommitter feeds anonymous usage counters; it changes nothing else.
type countingCommitter struct{ *commit.Bridge }

func (c countingCommitter) Commit(ch commit.Change) error {
	telemetry.Count("commit." + changeKind(ch))
	return c.Bridge.Commit(ch)
}

func (c countingCommitter) Submit(ch commit.Change) error {
	telemetry.Count("commit." + changeKind(ch))
	return c.Bridge.Submit(ch)
}

func (c countingCommitter) CommitNow(ctx context.Context, ch commit.Change) error {
	telemetry.Count("commit." + changeKind(ch))
	return c.Bridge.CommitNow(ctx, ch)
}

func changeKind(ch commit.Change) string {
	switch {
	case ch.Content != nil:
		return "content"
	case ch.Crop != nil:
		return "crop"
	default:
		return "position"
	}
}
