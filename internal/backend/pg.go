/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore is a domain.ElementStore backed by PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// OpenPG connects to dsn, pings it and applies the embedded migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// ImportProject upserts every page and element of proj.
func (s *PGStore) ImportProject(ctx context.Context, proj domain.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for i, pg := range proj.Pages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO pages(id, name, width, height, ord) VALUES($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, width=EXCLUDED.width, height=EXCLUDED.height, ord=EXCLUDED.ord`,
			pg.ID, pg.Name, pg.Width, pg.Height, i); err != nil {
			return fmt.Errorf("upsert page %s: %w", pg.ID, err)
		}
		for z, el := range pg.Elements {
			var cx, cy, cz any
			if el.Crop != nil {
				cx, cy, cz = el.Crop.X, el.Crop.Y, el.Crop.Zoom
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO elements(id, page_id, type, z, x, y, width, height, content, image_ref, crop_x, crop_y, crop_zoom)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET page_id=EXCLUDED.page_id, type=EXCLUDED.type, z=EXCLUDED.z, x=EXCLUDED.x, y=EXCLUDED.y,
	width=EXCLUDED.width, height=EXCLUDED.height, content=EXCLUDED.content, image_ref=EXCLUDED.image_ref,
	crop_x=EXCLUDED.crop_x, crop_y=EXCLUDED.crop_y, crop_zoom=EXCLUDED.crop_zoom, updated_at=now()`,
				el.ID, pg.ID, string(el.Type), z, el.Position.X, el.Position.Y, el.Position.Width, el.Position.Height,
				el.Content, el.ImageRef, cx, cy, cz); err != nil {
				return fmt.Errorf("upsert element %s: %w", el.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *PGStore) GetElement(ctx context.Context, id string) (domain.CanvasElement, error) {
	var (
		el         domain.CanvasElement
		typ        string
		cx, cy, cz sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, type, x, y, width, height, content, image_ref, crop_x, crop_y, crop_zoom FROM elements WHERE id=$1`, id).
		Scan(&el.ID, &typ, &el.Position.X, &el.Position.Y, &el.Position.Width, &el.Position.Height, &el.Content, &el.ImageRef, &cx, &cy, &cz)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.CanvasElement{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	case err != nil:
		return domain.CanvasElement{}, err
	}
	el.Type = domain.ElementType(typ)
	if cz.Valid {
		el.Crop = &domain.CropData{X: cx.Float64, Y: cy.Float64, Zoom: cz.Float64}
	}
	return el, nil
}

func (s *PGStore) SetElementPosition(ctx context.Context, id string, pos domain.CanvasPosition) error {
	return s.exec(ctx, id, `UPDATE elements SET x=$2, y=$3, width=$4, height=$5, updated_at=now() WHERE id=$1`,
		pos.X, pos.Y, pos.Width, pos.Height)
}

func (s *PGStore) SetElementCrop(ctx context.Context, id string, crop domain.CropData) error {
	return s.exec(ctx, id, `UPDATE elements SET crop_x=$2, crop_y=$3, crop_zoom=$4, updated_at=now() WHERE id=$1`,
		crop.X, crop.Y, crop.Zoom)
}

func (s *PGStore) SetElementContent(ctx context.Context, id string, content string) error {
	return s.exec(ctx, id, `UPDATE elements SET content=$2, updated_at=now() WHERE id=$1`, content)
}

func (s *PGStore) exec(ctx context.Context, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// applyMigrations applies embedded SQL migrations in filename order.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1,$2) ON CONFLICT (version) DO NOTHING`, version, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
