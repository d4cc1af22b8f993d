/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pagecraft/internal/domain"
)

// language=SQL
// dialect=SQLite
const selectElementSQL = `SELECT id, page_id, type, x, y, width, height, content, image_ref, crop_x, crop_y, crop_zoom
FROM elements WHERE id = ?`

// language=SQL
// dialect=SQLite
const selectPageElementsSQL = `SELECT id, page_id, type, x, y, width, height, content, image_ref, crop_x, crop_y, crop_zoom
FROM elements WHERE page_id = ? ORDER BY z`

// language=SQL
// dialect=SQLite
const updatePositionSQL = `UPDATE elements SET x = ?, y = ?, width = ?, height = ?, updated_at = ? WHERE id = ?`

// language=SQL
// dialect=SQLite
const updateCropSQL = `UPDATE elements SET crop_x = ?, crop_y = ?, crop_zoom = ?, updated_at = ? WHERE id = ?`

// language=SQL
// dialect=SQLite
const updateContentSQL = `UPDATE elements SET content = ?, updated_at = ? WHERE id = ?`

// SQLiteStore is a domain.ElementStore backed by the per-project SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the element database of a project.
func OpenSQLiteStore(projectRoot string) (*SQLiteStore, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ImportProject replaces all pages and elements with those of proj.
func (s *SQLiteStore) ImportProject(ctx context.Context, proj domain.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{"DELETE FROM elements;", "DELETE FROM pages;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	insPage, err := tx.PrepareContext(ctx, `INSERT INTO pages(id, name, width, height, ord) VALUES(?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare page insert: %w", err)
	}
	defer insPage.Close()
	insEl, err := tx.PrepareContext(ctx, `INSERT INTO elements(id, page_id, type, z, x, y, width, height, content, image_ref, crop_x, crop_y, crop_zoom, updated_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare element insert: %w", err)
	}
	defer insEl.Close()
	now := stamp()
	for i, pg := range proj.Pages {
		if _, err := insPage.ExecContext(ctx, pg.ID, pg.Name, pg.Width, pg.Height, i); err != nil {
			return fmt.Errorf("insert page %s: %w", pg.ID, err)
		}
		for z, el := range pg.Elements {
			cx, cy, cz := cropColumns(el.Crop)
			if _, err := insEl.ExecContext(ctx, el.ID, pg.ID, string(el.Type), z,
				el.Position.X, el.Position.Y, el.Position.Width, el.Position.Height,
				el.Content, el.ImageRef, cx, cy, cz, now); err != nil {
				return fmt.Errorf("insert element %s: %w", el.ID, err)
			}
		}
	}
	return tx.Commit()
}

// PageElements returns the elements of a page in z-order.
func (s *SQLiteStore) PageElements(ctx context.Context, pageID string) ([]domain.CanvasElement, error) {
	rows, err := s.db.QueryContext(ctx, selectPageElementsSQL, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CanvasElement
	for rows.Next() {
		el, _, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, rows.Err()
}

// LoadProject rebuilds a project from the stored pages and elements.
// Style maps are not stored and come back empty.
func (s *SQLiteStore) LoadProject(ctx context.Context, name string) (domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, COALESCE(name, ''), width, height FROM pages ORDER BY ord`)
	if err != nil {
		return domain.Project{}, err
	}
	proj := domain.Project{Name: name}
	for rows.Next() {
		var pg domain.Page
		if err := rows.Scan(&pg.ID, &pg.Name, &pg.Width, &pg.Height); err != nil {
			_ = rows.Close()
			return domain.Project{}, err
		}
		proj.Pages = append(proj.Pages, pg)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Project{}, err
	}
	for i := range proj.Pages {
		els, err := s.PageElements(ctx, proj.Pages[i].ID)
		if err != nil {
			return domain.Project{}, err
		}
		proj.Pages[i].Elements = els
	}
	return proj, nil
}

func (s *SQLiteStore) GetElement(ctx context.Context, id string) (domain.CanvasElement, error) {
	el, _, err := scanElement(s.db.QueryRowContext(ctx, selectElementSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CanvasElement{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return el, err
}

func (s *SQLiteStore) SetElementPosition(ctx context.Context, id string, pos domain.CanvasPosition) error {
	return s.exec(ctx, id, updatePositionSQL, pos.X, pos.Y, pos.Width, pos.Height, stamp(), id)
}

func (s *SQLiteStore) SetElementCrop(ctx context.Context, id string, crop domain.CropData) error {
	return s.exec(ctx, id, updateCropSQL, crop.X, crop.Y, crop.Zoom, stamp(), id)
}

func (s *SQLiteStore) SetElementContent(ctx context.Context, id string, content string) error {
	return s.exec(ctx, id, updateContentSQL, content, stamp(), id)
}

func (s *SQLiteStore) exec(ctx context.Context, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanElement(r scanner) (domain.CanvasElement, string, error) {
	var (
		el         domain.CanvasElement
		pageID     string
		typ        string
		cx, cy, cz sql.NullFloat64
	)
	err := r.Scan(&el.ID, &pageID, &typ, &el.Position.X, &el.Position.Y, &el.Position.Width, &el.Position.Height,
		&el.Content, &el.ImageRef, &cx, &cy, &cz)
	if err != nil {
		return domain.CanvasElement{}, "", err
	}
	el.Type = domain.ElementType(typ)
	if cz.Valid {
		el.Crop = &domain.CropData{X: cx.Float64, Y: cy.Float64, Zoom: cz.Float64}
	}
	return el, pageID, nil
}

func cropColumns(c *domain.CropData) (any, any, any) {
	if c == nil {
		return nil, nil, nil
	}
	return c.X, c.Y, c.Zoom
}

func stamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }
