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
	"fmt"
	"sync"

	"pagecraft/internal/domain"
)

// ManifestStore persists element edits straight into pagecraft.json. Every
// write saves the manifest, so it suits single-user projects on local disk.
type ManifestStore struct {
	mu sync.Mutex
	ph *ProjectHandle
}

// NewManifestStore wraps an open project.
func NewManifestStore(ph *ProjectHandle) *ManifestStore { return &ManifestStore{ph: ph} }

// Project returns a copy of the stored project.
func (s *ManifestStore) Project() domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ph.Project
}

// SetProject replaces the held project without saving, e.g. after the
// manifest was reloaded from disk.
func (s *ManifestStore) SetProject(p domain.Project) {
	s.mu.Lock()
	s.ph.Project = p
	s.mu.Unlock()
}

func (s *ManifestStore) GetElement(ctx context.Context, id string) (domain.CanvasElement, error) {
	if err := ctx.Err(); err != nil {
		return domain.CanvasElement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.find(id)
	if el == nil {
		return domain.CanvasElement{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return el.Clone(), nil
}

func (s *ManifestStore) SetElementPosition(ctx context.Context, id string, pos domain.CanvasPosition) error {
	return s.update(ctx, id, func(el *domain.CanvasElement) { el.Position = pos })
}

func (s *ManifestStore) SetElementCrop(ctx context.Context, id string, crop domain.CropData) error {
	return s.update(ctx, id, func(el *domain.CanvasElement) { c := crop; el.Crop = &c })
}

func (s *ManifestStore) SetElementContent(ctx context.Context, id string, content string) error {
	return s.update(ctx, id, func(el *domain.CanvasElement) { el.Content = content })
}

// update applies fn and saves; on a failed save the in-memory element is restored.
func (s *ManifestStore) update(ctx context.Context, id string, fn func(el *domain.CanvasElement)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.find(id)
	if el == nil {
		return fmt.Errorf("update %s: %w", id, domain.ErrNotFound)
	}
	before := el.Clone()
	fn(el)
	if err := Save(s.ph); err != nil {
		*el = before
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

func (s *ManifestStore) find(id string) *domain.CanvasElement {
	for i := range s.ph.Project.Pages {
		if el := s.ph.Project.Pages[i].Element(id); el != nil {
			return el
		}
	}
	return nil
}
