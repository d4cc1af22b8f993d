/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package board holds the in-memory project the editor renders from. Every
// edit lands here first; persistence follows asynchronously.
package board

import (
	"context"
	"fmt"
	"sync"

	"pagecraft/internal/domain"
)

// Listener is notified after an element changed. It runs with no lock held.
type Listener func(pageID, elementID string)

// Board is a thread-safe project model. It also satisfies domain.ElementStore,
// which makes it usable as an in-memory backend.
type Board struct {
	mu        sync.RWMutex
	project   domain.Project
	index     map[string]string // element id -> page id
	listeners []Listener
}

// New copies proj into a fresh board.
func New(proj domain.Project) *Board {
	b := &Board{project: cloneProject(proj)}
	b.reindexLocked()
	return b
}

// OnChange registers fn for element change notifications.
func (b *Board) OnChange(fn Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Project returns a deep copy of the whole project.
func (b *Board) Project() domain.Project {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneProject(b.project)
}

// Replace swaps the whole project, e.g. after the manifest changed on disk.
// Listeners are notified once per page with an empty element id.
func (b *Board) Replace(proj domain.Project) {
	b.mu.Lock()
	b.project = cloneProject(proj)
	b.reindexLocked()
	ls := append([]Listener(nil), b.listeners...)
	pages := make([]string, 0, len(b.project.Pages))
	for _, pg := range b.project.Pages {
		pages = append(pages, pg.ID)
	}
	b.mu.Unlock()
	for _, id := range pages {
		notify(ls, id, "")
	}
}

// Page returns a deep copy of one page.
func (b *Board) Page(id string) (domain.Page, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p := b.project.FindPage(id)
	if p == nil {
		return domain.Page{}, false
	}
	return clonePage(*p), true
}

// Element returns a copy of the element and the id of the page that owns it.
func (b *Board) Element(id string) (domain.CanvasElement, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	el, pageID := b.lookupLocked(id)
	if el == nil {
		return domain.CanvasElement{}, "", false
	}
	return el.Clone(), pageID, true
}

// Put replaces the stored element with the same id.
func (b *Board) Put(el domain.CanvasElement) error {
	b.mu.Lock()
	cur, pageID := b.lookupLocked(el.ID)
	if cur == nil {
		b.mu.Unlock()
		return fmt.Errorf("put %s: %w", el.ID, domain.ErrNotFound)
	}
	*cur = el.Clone()
	ls := b.listeners
	b.mu.Unlock()
	notify(ls, pageID, el.ID)
	return nil
}

// Add appends el to the page, making it the front-most element.
func (b *Board) Add(pageID string, el domain.CanvasElement) error {
	if el.ID == "" {
		return fmt.Errorf("add element: empty id")
	}
	b.mu.Lock()
	p := b.project.FindPage(pageID)
	if p == nil {
		b.mu.Unlock()
		return fmt.Errorf("add element to page %s: page not found", pageID)
	}
	if _, exists := b.index[el.ID]; exists {
		b.mu.Unlock()
		return fmt.Errorf("add element: duplicate id %s", el.ID)
	}
	p.Elements = append(p.Elements, el.Clone())
	b.index[el.ID] = pageID
	ls := b.listeners
	b.mu.Unlock()
	notify(ls, pageID, el.ID)
	return nil
}

// Rekey renames an element, used when a store confirms a placeholder id.
func (b *Board) Rekey(oldID, newID string) error {
	b.mu.Lock()
	el, pageID := b.lookupLocked(oldID)
	if el == nil {
		b.mu.Unlock()
		return fmt.Errorf("rekey %s: %w", oldID, domain.ErrNotFound)
	}
	if _, taken := b.index[newID]; taken && newID != oldID {
		b.mu.Unlock()
		return fmt.Errorf("rekey %s: id %s already in use", oldID, newID)
	}
	el.ID = newID
	delete(b.index, oldID)
	b.index[newID] = pageID
	ls := b.listeners
	b.mu.Unlock()
	notify(ls, pageID, newID)
	return nil
}

// GetElement implements domain.ElementStore.
func (b *Board) GetElement(_ context.Context, id string) (domain.CanvasElement, error) {
	el, _, ok := b.Element(id)
	if !ok {
		return domain.CanvasElement{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return el, nil
}

// SetElementPosition implements domain.ElementStore.
func (b *Board) SetElementPosition(_ context.Context, id string, pos domain.CanvasPosition) error {
	return b.mutate(id, func(el *domain.CanvasElement) { el.Position = pos })
}

// SetElementCrop implements domain.ElementStore.
func (b *Board) SetElementCrop(_ context.Context, id string, crop domain.CropData) error {
	return b.mutate(id, func(el *domain.CanvasElement) { c := crop; el.Crop = &c })
}

// SetElementContent implements domain.ElementStore.
func (b *Board) SetElementContent(_ context.Context, id string, content string) error {
	return b.mutate(id, func(el *domain.CanvasElement) { el.Content = content })
}

func (b *Board) mutate(id string, fn func(el *domain.CanvasElement)) error {
	b.mu.Lock()
	el, pageID := b.lookupLocked(id)
	if el == nil {
		b.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, domain.ErrNotFound)
	}
	fn(el)
	ls := b.listeners
	b.mu.Unlock()
	notify(ls, pageID, id)
	return nil
}

func (b *Board) lookupLocked(id string) (*domain.CanvasElement, string) {
	pageID, ok := b.index[id]
	if !ok {
		return nil, ""
	}
	p := b.project.FindPage(pageID)
	if p == nil {
		return nil, ""
	}
	return p.Element(id), pageID
}

func (b *Board) reindexLocked() {
	b.index = make(map[string]string)
	for _, p := range b.project.Pages {
		for _, el := range p.Elements {
			b.index[el.ID] = p.ID
		}
	}
}

func notify(ls []Listener, pageID, elementID string) {
	for _, fn := range ls {
		fn(pageID, elementID)
	}
}

func cloneProject(p domain.Project) domain.Project {
	out := p
	out.Pages = make([]domain.Page, len(p.Pages))
	for i, pg := range p.Pages {
		out.Pages[i] = clonePage(pg)
	}
	return out
}

func clonePage(p domain.Page) domain.Page {
	out := p
	out.Elements = make([]domain.CanvasElement, len(p.Elements))
	for i, el := range p.Elements {
		out.Elements[i] = el.Clone()
	}
	return out
}
