/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"encoding/json"
	"time"

	"pagecraft/internal/domain"
)

// Entry is one committed element edit.
type Entry struct {
	Before domain.CanvasElement `json:"before"`
	After  domain.CanvasElement `json:"after"`
}

// ElementHistory records element edits per page on top of Manager. Quick
// successive edits of the same element collapse into one entry spanning the
// first Before and the last After.
type ElementHistory struct {
	m   *Manager
	now func() time.Time
}

// NewElementHistory builds a history with the given caps.
func NewElementHistory(cfg Config) *ElementHistory {
	cfg.Merge = mergeEntries
	return &ElementHistory{m: NewManager(cfg), now: time.Now}
}

// Record stores an edit. Identical before/after pairs are ignored.
func (h *ElementHistory) Record(pageID string, before, after domain.CanvasElement) {
	if sameElement(before, after) {
		return
	}
	blob, err := json.Marshal(Entry{Before: before, After: after})
	if err != nil {
		return
	}
	h.m.PushSnapshot(Snapshot{PageID: pageID, Key: after.ID, Blob: blob, TS: h.now()})
}

// Undo returns the most recent entry of the page; apply its Before.
func (h *ElementHistory) Undo(pageID string) (Entry, bool) {
	s, ok := h.m.Undo(pageID)
	if !ok {
		return Entry{}, false
	}
	return decode(s)
}

// Redo returns the most recently undone entry; apply its After.
func (h *ElementHistory) Redo(pageID string) (Entry, bool) {
	s, ok := h.m.Redo(pageID)
	if !ok {
		return Entry{}, false
	}
	return decode(s)
}

// Clear drops the page history.
func (h *ElementHistory) Clear(pageID string) { h.m.ClearPage(pageID) }

// Manager exposes the underlying stack manager for diagnostics.
func (h *ElementHistory) Manager() *Manager { return h.m }

func decode(s Snapshot) (Entry, bool) {
	var e Entry
	if err := json.Unmarshal(s.Blob, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func mergeEntries(prev, next Snapshot) Snapshot {
	pe, ok1 := decode(prev)
	ne, ok2 := decode(next)
	if !ok1 || !ok2 {
		return next
	}
	blob, err := json.Marshal(Entry{Before: pe.Before, After: ne.After})
	if err != nil {
		return next
	}
	next.Blob = blob
	return next
}

func sameElement(a, b domain.CanvasElement) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && string(ab) == string(bb)
}
