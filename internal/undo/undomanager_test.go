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
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(page, key, blob string, at time.Duration) Snapshot {
	return Snapshot{PageID: page, Key: key, Blob: []byte(blob), TS: t0.Add(at)}
}

func TestCoalescingIsScopedToKey(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Second})
	m.PushSnapshot(snap("cover", "img", "a", 0))
	m.PushSnapshot(snap("cover", "img", "b", 200*time.Millisecond))
	m.PushSnapshot(snap("cover", "headline", "c", 400*time.Millisecond))
	m.PushSnapshot(snap("cover", "img", "d", 600*time.Millisecond))
	if _, _, n := m.Stats(); n != 3 {
		t.Fatalf("img, headline, img expected as 3 entries, got %d", n)
	}
	if s, _ := m.Undo("cover"); string(s.Blob) != "d" {
		t.Fatalf("a different key in between must stop coalescing, got %q", s.Blob)
	}
	if s, _ := m.Undo("cover"); s.Key != "headline" {
		t.Fatalf("expected the headline edit, got %+v", s)
	}
	if s, _ := m.Undo("cover"); string(s.Blob) != "b" {
		t.Fatalf("quick img edits collapse into the newer one, got %q", s.Blob)
	}
}

func TestCoalescingStopsAfterInterval(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Second})
	m.PushSnapshot(snap("cover", "img", "a", 0))
	m.PushSnapshot(snap("cover", "img", "b", time.Second))
	if _, _, n := m.Stats(); n != 2 {
		t.Fatalf("edits a full interval apart stay separate, got %d", n)
	}
}

func TestMergeCombinesCoalescedPair(t *testing.T) {
	m := NewManager(Config{
		MinInterval: time.Second,
		Merge: func(prev, next Snapshot) Snapshot {
			next.Blob = append(append([]byte{}, prev.Blob...), next.Blob...)
			return next
		},
	})
	m.PushSnapshot(snap("cover", "cap", "12", 0))
	m.PushSnapshot(snap("cover", "cap", "345", 100*time.Millisecond))
	if bytes, _, n := m.Stats(); n != 1 || bytes != 5 {
		t.Fatalf("merged entry should account 5 bytes, got bytes=%d n=%d", bytes, n)
	}
	if s, _ := m.Undo("cover"); string(s.Blob) != "12345" {
		t.Fatalf("merge result expected, got %q", s.Blob)
	}
}

func TestPushClearsRedoOfThatPageOnly(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	m.PushSnapshot(snap("cover", "img", "a", 0))
	m.PushSnapshot(snap("back", "img", "x", 0))
	m.Undo("cover")
	m.Undo("back")
	if !m.CanRedo("cover") || !m.CanRedo("back") {
		t.Fatalf("both pages should be redoable")
	}
	m.PushSnapshot(snap("cover", "cap", "b", time.Second))
	if m.CanRedo("cover") {
		t.Fatalf("a new edit drops the page's redo stack")
	}
	if s, ok := m.Redo("back"); !ok || string(s.Blob) != "x" {
		t.Fatalf("other pages keep their redo stack, got ok=%v %q", ok, s.Blob)
	}
	if !m.CanUndo("back") {
		t.Fatalf("redo moves the entry back to undo")
	}
}

func TestPerPageCapDropsOldest(t *testing.T) {
	m := NewManager(Config{MaxPerPage: 2, MinInterval: time.Millisecond})
	for i, b := range []string{"one", "two", "three"} {
		m.PushSnapshot(snap("cover", b, b, time.Duration(i)*time.Second))
	}
	bytes, _, n := m.Stats()
	if n != 2 || bytes != len("two")+len("three") {
		t.Fatalf("expected the two newest entries, got n=%d bytes=%d", n, bytes)
	}
	m.Undo("cover")
	if s, _ := m.Undo("cover"); string(s.Blob) != "two" {
		t.Fatalf("oldest entry should be gone, got %q", s.Blob)
	}
}

func TestByteCapPrunesOldestAcrossPages(t *testing.T) {
	m := NewManager(Config{MaxBytes: 8, MinInterval: time.Millisecond})
	m.PushSnapshot(snap("cover", "img", "xxxx", 0))
	m.PushSnapshot(snap("back", "img", "yyyy", time.Second))
	m.PushSnapshot(snap("back", "cap", "zzzz", 2*time.Second))
	if m.CanUndo("cover") {
		t.Fatalf("the oldest page entry should have been pruned")
	}
	if bytes, pages, n := m.Stats(); bytes != 8 || pages != 1 || n != 2 {
		t.Fatalf("unexpected stats bytes=%d pages=%d n=%d", bytes, pages, n)
	}
	m.ClearPage("back")
	if bytes, pages, n := m.Stats(); bytes != 0 || pages != 0 || n != 0 {
		t.Fatalf("clear should free everything, got bytes=%d pages=%d n=%d", bytes, pages, n)
	}
	if m.CanRedo("back") {
		t.Fatalf("clear drops redo too")
	}
}
