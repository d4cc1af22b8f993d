/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package interact

import (
	"context"
	"testing"

	"pagecraft/internal/board"
	"pagecraft/internal/commit"
	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

type recCommitter struct {
	b        *board.Board
	changes  []commit.Change
	now      []bool
	onCommit func(commit.Change)
}

func (r *recCommitter) Commit(ch commit.Change) error { return r.apply(ch, false) }

func (r *recCommitter) Submit(ch commit.Change) error { return r.apply(ch, true) }

func (r *recCommitter) CommitNow(_ context.Context, ch commit.Change) error { return r.apply(ch, true) }

func (r *recCommitter) Undo(string) (string, bool, error) { return "", false, nil }
func (r *recCommitter) Redo(string) (string, bool, error) { return "", false, nil }

func (r *recCommitter) apply(ch commit.Change, now bool) error {
	if r.onCommit != nil {
		r.onCommit(ch)
	}
	el, _, ok := r.b.Element(ch.ElementID)
	if !ok {
		return domain.ErrNotFound
	}
	if ch.Position != nil {
		el.Position = *ch.Position
	}
	if ch.Crop != nil {
		cr := *ch.Crop
		el.Crop = &cr
	}
	if ch.Content != nil {
		el.Content = *ch.Content
	}
	r.changes = append(r.changes, ch)
	r.now = append(r.now, now)
	return r.b.Put(el)
}

type fakeHost struct {
	captured []int
	attached int
	detached int
	focused  []string
	caret    int
}

func (h *fakeHost) CapturePointer(id int) { h.captured = append(h.captured, id) }

func (h *fakeHost) AttachGestureListeners() func() {
	h.attached++
	return func() { h.detached++ }
}

func (h *fakeHost) FocusEditor(id string, caret int) {
	h.focused = append(h.focused, id)
	h.caret = caret
}

type fixture struct {
	b         *board.Board
	com       *recCommitter
	host      *fakeHost
	ctl       *Controller
	selection []string
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	proj := domain.Project{Name: "demo", Pages: []domain.Page{
		{ID: "p1", Width: 800, Height: 600, Elements: []domain.CanvasElement{
			{ID: "img", Type: domain.ElementImage, Position: domain.CanvasPosition{X: 100, Y: 100, Width: 200, Height: 100}},
			{ID: "head", Type: domain.ElementHeadline, Position: domain.CanvasPosition{X: 400, Y: 50, Width: 300, Height: 60}, Content: "Title"},
			{ID: "cap", Type: domain.ElementCaption, Position: domain.CanvasPosition{X: 400, Y: 300, Width: 200, Height: 40}, Content: "Grüße"},
		}},
		{ID: "p2", Width: 800, Height: 600},
	}}
	f := &fixture{b: board.New(proj), host: &fakeHost{}}
	f.com = &recCommitter{b: f.b}
	cfg.Viewport.Enabled = true
	f.ctl = New(f.b, f.com, domain.SelectorFunc(func(id string) { f.selection = append(f.selection, id) }), f.host, cfg)
	f.ctl.SetPage("p1")
	f.selection = nil
	return f
}

func (f *fixture) position(id string) domain.CanvasPosition {
	el, _, _ := f.b.Element(id)
	return el.Position
}

func mouse(x, y float64) PointerEvent { return PointerEvent{ID: 1, Kind: Mouse, Screen: vector.Pt{X: x, Y: y}} }

func touch(id int, x, y float64) PointerEvent {
	return PointerEvent{ID: id, Kind: Touch, Screen: vector.Pt{X: x, Y: y}}
}

func (f *fixture) drag(from, to vector.Pt) {
	f.ctl.OnPointerDown(mouse(from.X, from.Y))
	f.ctl.OnPointerMove(mouse(to.X, to.Y))
	f.ctl.OnPointerUp(mouse(to.X, to.Y))
}
