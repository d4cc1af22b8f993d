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
	"time"

	"pagecraft/internal/board"
	"pagecraft/internal/commit"
	"pagecraft/internal/undo"
)

// slowStore holds every content write until release is closed.
type slowStore struct {
	*board.Board
	entered chan string
	release chan struct{}
}

func (s *slowStore) SetElementContent(ctx context.Context, id, content string) error {
	s.entered <- id
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Board.SetElementContent(ctx, id, content)
}

func TestEditCommitDoesNotBlockPointerInput(t *testing.T) {
	f := newFixture(t, Config{})
	remote := &slowStore{Board: board.New(f.b.Project()), entered: make(chan string, 1), release: make(chan struct{})}
	br := commit.New(f.b, remote, commit.Options{Delay: time.Hour})
	ctl := New(f.b, br, nil, nil, Config{Viewport: f.ctl.cfg.Viewport})
	ctl.SetPage("p1")

	ctl.BeginEdit("head")
	ctl.SetDraft("Slow title")
	returned := make(chan struct{})
	go func() {
		ctl.OnPointerDown(mouse(10, 580))
		ctl.OnPointerUp(mouse(10, 580))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("outside click waited for the store")
	}
	if ctl.Mode() != ModeIdle {
		t.Fatalf("outside click ends editing, got %v", ctl.Mode())
	}
	if el, _, _ := f.b.Element("head"); el.Content != "Slow title" {
		t.Fatalf("draft is applied locally at once, got %q", el.Content)
	}
	select {
	case id := <-remote.entered:
		if id != "head" {
			t.Fatalf("unexpected write for %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("content write was never sent")
	}
	close(remote.release)
	if err := br.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if el, _ := remote.GetElement(context.Background(), "head"); el.Content != "Slow title" {
		t.Fatalf("remote should have the draft, got %q", el.Content)
	}
}

func TestControllerWithBridgeAndHistory(t *testing.T) {
	f := newFixture(t, Config{})
	remote := board.New(f.b.Project())
	hist := undo.NewElementHistory(undo.Config{MinInterval: time.Nanosecond})
	br := commit.New(f.b, remote, commit.Options{Delay: time.Hour, History: hist})
	ctl := New(f.b, br, nil, nil, Config{Viewport: f.ctl.cfg.Viewport})
	ctl.SetPage("p1")

	ctl.OnPointerDown(mouse(150, 150))
	ctl.OnPointerMove(mouse(250, 150))
	ctl.OnPointerUp(mouse(250, 150))
	if !br.Pending("img") {
		t.Fatalf("drag result should wait in the debounce window")
	}
	if err := br.FlushAll(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if el, _ := remote.GetElement(context.Background(), "img"); el.Position.X != 200 {
		t.Fatalf("remote should have x=200, got %+v", el.Position)
	}

	ok, err := ctl.Undo()
	if !ok || err != nil {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if p, _ := ctl.Preview("img"); p.X != 100 {
		t.Fatalf("undo restores local position, got %+v", p)
	}
	if err := br.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if el, _ := remote.GetElement(context.Background(), "img"); el.Position.X != 100 {
		t.Fatalf("undo is persisted too, got %+v", el.Position)
	}
	if ok, _ := ctl.Redo(); !ok || ctl.Selected() != "img" {
		t.Fatalf("redo should re-apply and select")
	}
}
