/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package commit

import (
	"context"
	"errors"
	"testing"
	"time"

	"pagecraft/internal/board"
	"pagecraft/internal/domain"
	"pagecraft/internal/undo"
)

func pos(x, y, w, h float64) domain.CanvasPosition {
	return domain.CanvasPosition{X: x, Y: y, Width: w, Height: h}
}

func newFixture(t *testing.T) (*board.Board, *recordingStore, *fakeClock) {
	t.Helper()
	proj := domain.Project{Name: "t", Pages: []domain.Page{{
		ID: "p1", Width: 800, Height: 600,
		Elements: []domain.CanvasElement{
			{ID: "img", Type: domain.ElementImage, Position: pos(0, 0, 200, 100)},
			{ID: "txt", Type: domain.ElementHeadline, Position: pos(0, 200, 200, 60), Content: "Hello"},
			{ID: domain.PlaceholderPrefix + "new", Type: domain.ElementCaption, Position: pos(0, 300, 100, 40)},
		},
	}}}
	return board.New(proj), &recordingStore{}, newFakeClock()
}

func TestCommitIsOptimisticAndDebounced(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})

	if err := br.Commit(PositionChange("img", pos(10, 0, 200, 100))); err != nil {
		t.Fatalf("commit: %v", err)
	}
	clk.Advance(100 * time.Millisecond)
	if err := br.Commit(PositionChange("img", pos(20, 0, 200, 100))); err != nil {
		t.Fatalf("commit: %v", err)
	}
	el, _, _ := b.Element("img")
	if el.Position.X != 20 {
		t.Fatalf("board should reflect latest edit immediately, got %+v", el.Position)
	}
	if n := len(store.Calls()); n != 0 {
		t.Fatalf("no write expected inside the debounce window, got %d", n)
	}
	clk.Advance(399 * time.Millisecond)
	if n := len(store.Calls()); n != 0 {
		t.Fatalf("window restarts on each commit, got %d writes", n)
	}
	clk.Advance(time.Millisecond)
	calls := store.Calls()
	if len(calls) != 1 || calls[0].op != "position" || calls[0].pos.X != 20 {
		t.Fatalf("expected one coalesced write with last value, got %+v", calls)
	}
	if br.Pending("img") {
		t.Fatalf("nothing should remain pending")
	}
}

func TestCommitNoopSkipsWrite(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	if err := br.Commit(PositionChange("img", pos(0, 0, 200, 100))); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if br.Pending("img") {
		t.Fatalf("unchanged position must not be queued")
	}
	clk.Advance(time.Second)
	if len(store.Calls()) != 0 {
		t.Fatalf("unexpected writes %+v", store.Calls())
	}
}

func TestCommitUnknownElement(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	err := br.Commit(PositionChange("nope", pos(0, 0, 100, 100)))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitNowWritesPendingFieldsToo(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	_ = br.Commit(PositionChange("txt", pos(40, 200, 200, 60)))
	if err := br.CommitNow(context.Background(), ContentChange("txt", "Bye")); err != nil {
		t.Fatalf("commit now: %v", err)
	}
	calls := store.Calls()
	if len(calls) != 2 || calls[0].op != "position" || calls[1].op != "content" || calls[1].content != "Bye" {
		t.Fatalf("unexpected writes %+v", calls)
	}
	clk.Advance(time.Second)
	if len(store.Calls()) != 2 {
		t.Fatalf("debounced write should have been cancelled")
	}
}

func TestPlaceholderWritesWaitForConfirm(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	tmp := domain.PlaceholderPrefix + "new"

	if err := br.Commit(PositionChange(tmp, pos(50, 300, 100, 40))); err != nil {
		t.Fatalf("placeholder commit must not fail: %v", err)
	}
	if err := br.CommitNow(context.Background(), ContentChange(tmp, "caption")); err != nil {
		t.Fatalf("placeholder commit now must not fail: %v", err)
	}
	clk.Advance(time.Second)
	if err := br.FlushAll(context.Background()); err != nil {
		t.Fatalf("flush all: %v", err)
	}
	if len(store.Calls()) != 0 {
		t.Fatalf("placeholder writes must be skipped, got %+v", store.Calls())
	}

	if err := br.Confirm(context.Background(), tmp, "real-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	calls := store.Calls()
	if len(calls) != 2 || calls[0].id != "real-1" || calls[0].pos.X != 50 || calls[1].content != "caption" {
		t.Fatalf("unexpected writes after confirm %+v", calls)
	}
	if _, _, ok := b.Element("real-1"); !ok {
		t.Fatalf("board should know the confirmed id")
	}
}

func TestFailureRollsBackAndReports(t *testing.T) {
	b, store, clk := newFixture(t)
	var reported []error
	br := New(b, store, Options{Clock: clk, Reporter: domain.ErrorReporterFunc(func(err error) { reported = append(reported, err) })})
	boom := errors.New("boom")
	store.SetFail(boom)

	_ = br.Commit(PositionChange("img", pos(10, 0, 200, 100)))
	_ = br.Commit(CropChange("img", domain.CropData{X: 5, Y: 5, Zoom: 1.5}))
	clk.Advance(DefaultDelay)

	el, _, _ := b.Element("img")
	if el.Position != pos(0, 0, 200, 100) || el.Crop != nil {
		t.Fatalf("expected rollback to pre-change state, got %+v crop=%v", el.Position, el.Crop)
	}
	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Fatalf("expected one reported error wrapping boom, got %v", reported)
	}
	if br.Pending("img") {
		t.Fatalf("failed write must not be retried")
	}
}

func TestFailureOnCommitNowReturnsError(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	store.SetFail(errors.New("offline"))
	err := br.CommitNow(context.Background(), ContentChange("txt", "Draft"))
	if err == nil {
		t.Fatalf("expected error")
	}
	el, _, _ := b.Element("txt")
	if el.Content != "Hello" {
		t.Fatalf("content should be rolled back, got %q", el.Content)
	}
}

func TestFlushAllAndClose(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	_ = br.Commit(PositionChange("img", pos(10, 10, 200, 100)))
	_ = br.Commit(PositionChange("txt", pos(10, 210, 200, 60)))
	if err := br.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(store.Calls()); n != 2 {
		t.Fatalf("expected both elements written, got %d", n)
	}
	if br.Pending("img") || br.Pending("txt") {
		t.Fatalf("nothing should remain pending after close")
	}
	_ = br.Commit(PositionChange("img", pos(30, 10, 200, 100)))
	clk.Advance(time.Second)
	if n := len(store.Calls()); n != 2 {
		t.Fatalf("closed bridge must not schedule writes, got %d", n)
	}
}

func TestUndoRedoThroughHistory(t *testing.T) {
	b, store, clk := newFixture(t)
	hist := undo.NewElementHistory(undo.Config{MinInterval: time.Nanosecond})
	br := New(b, store, Options{Clock: clk, History: hist})

	_ = br.Commit(PositionChange("img", pos(100, 0, 200, 100)))
	clk.Advance(DefaultDelay)

	id, ok, err := br.Undo("p1")
	if err != nil || !ok || id != "img" {
		t.Fatalf("undo: id=%q ok=%v err=%v", id, ok, err)
	}
	el, _, _ := b.Element("img")
	if el.Position.X != 0 {
		t.Fatalf("undo should restore x=0, got %v", el.Position.X)
	}
	clk.Advance(DefaultDelay)
	calls := store.Calls()
	if len(calls) != 2 || calls[1].pos.X != 0 {
		t.Fatalf("undo should persist the restored position, got %+v", calls)
	}

	if _, ok, _ := br.Redo("p1"); !ok {
		t.Fatalf("redo expected")
	}
	el, _, _ = b.Element("img")
	if el.Position.X != 100 {
		t.Fatalf("redo should re-apply x=100, got %v", el.Position.X)
	}
	if _, ok, _ := br.Undo("p2"); ok {
		t.Fatalf("unknown page has no history")
	}
}

func TestDiscardDropsPending(t *testing.T) {
	b, store, clk := newFixture(t)
	br := New(b, store, Options{Clock: clk})
	_ = br.Commit(PositionChange("img", pos(10, 0, 200, 100)))
	br.Discard("img")
	clk.Advance(time.Second)
	if len(store.Calls()) != 0 || br.Pending("img") {
		t.Fatalf("discarded change was written")
	}
}

func TestWritesForOneElementAreSerialized(t *testing.T) {
	b, _, clk := newFixture(t)
	store := newGatedStore()
	var reported []error
	br := New(b, store, Options{Clock: clk, Reporter: domain.ErrorReporterFunc(func(err error) { reported = append(reported, err) })})

	first := make(chan error, 1)
	go func() { first <- br.CommitNow(context.Background(), PositionChange("img", pos(10, 0, 200, 100))) }()
	<-store.entered

	if err := br.Commit(PositionChange("img", pos(20, 0, 200, 100))); err != nil {
		t.Fatalf("commit: %v", err)
	}
	clk.Advance(DefaultDelay)
	if n := len(store.Calls()); n != 0 {
		t.Fatalf("second write must wait for the first, got %d writes", n)
	}
	if !br.Pending("img") || !br.InFlight("img") || !br.Busy() {
		t.Fatalf("second change should stay parked behind the write in flight")
	}

	store.release <- errors.New("bad gateway")
	if err := <-first; err == nil {
		t.Fatalf("first write should fail")
	}
	el, _, _ := b.Element("img")
	if el.Position.X != 0 {
		t.Fatalf("board should be back at the stored state, got %+v", el.Position)
	}
	if err := br.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if calls := store.Calls(); len(calls) != 0 {
		t.Fatalf("edits on top of a failed write must not reach the store, got %+v", calls)
	}
	if len(reported) != 1 {
		t.Fatalf("expected one reported error, got %v", reported)
	}
	if br.Busy() {
		t.Fatalf("nothing may stay pending after a rollback")
	}
}

func TestParkedChangeIsSentAfterWriteInFlight(t *testing.T) {
	b, _, clk := newFixture(t)
	store := newGatedStore()
	br := New(b, store, Options{Clock: clk})

	if err := br.Submit(PositionChange("img", pos(10, 0, 200, 100))); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-store.entered
	_ = br.Commit(PositionChange("img", pos(20, 0, 200, 100)))
	clk.Advance(DefaultDelay)

	store.release <- nil
	if err := br.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	calls := store.Calls()
	if len(calls) != 2 || calls[0].pos.X != 10 || calls[1].pos.X != 20 {
		t.Fatalf("writes must reach the store in commit order, got %+v", calls)
	}
	if el, _, _ := b.Element("img"); el.Position.X != 20 {
		t.Fatalf("board keeps the last edit, got %+v", el.Position)
	}
}
