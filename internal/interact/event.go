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

	"pagecraft/internal/commit"
	"pagecraft/internal/domain"
	"pagecraft/internal/resize"
	"pagecraft/internal/vector"
)

// PointerKind distinguishes input devices. Only touch pointers form pinches.
type PointerKind uint8

const (
	Mouse PointerKind = iota
	Touch
	Pen
)

// PointerEvent is a raw input event in screen space.
type PointerEvent struct {
	ID     int
	Kind   PointerKind
	Screen vector.Pt
	Shift  bool
	// InEditor is set by the host when the event lies inside the inline
	// editor or its toolbar.
	InEditor bool
}

// Key identifies the keys the controller reacts to.
type Key uint8

const (
	KeyEscape Key = iota + 1
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
)

// KeyEvent is a key press. Shift makes arrow nudges fine-grained.
type KeyEvent struct {
	Key   Key
	Shift bool
}

// TargetKind classifies a hit test result.
type TargetKind uint8

const (
	TargetBackground TargetKind = iota
	TargetElement
	TargetHandle
)

// Target is what lies under a screen point.
type Target struct {
	Kind      TargetKind
	ElementID string
	Handle    resize.Handle
}

// Host is the rendering layer. The controller asks it to capture pointers and
// to listen for document level move/up/cancel events while a gesture runs.
type Host interface {
	CapturePointer(pointerID int)
	// AttachGestureListeners starts forwarding document level pointer events
	// and returns the function that stops it.
	AttachGestureListeners() (detach func())
	FocusEditor(elementID string, caret int)
}

// NopHost ignores every request.
type NopHost struct{}

func (NopHost) CapturePointer(int)             {}
func (NopHost) AttachGestureListeners() func() { return func() {} }
func (NopHost) FocusEditor(string, int)        {}

// Model is the read side of the page model, usually a *board.Board.
type Model interface {
	Page(id string) (domain.Page, bool)
	Element(id string) (domain.CanvasElement, string, bool)
}

// Committer receives finished edits, usually a *commit.Bridge.
type Committer interface {
	Commit(c commit.Change) error
	// Submit skips the debounce window without waiting for the write.
	Submit(c commit.Change) error
	CommitNow(ctx context.Context, c commit.Change) error
	Undo(pageID string) (string, bool, error)
	Redo(pageID string) (string, bool, error)
}
