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
	"pagecraft/internal/domain"
	"pagecraft/internal/resize"
	"pagecraft/internal/vector"
)

// Mode names the active interaction.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeDragging
	ModeResizing
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	case ModeEditing:
		return "editing"
	}
	return "idle"
}

// State is the single interaction state of a page: one of *Idle, *Dragging,
// *Resizing or *Editing. Dragging and resizing at once cannot be expressed.
type State interface {
	Mode() Mode
	// Element returns the element the state works on, "" when idle.
	Element() string
}

type Idle struct{}

func (*Idle) Mode() Mode      { return ModeIdle }
func (*Idle) Element() string { return "" }

// DragState tracks a move gesture. Positions are logical; pointers are screen.
type DragState struct {
	ElementID     string
	PointerID     int
	StartPointer  vector.Pt
	StartPosition domain.CanvasPosition
	Preview       domain.CanvasPosition
	Last          vector.Pt
}

type Dragging struct{ DragState }

func (*Dragging) Mode() Mode        { return ModeDragging }
func (d *Dragging) Element() string { return d.ElementID }

// ResizeState wraps the solver input with the pointer that owns the gesture.
type ResizeState struct {
	resize.State
	PointerID int
	Preview   domain.CanvasPosition
	Last      vector.Pt
}

type Resizing struct{ ResizeState }

func (*Resizing) Mode() Mode        { return ModeResizing }
func (r *Resizing) Element() string { return r.ElementID }

// EditingState holds the inline text draft. Caret counts runes.
type EditingState struct {
	ElementID string
	Original  string
	Draft     string
	Caret     int
}

type Editing struct{ EditingState }

func (*Editing) Mode() Mode        { return ModeEditing }
func (e *Editing) Element() string { return e.ElementID }
