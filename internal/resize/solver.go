/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package resize turns a grip drag into a new element rectangle.
//
// The solver is pure: given the state captured at pointer-down, the current
// pointer and the viewport scale it returns the resulting position. The
// grip's opposite corner (or opposite edge) is the anchor and never moves.
// Order of operations is fixed: raw delta, aspect-ratio fix, minimum clamp,
// then grid snap.
package resize

import (
	"math"

	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// State is captured when a resize grip is pressed and lives until release.
type State struct {
	ElementID     string
	Handle        Handle
	StartPointer  vector.Pt // screen space
	StartPosition domain.CanvasPosition
	// AspectRatio is width/height to preserve. Zero, negative or non-finite means unlocked.
	AspectRatio float64
	StartScale  float64
	MinSize     float64
	// Grid is the snapping step; zero selects vector.GridSize.
	Grid float64
}

// Begin captures the resize state for el. lockRatio pins the element's
// current width/height ratio.
func Begin(el domain.CanvasElement, h Handle, pointer vector.Pt, scale float64, lockRatio bool) State {
	st := State{
		ElementID:     el.ID,
		Handle:        h,
		StartPointer:  pointer,
		StartPosition: el.Position,
		StartScale:    scale,
		MinSize:       el.Type.MinSize(),
	}
	if lockRatio && el.Position.Height > 0 {
		st.AspectRatio = el.Position.Width / el.Position.Height
	}
	return st
}

// LockAspect decides whether a resize keeps proportions: images lock by
// default when lockImages is set, and shift inverts the default.
func LockAspect(t domain.ElementType, lockImages, shift bool) bool {
	locked := t == domain.ElementImage && lockImages
	if shift {
		return !locked
	}
	return locked
}

// Locked reports whether the state carries a usable aspect ratio.
func (s State) Locked() bool {
	return s.AspectRatio > 0 && vector.IsFinite(s.AspectRatio)
}

// Solve returns the element rectangle for the pointer at screen position p
// under viewport scale. A non-positive or non-finite scale falls back to the
// scale captured at pointer-down, then to 1.
func Solve(s State, p vector.Pt, scale float64) domain.CanvasPosition {
	start := s.StartPosition
	if s.Handle == HandleNone {
		return start
	}
	scale = effectiveScale(scale, s.StartScale)
	d := p.Sub(s.StartPointer).Div(scale)
	if !d.Finite() {
		return start
	}
	grid := s.Grid
	if grid <= 0 {
		grid = vector.GridSize
	}
	minSize := s.MinSize
	if minSize <= 0 {
		minSize = grid
	}

	w, h := start.Width, start.Height
	if s.Handle.east() {
		w += d.X
	}
	if s.Handle.west() {
		w -= d.X
	}
	if s.Handle.south() {
		h += d.Y
	}
	if s.Handle.north() {
		h -= d.Y
	}

	if s.Locked() {
		w, h = fixRatio(s.Handle, s.AspectRatio, start, w, h)
		// grow both sides together while possible so the minimum does not
		// distort the ratio; plain clamping below still has the last word
		if w > 0 && h > 0 {
			k := math.Max(1, math.Max(minSize/w, minSize/h))
			w, h = w*k, h*k
		}
	}
	w = vector.ClampMin(w, minSize)
	h = vector.ClampMin(h, minSize)

	w = snapAtLeast(w, minSize, grid)
	h = snapAtLeast(h, minSize, grid)

	x, y := anchorOrigin(s.Handle, start, w, h)
	return domain.CanvasPosition{
		X:      vector.SnapTo(x, grid),
		Y:      vector.SnapTo(y, grid),
		Width:  w,
		Height: h,
	}
}

// fixRatio derives one side from the other. Corner grips follow whichever
// side moved more; edge grips follow their own axis.
func fixRatio(h Handle, ratio float64, start domain.CanvasPosition, w, hh float64) (float64, float64) {
	switch {
	case h.IsCorner():
		if math.Abs(w-start.Width) >= math.Abs(hh-start.Height) {
			return w, w / ratio
		}
		return hh * ratio, hh
	case h == E || h == W:
		return w, w / ratio
	default:
		return hh * ratio, hh
	}
}

// anchorOrigin places a w×h rectangle so the grip's anchor stays put. Axes the
// grip does not touch are centred on the start rectangle.
func anchorOrigin(h Handle, start domain.CanvasPosition, w, hh float64) (float64, float64) {
	var x, y float64
	switch {
	case h.west():
		x = start.Right() - w
	case h.east():
		x = start.X
	default:
		x = start.X + (start.Width-w)/2
	}
	switch {
	case h.north():
		y = start.Bottom() - hh
	case h.south():
		y = start.Y
	default:
		y = start.Y + (start.Height-hh)/2
	}
	return x, y
}

func snapAtLeast(v, minSize, grid float64) float64 {
	s := vector.SnapTo(v, grid)
	if s < minSize {
		s = math.Ceil(minSize/grid) * grid
	}
	return s
}

func effectiveScale(scale, fallback float64) float64 {
	if scale > 0 && vector.IsFinite(scale) {
		return scale
	}
	if fallback > 0 && vector.IsFinite(fallback) {
		return fallback
	}
	return 1
}
