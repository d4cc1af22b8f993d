/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport tracks the pan and zoom applied to a page canvas and
// recognises one-finger pan and two-finger pinch gestures.
package viewport

import (
	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// Scale limits and the movement after which a gesture counts as a pan.
const (
	MinScale     = 0.7
	MaxScale     = 2.5
	PanThreshold = 2.0
)

// Transform maps logical page space to screen space: screen = logical*Scale + (X, Y).
type Transform struct {
	Scale float64 `json:"scale"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Identity is the untransformed viewport.
func Identity() Transform { return Transform{Scale: 1} }

// ToLogical converts a screen point to page coordinates.
func (t Transform) ToLogical(p vector.Pt) vector.Pt {
	s := t.safeScale()
	return vector.Pt{X: (p.X - t.X) / s, Y: (p.Y - t.Y) / s}
}

// ToScreen converts a page point to screen coordinates.
func (t Transform) ToScreen(p vector.Pt) vector.Pt {
	s := t.safeScale()
	return vector.Pt{X: p.X*s + t.X, Y: p.Y*s + t.Y}
}

// DeltaToLogical converts a screen-space displacement to page units.
func (t Transform) DeltaToLogical(d vector.Pt) vector.Pt { return d.Div(t.safeScale()) }

// Affine returns the logical→screen matrix.
func (t Transform) Affine() vector.Affine2D {
	s := t.safeScale()
	return vector.Translate(t.X, t.Y).Mul(vector.Scale(s, s))
}

// ScreenRect returns where the logical rectangle r appears on screen.
func (t Transform) ScreenRect(r vector.Rect) vector.Rect {
	s := t.safeScale()
	o := t.ToScreen(r.Min())
	return vector.Rect{X: o.X, Y: o.Y, W: r.W * s, H: r.H * s}
}

func (t Transform) safeScale() float64 {
	if t.Scale > 0 && vector.IsFinite(t.Scale) {
		return t.Scale
	}
	return 1
}

// Restrict keeps pos inside a page of the given logical size, so the element
// cannot leave the page's screen rectangle under any transform.
func Restrict(pos domain.CanvasPosition, pageW, pageH float64) domain.CanvasPosition {
	if pageW <= 0 || pageH <= 0 {
		return pos
	}
	r := vector.ClampRectTo(vector.R(pos.X, pos.Y, pos.Width, pos.Height), vector.R(0, 0, pageW, pageH))
	pos.X, pos.Y = r.X, r.Y
	return pos
}
