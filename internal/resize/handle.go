/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package resize

import (
	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// Handle identifies one of the eight resize grips by compass direction.
type Handle uint8

const (
	HandleNone Handle = iota
	N
	S
	E
	W
	NE
	NW
	SE
	SW
)

var handleNames = [...]string{"", "n", "s", "e", "w", "ne", "nw", "se", "sw"}

// All lists the grips in hit-test priority order (corners first).
var All = []Handle{NW, NE, SE, SW, N, E, S, W}

func (h Handle) String() string {
	if int(h) < len(handleNames) {
		return handleNames[h]
	}
	return "?"
}

// ParseHandle converts a compass string such as "se" into a Handle.
func ParseHandle(s string) (Handle, bool) {
	for i, n := range handleNames {
		if i > 0 && n == s {
			return Handle(i), true
		}
	}
	return HandleNone, false
}

func (h Handle) north() bool { return h == N || h == NE || h == NW }
func (h Handle) south() bool { return h == S || h == SE || h == SW }
func (h Handle) east() bool  { return h == E || h == NE || h == SE }
func (h Handle) west() bool  { return h == W || h == NW || h == SW }

// IsCorner reports whether h moves both axes.
func (h Handle) IsCorner() bool { return h == NE || h == NW || h == SE || h == SW }

// Point returns the grip location on pos in logical space.
func (h Handle) Point(pos domain.CanvasPosition) vector.Pt {
	x := pos.X + pos.Width/2
	y := pos.Y + pos.Height/2
	switch {
	case h.west():
		x = pos.X
	case h.east():
		x = pos.Right()
	}
	switch {
	case h.north():
		y = pos.Y
	case h.south():
		y = pos.Bottom()
	}
	return vector.Pt{X: x, Y: y}
}

// Anchor returns the point that stays fixed while h is dragged: the opposite
// corner for corner grips, the midpoint of the opposite edge for edge grips.
func (h Handle) Anchor(pos domain.CanvasPosition) vector.Pt {
	return h.Opposite().Point(pos)
}

// Opposite returns the grip diagonally across from h.
func (h Handle) Opposite() Handle {
	switch h {
	case N:
		return S
	case S:
		return N
	case E:
		return W
	case W:
		return E
	case NE:
		return SW
	case SW:
		return NE
	case NW:
		return SE
	case SE:
		return NW
	}
	return HandleNone
}

// HitHandle returns the grip of pos within tolerance (logical units) of p.
// Corners win over edges when both are in reach.
func HitHandle(pos domain.CanvasPosition, p vector.Pt, tolerance float64) (Handle, bool) {
	for _, h := range All {
		g := h.Point(pos)
		if abs(p.X-g.X) <= tolerance && abs(p.Y-g.Y) <= tolerance {
			return h, true
		}
	}
	return HandleNone, false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
