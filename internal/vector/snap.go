/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// GridSize is the snapping grid in logical page units. Every snap in the
// editor uses this value.
const GridSize = 10.0

// Snap rounds v to the nearest multiple of GridSize.
func Snap(v float64) float64 { return SnapTo(v, GridSize) }

// SnapTo rounds v to the nearest multiple of grid. A non-positive grid disables snapping.
func SnapTo(v, grid float64) float64 {
	if grid <= 0 || !IsFinite(v) {
		return v
	}
	return math.Round(v/grid) * grid
}

// ClampMin returns max(v, minimum).
func ClampMin(v, minimum float64) float64 { return math.Max(v, minimum) }

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CoverScale returns the factor that makes content fully cover the frame.
// Degenerate dimensions yield 1.
func CoverScale(contentW, contentH, frameW, frameH float64) float64 {
	if contentW <= 0 || contentH <= 0 || frameW <= 0 || frameH <= 0 {
		return 1
	}
	return math.Max(frameW/contentW, frameH/contentH)
}

// ClampRectTo moves r so that it lies inside bounds. Size is kept. When r is
// larger than bounds on an axis it is pinned to the bounds origin on that axis.
// The resulting origin is never negative.
func ClampRectTo(r, bounds Rect) Rect {
	out := r
	out.X = clampAxis(r.X, r.W, bounds.X, bounds.W)
	out.Y = clampAxis(r.Y, r.H, bounds.Y, bounds.H)
	return out
}

func clampAxis(pos, size, lo, extent float64) float64 {
	hi := lo + extent - size
	if hi < lo {
		hi = lo
	}
	v := Clamp(pos, lo, hi)
	if v < 0 {
		v = 0
	}
	return v
}

// CoverFit returns the rectangle an image of the given natural size occupies
// when cover-fitted into frame, magnified by zoom (values below 1 are treated
// as 1) and shifted by offset. The offset is limited so the image always
// covers the frame; the effective offset is returned alongside.
func CoverFit(content Size, frame Rect, offset Pt, zoom float64) (Rect, Pt) {
	if zoom < 1 || !IsFinite(zoom) {
		zoom = 1
	}
	s := CoverScale(content.W, content.H, frame.W, frame.H) * zoom
	w, h := content.W*s, content.H*s
	if content.W <= 0 || content.H <= 0 {
		w, h = frame.W*zoom, frame.H*zoom
	}
	maxX := (w - frame.W) / 2
	maxY := (h - frame.H) / 2
	off := Pt{Clamp(offset.X, -maxX, maxX), Clamp(offset.Y, -maxY, maxY)}
	x := frame.X + (frame.W-w)/2 + off.X
	y := frame.Y + (frame.H-h)/2 + off.Y
	return Rect{X: x, Y: y, W: w, H: h}, off
}
