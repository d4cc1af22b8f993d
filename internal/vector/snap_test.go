/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestSnap(t *testing.T) {
	cases := map[float64]float64{0: 0, 4: 0, 5: 10, 14.9: 10, 253: 250, 122: 120, -6: -10}
	for in, want := range cases {
		if got := Snap(in); got != want {
			t.Fatalf("Snap(%v) = %v, want %v", in, got, want)
		}
	}
	if got := SnapTo(13, 0); got != 13 {
		t.Fatalf("zero grid must disable snapping, got %v", got)
	}
	if got := SnapTo(13, 8); got != 16 {
		t.Fatalf("SnapTo(13, 8) = %v", got)
	}
}

func TestClampMin(t *testing.T) {
	if ClampMin(12, 40) != 40 || ClampMin(90, 40) != 90 {
		t.Fatalf("ClampMin mismatch")
	}
}

func TestCoverScale(t *testing.T) {
	// 400x200 into 100x100: height dominates, 100/200 = 0.5
	if got := CoverScale(400, 200, 100, 100); got != 0.5 {
		t.Fatalf("CoverScale = %v, want 0.5", got)
	}
	if got := CoverScale(50, 100, 200, 100); got != 4 {
		t.Fatalf("CoverScale = %v, want 4", got)
	}
	for _, c := range [][4]float64{{0, 1, 1, 1}, {1, -1, 1, 1}, {1, 1, 0, 1}, {1, 1, 1, 0}} {
		if got := CoverScale(c[0], c[1], c[2], c[3]); got != 1 {
			t.Fatalf("degenerate CoverScale%v = %v, want 1", c, got)
		}
	}
}

func TestClampRectTo(t *testing.T) {
	page := R(0, 0, 600, 800)
	got := ClampRectTo(R(550, 100, 200, 100), page)
	if got.X != 400 || got.Y != 100 {
		t.Fatalf("expected x clamped to 400, got %+v", got)
	}
	got = ClampRectTo(R(-30, -5, 100, 100), page)
	if got.X != 0 || got.Y != 0 {
		t.Fatalf("expected origin clamp, got %+v", got)
	}
	// wider than the page pins to the origin
	got = ClampRectTo(R(50, 0, 900, 100), page)
	if got.X != 0 || got.W != 900 {
		t.Fatalf("oversized rect not pinned: %+v", got)
	}
}

func TestCoverFitKeepsFrameCovered(t *testing.T) {
	frame := R(10, 10, 100, 100)
	r, off := CoverFit(Size{W: 400, H: 200}, frame, Pt{500, 0}, 1)
	if r.W != 200 || r.H != 100 {
		t.Fatalf("unexpected fitted size %+v", r)
	}
	if off.X != 50 {
		t.Fatalf("offset should clamp to 50, got %+v", off)
	}
	if r.X > frame.X || r.X+r.W < frame.X+frame.W || r.Y > frame.Y || r.Y+r.H < frame.Y+frame.H {
		t.Fatalf("image does not cover frame: %+v", r)
	}
	r, _ = CoverFit(Size{W: 400, H: 200}, frame, Pt{}, 0.2)
	if math.Abs(r.H-100) > 1e-9 {
		t.Fatalf("zoom below 1 must be treated as 1, got %+v", r)
	}
}
