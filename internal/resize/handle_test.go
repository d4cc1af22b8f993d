/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package resize

import (
	"testing"

	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

func TestParseHandleRoundTrip(t *testing.T) {
	for _, h := range All {
		got, ok := ParseHandle(h.String())
		if !ok || got != h {
			t.Fatalf("round trip of %s failed: %v %v", h, got, ok)
		}
	}
	if _, ok := ParseHandle("x"); ok {
		t.Fatalf("unknown handle parsed")
	}
	if _, ok := ParseHandle(""); ok {
		t.Fatalf("empty handle parsed")
	}
}

func TestAnchorIsOppositeGrip(t *testing.T) {
	pos := domain.CanvasPosition{X: 10, Y: 20, Width: 100, Height: 50}
	if a := NW.Anchor(pos); a != (vector.Pt{X: 110, Y: 70}) {
		t.Fatalf("nw anchor = %+v", a)
	}
	if a := E.Anchor(pos); a != (vector.Pt{X: 10, Y: 45}) {
		t.Fatalf("e anchor = %+v", a)
	}
	for _, h := range All {
		if h.Opposite().Opposite() != h {
			t.Fatalf("opposite of opposite of %s is not itself", h)
		}
	}
}

func TestHitHandlePrefersCorners(t *testing.T) {
	pos := domain.CanvasPosition{X: 0, Y: 0, Width: 20, Height: 20}
	// with a generous tolerance the top-left point reaches both nw and n
	h, ok := HitHandle(pos, vector.Pt{X: 1, Y: 1}, 12)
	if !ok || h != NW {
		t.Fatalf("expected nw, got %s %v", h, ok)
	}
	if _, ok := HitHandle(pos, vector.Pt{X: 10, Y: 10}, 4); ok {
		t.Fatalf("centre should not hit a handle")
	}
	h, ok = HitHandle(domain.CanvasPosition{X: 0, Y: 0, Width: 200, Height: 100}, vector.Pt{X: 202, Y: 49}, 5)
	if !ok || h != E {
		t.Fatalf("expected e, got %s %v", h, ok)
	}
}
