//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// These tests exercise the canvas adapter against a real session. They are
// gated behind the "fyne" build tag so headless CI does not need a display.
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"pagecraft/internal/config"
	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	"pagecraft/internal/session"
	"pagecraft/internal/storage"
	"pagecraft/internal/viewport"
)

func almostEqual(a, b, eps float64) bool {
	if a > b {
		return a-b <= eps
	}
	return b-a <= eps
}

func openCanvas(t *testing.T) (*PageCanvas, *session.Session) {
	t.Helper()
	test.NewApp()
	root := t.TempDir()
	proj := domain.Project{Name: "Canvas", Pages: []domain.Page{{
		ID: "p1", Width: 800, Height: 600,
		Elements: []domain.CanvasElement{
			{ID: "img", Type: domain.ElementImage, ImageRef: "images/none.png", Position: domain.CanvasPosition{X: 100, Y: 100, Width: 200, Height: 100}},
			{ID: "head", Type: domain.ElementHeadline, Content: "Hello", Position: domain.CanvasPosition{X: 400, Y: 50, Width: 300, Height: 60}},
		},
	}}}
	if _, err := storage.InitProject(root, proj); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	pc := NewPageCanvas()
	s, err := session.Open(context.Background(), root, session.Options{
		Config:   config.Defaults(),
		Host:     pc,
		Selector: pc,
	})
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	pc.attach(s)
	pc.Resize(fyne.NewSize(1000, 800))
	s.Controller.Viewport().SetTransform(viewport.Identity())
	return pc, s
}

func TestPageCanvas_Defaults(t *testing.T) {
	test.NewApp()
	pc := NewPageCanvas()
	if pc.sess != nil {
		t.Fatalf("new canvas should have no session")
	}
	if sz := pc.PreferredSize(); sz.Width != 800 || sz.Height != 600 {
		t.Fatalf("unexpected PreferredSize: %v", sz)
	}
	r := pc.CreateRenderer().(*pageCanvasRenderer)
	r.Layout(fyne.NewSize(300, 200))
	if len(r.Objects()) != 1 {
		t.Fatalf("empty canvas should only draw the backdrop, got %d objects", len(r.Objects()))
	}
}

func TestFitTransformCentresPage(t *testing.T) {
	tr := fitTransform(1000, 800, 800, 600)
	// height is the tighter axis: (800-48)/600
	if !almostEqual(tr.Scale, 752.0/600, 1e-9) {
		t.Fatalf("scale = %v", tr.Scale)
	}
	if !almostEqual(tr.X, (1000-800*tr.Scale)/2, 1e-9) || !almostEqual(tr.Y, pageMargin, 1e-9) {
		t.Fatalf("offset = %v,%v", tr.X, tr.Y)
	}
	if got := fitTransform(100, 100, 0, 10); got != viewport.Identity() {
		t.Fatalf("degenerate page should give identity, got %+v", got)
	}
}

func TestKeyFor(t *testing.T) {
	if k, ok := keyFor(fyne.KeyEscape); !ok || k != interact.KeyEscape {
		t.Fatalf("escape mapping: %v %v", k, ok)
	}
	if k, ok := keyFor(fyne.KeyDown); !ok || k != interact.KeyDown {
		t.Fatalf("down mapping: %v %v", k, ok)
	}
	if _, ok := keyFor(fyne.KeyA); ok {
		t.Fatalf("letters are not routed to the controller")
	}
}

func TestPageCanvas_RendersSelectionHandles(t *testing.T) {
	pc, s := openCanvas(t)
	r := pc.CreateRenderer().(*pageCanvasRenderer)
	r.Layout(pc.Size())
	// backdrop, page, two elements
	if n := len(r.Objects()); n != 4 {
		t.Fatalf("objects without selection = %d", n)
	}
	s.Controller.Select("img")
	r.Layout(pc.Size())
	// plus outline and eight handles
	if n := len(r.Objects()); n != 13 {
		t.Fatalf("objects with selection = %d", n)
	}
	s.Controller.SetReadOnly(true)
	r.Layout(pc.Size())
	if n := len(r.Objects()); n != 5 {
		t.Fatalf("read-only selection should hide handles, got %d objects", n)
	}
}

func TestPageCanvas_MouseDragMovesElement(t *testing.T) {
	pc, s := openCanvas(t)
	pc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(150, 150)}, Button: desktop.MouseButtonPrimary})
	pc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(180, 160)}})
	pc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(200, 170)}})
	if s.Controller.Mode() != interact.ModeDragging {
		t.Fatalf("mode during drag = %v", s.Controller.Mode())
	}
	pc.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(200, 170)}, Button: desktop.MouseButtonPrimary})
	// DragEnd after MouseUp must not end a second gesture
	pc.DragEnd()
	el, _, ok := s.Board.Element("img")
	if !ok {
		t.Fatalf("element missing")
	}
	if el.Position.X != 150 || el.Position.Y != 120 {
		t.Fatalf("position after drag = %+v", el.Position)
	}
	if s.Controller.Selected() != "img" || s.Controller.Mode() != interact.ModeIdle {
		t.Fatalf("selected=%q mode=%v", s.Controller.Selected(), s.Controller.Mode())
	}
}

func TestPageCanvas_ScrollZoomsAroundPointer(t *testing.T) {
	pc, s := openCanvas(t)
	pc.Scrolled(&fyne.ScrollEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(100, 100)}, Scrolled: fyne.Delta{DY: 1}})
	tr := s.Controller.Transform()
	if !almostEqual(tr.Scale, wheelStep, 1e-9) {
		t.Fatalf("scale after wheel = %v", tr.Scale)
	}
	// the focal point keeps its logical position
	if !almostEqual(tr.X, 100-100*wheelStep, 1e-9) {
		t.Fatalf("focal x drifted: %+v", tr)
	}
}
