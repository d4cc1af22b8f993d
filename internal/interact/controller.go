/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package interact turns pointer, touch and key input into element moves,
// resizes and text edits. A Controller owns one page at a time.
package interact

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"pagecraft/internal/commit"
	"pagecraft/internal/domain"
	"pagecraft/internal/log"
	"pagecraft/internal/media"
	"pagecraft/internal/resize"
	"pagecraft/internal/vector"
	"pagecraft/internal/viewport"
)

// Config tunes the controller.
type Config struct {
	ReadOnly bool
	// LockImageAspect keeps image proportions while resizing; Shift inverts it.
	LockImageAspect bool
	SmartGuides     bool
	// GuideThreshold is in screen pixels.
	GuideThreshold float64
	// HandleTolerance is the grip hit radius in screen pixels.
	HandleTolerance float64
	Grid            float64
	// MinImageSize and MinTextSize override the per-type minimums when positive.
	MinImageSize float64
	MinTextSize  float64
	Viewport     viewport.Options
}

func (c Config) withDefaults() Config {
	if c.HandleTolerance <= 0 {
		c.HandleTolerance = 8
	}
	if c.GuideThreshold <= 0 {
		c.GuideThreshold = 6
	}
	if c.Grid <= 0 {
		c.Grid = vector.GridSize
	}
	return c
}

// Controller is the gesture state machine. It is not safe for concurrent
// use; call it from the UI event loop.
type Controller struct {
	cfg      Config
	model    Model
	commit   Committer
	selector domain.Selector
	host     Host
	vp       *viewport.Manager
	log      *slog.Logger

	pageID   string
	readOnly bool
	state    State
	selected string
	guides   []vector.GuideLine
	detach   func()

	// background press waiting to become a deselect click
	bgPointer int
	bgDown    bool
}

// New wires a controller. host and selector may be nil.
func New(model Model, committer Committer, selector domain.Selector, host Host, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	if host == nil {
		host = NopHost{}
	}
	if selector == nil {
		selector = domain.SelectorFunc(func(string) {})
	}
	return &Controller{
		cfg:      cfg,
		model:    model,
		commit:   committer,
		selector: selector,
		host:     host,
		vp:       viewport.NewManager(cfg.Viewport),
		log:      log.WithComponent("interact"),
		readOnly: cfg.ReadOnly,
		state:    &Idle{},
	}
}

// State returns the current interaction state.
func (c *Controller) State() State { return c.state }

// Mode is shorthand for State().Mode().
func (c *Controller) Mode() Mode { return c.state.Mode() }

// PageID returns the active page.
func (c *Controller) PageID() string { return c.pageID }

// Selected returns the selected element id or "".
func (c *Controller) Selected() string { return c.selected }

// ReadOnly reports whether edits are blocked.
func (c *Controller) ReadOnly() bool { return c.readOnly }

// Viewport exposes the pan/zoom manager.
func (c *Controller) Viewport() *viewport.Manager { return c.vp }

// Transform returns the current viewport transform.
func (c *Controller) Transform() viewport.Transform { return c.vp.Transform() }

// Guides returns the smart guides of the running drag.
func (c *Controller) Guides() []vector.GuideLine { return c.guides }

// GestureActive reports whether per-gesture listeners are attached.
func (c *Controller) GestureActive() bool { return c.detach != nil }

// SetPage switches the active page. Drags and resizes are rolled back, an
// open edit is committed and the viewport returns to identity.
func (c *Controller) SetPage(pageID string) {
	if pageID == c.pageID {
		return
	}
	c.endInteraction(true)
	c.vp.Reset()
	c.bgDown = false
	c.pageID = pageID
	c.setSelected("")
	c.log.Debug("page changed", slog.String("page", pageID))
}

// SetReadOnly toggles viewer mode. Running gestures are rolled back and an
// open edit is discarded.
func (c *Controller) SetReadOnly(on bool) {
	if c.readOnly == on {
		return
	}
	if on {
		c.endInteraction(false)
	}
	c.readOnly = on
}

// SetGesturesEnabled toggles viewport pan and pinch.
func (c *Controller) SetGesturesEnabled(on bool) { c.vp.SetEnabled(on) }

// Select sets the selection directly, e.g. from a layers list.
func (c *Controller) Select(id string) { c.setSelected(id) }

// Preview returns the position to render for id, including an uncommitted
// drag or resize.
func (c *Controller) Preview(id string) (domain.CanvasPosition, bool) {
	switch s := c.state.(type) {
	case *Dragging:
		if s.ElementID == id {
			return s.Preview, true
		}
	case *Resizing:
		if s.ElementID == id {
			return s.Preview, true
		}
	}
	el, pageID, ok := c.model.Element(id)
	if !ok || pageID != c.pageID {
		return domain.CanvasPosition{}, false
	}
	return el.Position, true
}

// Draft returns the text being edited.
func (c *Controller) Draft() (string, bool) {
	if e, ok := c.state.(*Editing); ok {
		return e.Draft, true
	}
	return "", false
}

// HitTest reports what lies under a screen point. Grips of the selected
// element win over element bodies; front-most elements win over those below.
func (c *Controller) HitTest(screen vector.Pt) Target {
	page, ok := c.model.Page(c.pageID)
	if !ok || !screen.Finite() {
		return Target{}
	}
	t := c.vp.Transform()
	p := t.ToLogical(screen)
	if c.selected != "" && !c.readOnly {
		if el := page.Element(c.selected); el != nil {
			pos, _ := c.Preview(el.ID)
			if h, hit := resize.HitHandle(pos, p, c.cfg.HandleTolerance/t.Scale); hit {
				return Target{Kind: TargetHandle, ElementID: el.ID, Handle: h}
			}
		}
	}
	for i := len(page.Elements) - 1; i >= 0; i-- {
		el := page.Elements[i]
		if el.Position.Contains(p.X, p.Y) {
			return Target{Kind: TargetElement, ElementID: el.ID}
		}
	}
	return Target{}
}

// OnPointerDown dispatches a press.
func (c *Controller) OnPointerDown(ev PointerEvent) {
	if !ev.Screen.Finite() {
		return
	}
	if e, ok := c.state.(*Editing); ok {
		if ev.InEditor {
			return
		}
		// click outside editor and toolbar
		c.finishEdit(e, true)
	}
	if c.vp.Tracking(ev.ID) {
		return
	}
	if c.vp.Active() > 0 {
		// another finger joins a pan or pinch
		c.vp.PointerDown(ev.ID, ev.Screen)
		return
	}

	target := c.HitTest(ev.Screen)
	switch s := c.state.(type) {
	case *Dragging:
		if target.Kind == TargetHandle && target.ElementID == s.ElementID {
			c.finishGesture(true)
			c.beginResize(target, ev)
			return
		}
		if ev.Kind == Touch && ev.ID != s.PointerID {
			c.handOverToPinch(s.PointerID, s.Last, ev)
		}
		return
	case *Resizing:
		if ev.Kind == Touch && ev.ID != s.PointerID {
			c.handOverToPinch(s.PointerID, s.Last, ev)
		}
		return
	}

	switch target.Kind {
	case TargetHandle:
		c.beginResize(target, ev)
	case TargetElement:
		if c.readOnly {
			c.startBackground(ev)
			return
		}
		c.beginDrag(target.ElementID, ev)
	default:
		c.startBackground(ev)
	}
}

// OnPointerMove updates the running gesture.
func (c *Controller) OnPointerMove(ev PointerEvent) {
	if !ev.Screen.Finite() {
		return
	}
	if c.vp.Tracking(ev.ID) {
		c.vp.PointerMove(ev.ID, ev.Screen)
		return
	}
	switch s := c.state.(type) {
	case *Dragging:
		if ev.ID == s.PointerID {
			s.Last = ev.Screen
			s.Preview = c.dragPosition(s.DragState, ev.Screen)
		}
	case *Resizing:
		if ev.ID == s.PointerID {
			st := s.State
			if resize.LockAspect(c.elementType(s.ElementID), c.cfg.LockImageAspect, ev.Shift) != st.Locked() {
				st = c.relock(st, !st.Locked())
				s.State = st
			}
			s.Last = ev.Screen
			s.Preview = resize.Solve(st, ev.Screen, c.vp.Transform().Scale)
		}
	}
}

// OnPointerUp completes the running gesture.
func (c *Controller) OnPointerUp(ev PointerEvent) {
	if c.vp.Tracking(ev.ID) {
		c.vp.PointerUp(ev.ID)
		if c.bgDown && c.bgPointer == ev.ID && c.vp.Active() == 0 {
			c.bgDown = false
			if !c.vp.DidPan() {
				c.setSelected("")
			}
		}
		return
	}
	if c.ownsPointer(ev.ID) {
		c.finishGesture(true)
	}
}

// OnPointerCancel aborts the running gesture without committing.
func (c *Controller) OnPointerCancel(ev PointerEvent) {
	if c.vp.Tracking(ev.ID) {
		c.vp.PointerCancel(ev.ID)
		if c.bgPointer == ev.ID {
			c.bgDown = false
		}
		return
	}
	if c.ownsPointer(ev.ID) {
		c.finishGesture(false)
	}
}

// OnDoubleClick starts inline editing of a text element.
func (c *Controller) OnDoubleClick(ev PointerEvent) {
	if c.readOnly {
		return
	}
	target := c.HitTest(ev.Screen)
	if target.Kind != TargetElement {
		return
	}
	c.BeginEdit(target.ElementID)
}

// BeginEdit enters editing for a text element. An edit of another element is
// committed first.
func (c *Controller) BeginEdit(id string) bool {
	if c.readOnly {
		return false
	}
	el, pageID, ok := c.model.Element(id)
	if !ok || pageID != c.pageID || !el.Type.IsText() {
		return false
	}
	switch s := c.state.(type) {
	case *Editing:
		if s.ElementID == id {
			return true
		}
		c.finishEdit(s, true)
	case *Dragging, *Resizing:
		return false
	}
	caret := utf8.RuneCountInString(el.Content)
	c.state = &Editing{EditingState{ElementID: id, Original: el.Content, Draft: el.Content, Caret: caret}}
	c.setSelected(id)
	c.host.FocusEditor(id, caret)
	c.log.Debug("edit started", slog.String("element", id))
	return true
}

// SetDraft replaces the draft text of the running edit.
func (c *Controller) SetDraft(text string) {
	if e, ok := c.state.(*Editing); ok {
		e.Draft = text
		e.Caret = utf8.RuneCountInString(text)
	}
}

// Blur ends the running edit, committing a changed draft.
func (c *Controller) Blur() {
	if e, ok := c.state.(*Editing); ok {
		c.finishEdit(e, true)
	}
}

// OnKey handles Escape and arrow nudges.
func (c *Controller) OnKey(ev KeyEvent) {
	switch ev.Key {
	case KeyEscape:
		switch s := c.state.(type) {
		case *Editing:
			c.finishEdit(s, false)
		case *Dragging, *Resizing:
			c.finishGesture(false)
		}
	case KeyLeft, KeyRight, KeyUp, KeyDown:
		c.nudge(ev)
	}
}

// ZoomAt zooms the viewport around a screen point, e.g. for the mouse wheel.
func (c *Controller) ZoomAt(factor float64, focal vector.Pt) bool {
	if !c.vp.Enabled() {
		return false
	}
	return c.vp.ZoomAt(factor, focal)
}

// SaveCrop persists an image crop immediately. The zoom is kept at or above
// 1 and the offset limited so the image still covers its frame.
func (c *Controller) SaveCrop(ctx context.Context, id string, crop domain.CropData, natural vector.Size) error {
	if c.readOnly {
		return domain.ErrReadOnly
	}
	el, _, ok := c.model.Element(id)
	if !ok {
		return domain.ErrNotFound
	}
	if el.Type != domain.ElementImage {
		return errors.New("crop: element is not an image")
	}
	_, clamped := media.Fit(natural, el.Position, crop)
	err := c.commit.CommitNow(ctx, commit.CropChange(id, clamped))
	c.setSelected(id)
	return err
}

// Undo reverts the last committed change on the page.
func (c *Controller) Undo() (bool, error) { return c.history(c.commit.Undo) }

// Redo re-applies the last undone change on the page.
func (c *Controller) Redo() (bool, error) { return c.history(c.commit.Redo) }

func (c *Controller) history(fn func(string) (string, bool, error)) (bool, error) {
	if c.readOnly || c.pageID == "" {
		return false, nil
	}
	c.endInteraction(true)
	id, ok, err := fn(c.pageID)
	if ok {
		c.setSelected(id)
	}
	return ok, err
}

// Close ends everything: gestures are rolled back, an edit is committed.
func (c *Controller) Close() {
	c.endInteraction(true)
	c.vp.Reset()
}

func (c *Controller) beginDrag(id string, ev PointerEvent) {
	el, _, ok := c.model.Element(id)
	if !ok {
		return
	}
	c.state = &Dragging{DragState{
		ElementID:     id,
		PointerID:     ev.ID,
		StartPointer:  ev.Screen,
		StartPosition: el.Position,
		Preview:       el.Position,
		Last:          ev.Screen,
	}}
	c.acquire(ev.ID)
	if c.selected != id {
		c.setSelected(id)
	}
	c.log.Debug("drag started", slog.String("element", id))
}

func (c *Controller) beginResize(t Target, ev PointerEvent) {
	el, _, ok := c.model.Element(t.ElementID)
	if !ok || c.readOnly {
		return
	}
	lock := resize.LockAspect(el.Type, c.cfg.LockImageAspect, ev.Shift)
	st := resize.Begin(el, t.Handle, ev.Screen, c.vp.Transform().Scale, lock)
	st.Grid = c.cfg.Grid
	if m := c.minSize(el.Type); m > 0 {
		st.MinSize = m
	}
	c.state = &Resizing{ResizeState{State: st, PointerID: ev.ID, Preview: el.Position, Last: ev.Screen}}
	c.acquire(ev.ID)
	if c.selected != el.ID {
		c.setSelected(el.ID)
	}
	c.log.Debug("resize started", slog.String("element", el.ID), slog.String("handle", t.Handle.String()))
}

func (c *Controller) minSize(t domain.ElementType) float64 {
	if t == domain.ElementImage {
		return c.cfg.MinImageSize
	}
	return c.cfg.MinTextSize
}

func (c *Controller) relock(st resize.State, lock bool) resize.State {
	if !lock {
		st.AspectRatio = 0
		return st
	}
	if st.StartPosition.Height > 0 {
		st.AspectRatio = st.StartPosition.Width / st.StartPosition.Height
	}
	return st
}

func (c *Controller) startBackground(ev PointerEvent) {
	if c.vp.PointerDown(ev.ID, ev.Screen) {
		c.bgDown = true
		c.bgPointer = ev.ID
		return
	}
	// gestures disabled: a plain background click
	c.setSelected("")
}

// handOverToPinch rolls back the drag or resize and feeds both fingers to the viewport.
func (c *Controller) handOverToPinch(firstID int, first vector.Pt, ev PointerEvent) {
	c.finishGesture(false)
	if c.vp.PointerDown(firstID, first) {
		c.vp.PointerDown(ev.ID, ev.Screen)
	}
}

func (c *Controller) dragPosition(s DragState, screen vector.Pt) domain.CanvasPosition {
	t := c.vp.Transform()
	d := t.DeltaToLogical(screen.Sub(s.StartPointer))
	if vector.SnapTo(d.X, c.cfg.Grid) == 0 && vector.SnapTo(d.Y, c.cfg.Grid) == 0 {
		// jitter below half a grid step leaves the element where it was
		c.guides = nil
		return s.StartPosition
	}
	pos := s.StartPosition
	pos.X = vector.SnapTo(pos.X+d.X, c.cfg.Grid)
	pos.Y = vector.SnapTo(pos.Y+d.Y, c.cfg.Grid)
	page, ok := c.model.Page(c.pageID)
	if !ok {
		return pos
	}
	c.guides = nil
	if c.cfg.SmartGuides {
		var siblings []vector.Rect
		for _, el := range page.Elements {
			if el.ID != s.ElementID {
				siblings = append(siblings, toRect(el.Position))
			}
		}
		anchors := vector.PageAnchors(vector.R(0, 0, page.Width, page.Height), siblings)
		snapped, guides := vector.ComputeSmartGuides(toRect(pos), anchors, vector.SnapOptions{
			Threshold:     c.cfg.GuideThreshold / t.Scale,
			SnapToEdges:   true,
			SnapToCenters: true,
		})
		pos.X, pos.Y = snapped.X, snapped.Y
		c.guides = guides
	}
	return viewport.Restrict(pos, page.Width, page.Height)
}

func (c *Controller) nudge(ev KeyEvent) {
	if c.readOnly || c.selected == "" {
		return
	}
	if _, idle := c.state.(*Idle); !idle {
		return
	}
	el, pageID, ok := c.model.Element(c.selected)
	if !ok || pageID != c.pageID {
		return
	}
	step := c.cfg.Grid
	if ev.Shift {
		step = 1
	}
	pos := el.Position
	switch ev.Key {
	case KeyLeft:
		pos.X -= step
	case KeyRight:
		pos.X += step
	case KeyUp:
		pos.Y -= step
	case KeyDown:
		pos.Y += step
	}
	if page, ok := c.model.Page(c.pageID); ok {
		pos = viewport.Restrict(pos, page.Width, page.Height)
	}
	if pos == el.Position {
		return
	}
	if err := c.commit.Commit(commit.PositionChange(el.ID, pos)); err != nil {
		c.log.Warn("nudge failed", slog.String("element", el.ID), slog.Any("err", err))
	}
}

func (c *Controller) ownsPointer(id int) bool {
	switch s := c.state.(type) {
	case *Dragging:
		return s.PointerID == id
	case *Resizing:
		return s.PointerID == id
	}
	return false
}

// finishGesture leaves Dragging or Resizing. With commit false it is a
// rollback: the preview is dropped and nothing is written.
func (c *Controller) finishGesture(commitIt bool) {
	var id string
	var start, preview domain.CanvasPosition
	switch s := c.state.(type) {
	case *Dragging:
		id, start, preview = s.ElementID, s.StartPosition, s.Preview
	case *Resizing:
		id, start, preview = s.ElementID, s.StartPosition, s.Preview
	default:
		return
	}
	mode := c.state.Mode()
	c.state = &Idle{}
	c.guides = nil
	c.release()
	if !commitIt {
		c.log.Debug("gesture cancelled", slog.String("mode", mode.String()), slog.String("element", id))
		return
	}
	if preview != start {
		if err := c.commit.Commit(commit.PositionChange(id, preview)); err != nil {
			c.log.Warn("commit failed", slog.String("element", id), slog.Any("err", err))
		}
	}
	c.setSelected(id)
}

func (c *Controller) finishEdit(e *Editing, commitIt bool) {
	c.state = &Idle{}
	if commitIt && e.Draft != e.Original {
		if err := c.commit.Submit(commit.ContentChange(e.ElementID, e.Draft)); err != nil {
			c.log.Warn("text commit failed", slog.String("element", e.ElementID), slog.Any("err", err))
		}
	}
	if commitIt {
		c.setSelected(e.ElementID)
	}
	c.log.Debug("edit finished", slog.String("element", e.ElementID), slog.Bool("committed", commitIt))
}

// endInteraction rolls back gestures and closes an edit, committing it
// when commitEdit is set.
func (c *Controller) endInteraction(commitEdit bool) {
	switch s := c.state.(type) {
	case *Dragging, *Resizing:
		c.finishGesture(false)
	case *Editing:
		c.finishEdit(s, commitEdit)
	}
}

func (c *Controller) acquire(pointerID int) {
	c.host.CapturePointer(pointerID)
	if c.detach != nil {
		return
	}
	c.detach = c.host.AttachGestureListeners()
	if c.detach == nil {
		c.detach = func() {}
	}
}

func (c *Controller) release() {
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
}

func (c *Controller) setSelected(id string) {
	c.selected = id
	c.selector.SelectElement(id)
}

func (c *Controller) elementType(id string) domain.ElementType {
	el, _, ok := c.model.Element(id)
	if !ok {
		return ""
	}
	return el.Type
}

func toRect(p domain.CanvasPosition) vector.Rect {
	return vector.R(p.X, p.Y, p.Width, p.Height)
}
