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

package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"pagecraft/internal/config"
	"pagecraft/internal/crash"
	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	applog "pagecraft/internal/log"
	"pagecraft/internal/media"
	"pagecraft/internal/resize"
	"pagecraft/internal/session"
	"pagecraft/internal/storage"
	"pagecraft/internal/vector"
	"pagecraft/internal/version"
	"pagecraft/internal/viewport"
)

const (
	handleSize   = 8
	pageMargin   = 24
	wheelStep    = 1.1
	recentPrefs  = "recentProjects"
	maxRecent    = 8
	watchSettle  = 300 * time.Millisecond
	mouseID      = 1
	toolbarWidth = 220
)

var (
	colBackdrop = color.NRGBA{R: 0x3a, G: 0x3d, B: 0x42, A: 0xff}
	colPage     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colFrame    = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	colSelect   = color.NRGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
	colGuide    = color.NRGBA{R: 0xe9, G: 0x1e, B: 0x63, A: 0xff}
	colText     = color.NRGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xff}
	colMissing  = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
)

// Run starts the desktop editor. An empty projectDir asks for a folder.
func Run(projectDir string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	a := app.NewWithID("io.pagecraft.editor")
	w := a.NewWindow("Pagecraft")
	w.Resize(fyne.NewSize(1200, 800))

	ed := newEditor(w, cfg, token, l)
	defer ed.close()
	defer crash.Recover(ed.guard)

	w.SetContent(ed.content())
	w.SetCloseIntercept(func() {
		ed.close()
		w.Close()
	})
	ed.installKeys()

	if projectDir != "" {
		if err := ed.open(projectDir); err != nil {
			dialog.ShowError(err, w)
		}
	} else {
		ed.showRecent(a.Preferences())
	}
	w.ShowAndRun()
	return nil
}

// editor owns the session shown in one window.
type editor struct {
	w      fyne.Window
	cfg    config.AppConfig
	token  string
	log    *slog.Logger
	guard  *crash.Guard
	canvas *PageCanvas
	pages  *widget.Select
	ro     *widget.Check
	status *widget.Label
	entry  *editEntry
	sess   *session.Session
	cancel context.CancelFunc
	shift  bool
}

func newEditor(w fyne.Window, cfg config.AppConfig, token string, l *slog.Logger) *editor {
	ed := &editor{w: w, cfg: cfg, token: token, log: l, guard: &crash.Guard{}}
	ed.canvas = NewPageCanvas()
	ed.canvas.onSelect = ed.updateStatus
	ed.entry = newEditEntry()
	ed.entry.Hide()
	ed.entry.OnChanged = func(s string) {
		if ed.sess != nil {
			ed.sess.Controller.SetDraft(s)
		}
	}
	ed.entry.onBlur = func() {
		if ed.sess != nil {
			ed.sess.Controller.Blur()
		}
		ed.entry.Hide()
		ed.canvas.Refresh()
	}
	ed.entry.onEscape = func() {
		if ed.sess != nil {
			ed.sess.Controller.OnKey(interact.KeyEvent{Key: interact.KeyEscape})
		}
		ed.entry.Hide()
		ed.w.Canvas().Unfocus()
		ed.canvas.Refresh()
	}
	ed.canvas.onEdit = ed.showEditor
	ed.pages = widget.NewSelect(nil, func(name string) {
		if ed.sess == nil {
			return
		}
		for _, pg := range ed.sess.Board.Project().Pages {
			if pageLabel(pg) == name && pg.ID != ed.sess.Controller.PageID() {
				ed.sess.Controller.SetPage(pg.ID)
				ed.canvas.fitPage()
			}
		}
	})
	ed.ro = widget.NewCheck("Read-only", func(on bool) {
		if ed.sess != nil {
			ed.sess.Controller.SetReadOnly(on)
			ed.canvas.Refresh()
		}
	})
	ed.status = widget.NewLabel("No project open")
	return ed
}

func (ed *editor) content() fyne.CanvasObject {
	openBtn := widget.NewButton("Open…", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			if err := ed.open(uri.Path()); err != nil {
				dialog.ShowError(err, ed.w)
			}
		}, ed.w)
	})
	undoBtn := widget.NewButton("Undo", func() { ed.history(true) })
	redoBtn := widget.NewButton("Redo", func() { ed.history(false) })
	zoomIn := widget.NewButton("+", func() { ed.canvas.zoomCenter(wheelStep) })
	zoomOut := widget.NewButton("−", func() { ed.canvas.zoomCenter(1 / wheelStep) })
	fit := widget.NewButton("Fit", func() { ed.canvas.fitPage() })

	side := container.NewVBox(
		openBtn,
		widget.NewLabel("Page"),
		ed.pages,
		ed.ro,
		container.NewGridWithColumns(2, undoBtn, redoBtn),
		container.NewGridWithColumns(3, zoomOut, fit, zoomIn),
	)
	overlay := container.NewWithoutLayout(ed.entry)
	stage := container.NewStack(ed.canvas, overlay)
	split := container.NewHSplit(side, stage)
	split.Offset = float64(toolbarWidth) / 1200
	return container.NewBorder(nil, ed.status, nil, nil, split)
}

// open replaces the current session with the project at dir.
func (ed *editor) open(dir string) error {
	ed.close()
	s, err := session.Open(context.Background(), dir, session.Options{
		Config:   ed.cfg,
		Token:    ed.token,
		Host:     ed.canvas,
		Selector: ed.canvas,
		Reporter: domain.ErrorReporterFunc(func(err error) {
			fyne.Do(func() { dialog.ShowError(err, ed.w) })
		}),
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	ed.sess = s
	ed.guard.Project = s.Handle
	ed.guard.Live = s.Board.Project
	ed.canvas.attach(s)
	s.Board.OnChange(func(string, string) { fyne.Do(ed.canvas.Refresh) })

	ed.refreshPages()
	ed.ro.SetChecked(s.Controller.ReadOnly())
	ed.w.SetTitle(fmt.Sprintf("Pagecraft - %s", s.Handle.Project.Name))
	addRecentProject(fyne.CurrentApp().Preferences(), s.Handle.Root)

	ctx, cancel := context.WithCancel(context.Background())
	ed.cancel = cancel
	go func() {
		err := storage.WatchManifest(ctx, s.Handle.Root, watchSettle, func() {
			fyne.Do(ed.reload)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			ed.log.Warn("manifest watch stopped", slog.Any("err", err))
		}
	}()
	ed.updateStatus()
	return nil
}

func (ed *editor) reload() {
	if ed.sess == nil {
		return
	}
	changed, err := ed.sess.Reload()
	if err != nil {
		ed.log.Warn("reload failed", slog.Any("err", err))
		return
	}
	if changed {
		ed.refreshPages()
		ed.canvas.Refresh()
		ed.status.SetText("Reloaded external changes")
	}
}

func (ed *editor) close() {
	if ed.cancel != nil {
		ed.cancel()
		ed.cancel = nil
	}
	if ed.sess == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ed.sess.Close(ctx); err != nil {
		ed.log.Error("close session failed", slog.Any("err", err))
	}
	ed.sess = nil
	ed.guard.Project, ed.guard.Live = nil, nil
	ed.canvas.attach(nil)
	ed.entry.Hide()
}

func (ed *editor) history(undo bool) {
	if ed.sess == nil {
		return
	}
	fn := ed.sess.Controller.Redo
	if undo {
		fn = ed.sess.Controller.Undo
	}
	if _, err := fn(); err != nil {
		dialog.ShowError(err, ed.w)
	}
	ed.canvas.Refresh()
}

func (ed *editor) refreshPages() {
	pages := ed.sess.Board.Project().Pages
	names := make([]string, 0, len(pages))
	selected := ""
	for _, pg := range pages {
		names = append(names, pageLabel(pg))
		if pg.ID == ed.sess.Controller.PageID() {
			selected = pageLabel(pg)
		}
	}
	ed.pages.Options = names
	if selected != "" {
		ed.pages.SetSelected(selected)
	}
	ed.pages.Refresh()
	ed.canvas.fitPage()
}

func (ed *editor) updateStatus() {
	if ed.sess == nil {
		ed.status.SetText("No project open")
		return
	}
	c := ed.sess.Controller
	msg := fmt.Sprintf("%s | %s | zoom %.0f%%", ed.sess.Kind(), c.Mode(), c.Transform().Scale*100)
	if id := c.Selected(); id != "" {
		msg += " | " + id
	}
	ed.status.SetText(msg)
}

// installKeys routes Escape and the arrow keys to the controller. Shift is
// tracked through the desktop key down/up hooks.
func (ed *editor) installKeys() {
	ed.w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ed.sess == nil {
			return
		}
		k, ok := keyFor(ev.Name)
		if !ok {
			return
		}
		ed.sess.Controller.OnKey(interact.KeyEvent{Key: k, Shift: ed.shift})
		ed.canvas.Refresh()
		ed.updateStatus()
	})
	if dc, ok := ed.w.Canvas().(desktop.Canvas); ok {
		dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				ed.shift = true
			}
		})
		dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				ed.shift = false
			}
		})
	}
}

// showEditor places the inline entry over the element being edited.
func (ed *editor) showEditor(id string) {
	if ed.sess == nil {
		return
	}
	el, _, ok := ed.sess.Board.Element(id)
	if !ok {
		return
	}
	r := ed.canvas.screenRect(el.Position)
	draft, _ := ed.sess.Controller.Draft()
	ed.entry.SetText(draft)
	ed.entry.Move(fyne.NewPos(float32(r.X), float32(r.Y)))
	ed.entry.Resize(fyne.NewSize(float32(r.W), float32(r.H)))
	ed.entry.Show()
	ed.w.Canvas().Focus(ed.entry)
}

func (ed *editor) showRecent(p fyne.Preferences) {
	items := loadRecentProjects(p)
	if len(items) == 0 {
		return
	}
	list := widget.NewList(
		func() int { return len(items) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(items[i]) },
	)
	var d dialog.Dialog
	list.OnSelected = func(i widget.ListItemID) {
		d.Hide()
		if err := ed.open(items[i]); err != nil {
			dialog.ShowError(err, ed.w)
		}
	}
	d = dialog.NewCustom("Recent projects", "Cancel", container.NewGridWrap(fyne.NewSize(480, 240), list), ed.w)
	d.Show()
}

func keyFor(name fyne.KeyName) (interact.Key, bool) {
	switch name {
	case fyne.KeyEscape:
		return interact.KeyEscape, true
	case fyne.KeyLeft:
		return interact.KeyLeft, true
	case fyne.KeyRight:
		return interact.KeyRight, true
	case fyne.KeyUp:
		return interact.KeyUp, true
	case fyne.KeyDown:
		return interact.KeyDown, true
	}
	return 0, false
}

func pageLabel(pg domain.Page) string {
	if pg.Name != "" {
		return pg.Name
	}
	return pg.ID
}

// editEntry is the inline text editor. Losing focus ends the edit, Escape
// discards it.
type editEntry struct {
	widget.Entry
	onBlur   func()
	onEscape func()
}

func newEditEntry() *editEntry {
	e := &editEntry{}
	e.MultiLine = true
	e.Wrapping = fyne.TextWrapWord
	e.ExtendBaseWidget(e)
	return e
}

func (e *editEntry) TypedKey(k *fyne.KeyEvent) {
	if k.Name == fyne.KeyEscape && e.onEscape != nil {
		e.onEscape()
		return
	}
	e.Entry.TypedKey(k)
}

func (e *editEntry) FocusLost() {
	e.Entry.FocusLost()
	if e.onBlur != nil {
		e.onBlur()
	}
}

// PageCanvas draws the current page through the controller's viewport and
// forwards pointer input to it. It also serves as the controller's host and
// selection sink.
type PageCanvas struct {
	widget.BaseWidget

	sess     *session.Session
	onSelect func()
	onEdit   func(id string)
	lastPos  fyne.Position
	down     bool
	images   map[string]image.Image
}

var (
	_ interact.Host      = (*PageCanvas)(nil)
	_ domain.Selector    = (*PageCanvas)(nil)
	_ desktop.Mouseable  = (*PageCanvas)(nil)
	_ fyne.Draggable     = (*PageCanvas)(nil)
	_ fyne.Scrollable    = (*PageCanvas)(nil)
	_ fyne.DoubleTappable = (*PageCanvas)(nil)
)

// NewPageCanvas returns an empty canvas.
func NewPageCanvas() *PageCanvas {
	p := &PageCanvas{images: map[string]image.Image{}}
	p.ExtendBaseWidget(p)
	return p
}

func (p *PageCanvas) attach(s *session.Session) {
	p.sess = s
	p.images = map[string]image.Image{}
	p.down = false
	p.Refresh()
}

// CreateRenderer implements fyne.Widget.
func (p *PageCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &pageCanvasRenderer{pc: p, bg: canvas.NewRectangle(colBackdrop)}
	r.Layout(p.Size())
	return r
}

// PreferredSize is the size the canvas asks for before a project is open.
func (p *PageCanvas) PreferredSize() fyne.Size { return fyne.NewSize(800, 600) }

// CapturePointer is a no-op: fyne keeps delivering drag events to the widget
// that saw the press.
func (p *PageCanvas) CapturePointer(int) {}

// AttachGestureListeners is a no-op for the same reason.
func (p *PageCanvas) AttachGestureListeners() func() { return func() {} }

// FocusEditor opens the inline entry.
func (p *PageCanvas) FocusEditor(id string, _ int) {
	if p.onEdit != nil {
		p.onEdit(id)
	}
}

// SelectElement repaints the selection outline.
func (p *PageCanvas) SelectElement(string) {
	p.Refresh()
	if p.onSelect != nil {
		p.onSelect()
	}
}

func (p *PageCanvas) event(pos fyne.Position, shift bool) interact.PointerEvent {
	return interact.PointerEvent{
		ID:     mouseID,
		Kind:   interact.Mouse,
		Screen: vector.Pt{X: float64(pos.X), Y: float64(pos.Y)},
		Shift:  shift,
	}
}

// MouseDown starts a gesture.
func (p *PageCanvas) MouseDown(e *desktop.MouseEvent) {
	if p.sess == nil || e.Button != desktop.MouseButtonPrimary {
		return
	}
	p.down = true
	p.lastPos = e.Position
	p.sess.Controller.OnPointerDown(p.event(e.Position, e.Modifier&fyne.KeyModifierShift != 0))
	p.Refresh()
}

// MouseUp ends the gesture at the release point.
func (p *PageCanvas) MouseUp(e *desktop.MouseEvent) {
	if p.sess == nil || !p.down {
		return
	}
	p.down = false
	p.sess.Controller.OnPointerUp(p.event(e.Position, e.Modifier&fyne.KeyModifierShift != 0))
	p.Refresh()
	if p.onSelect != nil {
		p.onSelect()
	}
}

// Dragged forwards pointer movement while the button is held.
func (p *PageCanvas) Dragged(e *fyne.DragEvent) {
	if p.sess == nil || !p.down {
		return
	}
	p.lastPos = e.Position
	p.sess.Controller.OnPointerMove(p.event(e.Position, false))
	p.Refresh()
}

// DragEnd ends the gesture when the release happens outside the widget and
// MouseUp never arrives.
func (p *PageCanvas) DragEnd() {
	if p.sess == nil || !p.down {
		return
	}
	p.down = false
	p.sess.Controller.OnPointerUp(p.event(p.lastPos, false))
	p.Refresh()
}

// DoubleTapped begins inline text editing.
func (p *PageCanvas) DoubleTapped(e *fyne.PointEvent) {
	if p.sess == nil {
		return
	}
	p.sess.Controller.OnDoubleClick(p.event(e.Position, false))
	p.Refresh()
}

// Scrolled zooms around the pointer.
func (p *PageCanvas) Scrolled(e *fyne.ScrollEvent) {
	if p.sess == nil || e.Scrolled.DY == 0 {
		return
	}
	f := wheelStep
	if e.Scrolled.DY < 0 {
		f = 1 / wheelStep
	}
	if p.sess.Controller.ZoomAt(f, vector.Pt{X: float64(e.Position.X), Y: float64(e.Position.Y)}) {
		p.Refresh()
		if p.onSelect != nil {
			p.onSelect()
		}
	}
}

func (p *PageCanvas) zoomCenter(f float64) {
	if p.sess == nil {
		return
	}
	sz := p.Size()
	if p.sess.Controller.ZoomAt(f, vector.Pt{X: float64(sz.Width) / 2, Y: float64(sz.Height) / 2}) {
		p.Refresh()
		if p.onSelect != nil {
			p.onSelect()
		}
	}
}

// fitPage scales the current page into the widget with a small margin.
func (p *PageCanvas) fitPage() {
	if p.sess == nil {
		return
	}
	pg, ok := p.sess.Board.Page(p.sess.Controller.PageID())
	if !ok {
		return
	}
	sz := p.Size()
	if sz.Width <= 0 || sz.Height <= 0 {
		sz = p.PreferredSize()
	}
	t := fitTransform(float64(sz.Width), float64(sz.Height), pg.Width, pg.Height)
	p.sess.Controller.Viewport().SetTransform(t)
	p.Refresh()
}

// fitTransform centres a page of pw x ph inside a w x h area.
func fitTransform(w, h, pw, ph float64) viewport.Transform {
	if pw <= 0 || ph <= 0 {
		return viewport.Identity()
	}
	s := min((w-2*pageMargin)/pw, (h-2*pageMargin)/ph)
	if s <= 0 {
		s = 1
	}
	return viewport.Transform{Scale: s, X: (w - pw*s) / 2, Y: (h - ph*s) / 2}
}

func (p *PageCanvas) screenRect(pos domain.CanvasPosition) vector.Rect {
	return p.sess.Controller.Transform().ScreenRect(vector.R(pos.X, pos.Y, pos.Width, pos.Height))
}

func (p *PageCanvas) image(ref string) image.Image {
	if img, ok := p.images[ref]; ok {
		return img
	}
	img, err := media.LoadFile(p.sess.Handle.Root, ref)
	if err != nil {
		applog.WithComponent("ui").Debug("image unavailable", slog.String("ref", ref), slog.Any("err", err))
	}
	p.images[ref] = img
	return img
}

type pageCanvasRenderer struct {
	pc      *PageCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *pageCanvasRenderer) Destroy()                     {}
func (r *pageCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *pageCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(200, 150) }
func (r *pageCanvasRenderer) Refresh()                     { r.Layout(r.pc.Size()); canvas.Refresh(r.pc) }

// Layout rebuilds the scene: backdrop, page, elements in z order, the
// selection outline with its handles, then any snap guides.
func (r *pageCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	r.objects = []fyne.CanvasObject{r.bg}
	p := r.pc
	if p.sess == nil {
		return
	}
	c := p.sess.Controller
	pg, ok := p.sess.Board.Page(c.PageID())
	if !ok {
		return
	}
	t := c.Transform()

	page := canvas.NewRectangle(colPage)
	place(page, t.ScreenRect(vector.R(0, 0, pg.Width, pg.Height)))
	r.objects = append(r.objects, page)

	draft, editing := c.Draft()
	var selected vector.Rect
	hasSel := false
	for _, el := range pg.Elements {
		pos := el.Position
		if pv, ok := c.Preview(el.ID); ok {
			pos = pv
		}
		sr := p.screenRect(pos)
		if el.Type == domain.ElementImage {
			r.objects = append(r.objects, r.imageObjects(el, pos, sr)...)
		} else {
			text := el.Content
			if editing && c.Selected() == el.ID {
				text = draft
			}
			r.objects = append(r.objects, textObject(el.Type, text, sr, t.Scale))
		}
		if el.ID == c.Selected() {
			selected, hasSel = sr, true
		}
	}
	if hasSel {
		outline := canvas.NewRectangle(color.Transparent)
		outline.StrokeColor = colSelect
		outline.StrokeWidth = 1.5
		place(outline, selected)
		r.objects = append(r.objects, outline)
		if !c.ReadOnly() && c.Mode() != interact.ModeEditing {
			for _, h := range resize.All {
				pt := h.Point(domain.CanvasPosition{X: selected.X, Y: selected.Y, Width: selected.W, Height: selected.H})
				hr := canvas.NewRectangle(colPage)
				hr.StrokeColor = colSelect
				hr.StrokeWidth = 1
				place(hr, vector.R(pt.X-handleSize/2, pt.Y-handleSize/2, handleSize, handleSize))
				r.objects = append(r.objects, hr)
			}
		}
	}
	for _, g := range c.Guides() {
		ln := canvas.NewLine(colGuide)
		ln.StrokeWidth = 1
		a, b := t.ToScreen(g.From), t.ToScreen(g.To)
		ln.Position1 = fyne.NewPos(float32(a.X), float32(a.Y))
		ln.Position2 = fyne.NewPos(float32(b.X), float32(b.Y))
		r.objects = append(r.objects, ln)
	}
}

func (r *pageCanvasRenderer) imageObjects(el domain.CanvasElement, pos domain.CanvasPosition, sr vector.Rect) []fyne.CanvasObject {
	var img image.Image
	if el.ImageRef != "" {
		img = r.pc.image(el.ImageRef)
	}
	if img == nil {
		ph := canvas.NewRectangle(colMissing)
		ph.StrokeColor = colFrame
		ph.StrokeWidth = 1
		place(ph, sr)
		return []fyne.CanvasObject{ph}
	}
	b := img.Bounds()
	drawn, _ := media.Fit(vector.Size{W: float64(b.Dx()), H: float64(b.Dy())}, pos, el.CropOrDefault())
	src := media.SourceRect(b, drawn, pos.Width, pos.Height)
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok && !src.Empty() {
		img = sub.SubImage(src)
	}
	ci := canvas.NewImageFromImage(img)
	ci.FillMode = canvas.ImageFillStretch
	place(ci, sr)
	return []fyne.CanvasObject{ci}
}

func textObject(typ domain.ElementType, text string, sr vector.Rect, scale float64) fyne.CanvasObject {
	ct := canvas.NewText(text, colText)
	ct.TextSize = float32(textSize(typ) * scale)
	ct.TextStyle = fyne.TextStyle{Bold: typ == domain.ElementHeadline}
	ct.Move(fyne.NewPos(float32(sr.X), float32(sr.Y)))
	return ct
}

// textSize is the logical font size per text element type.
func textSize(typ domain.ElementType) float64 {
	switch typ {
	case domain.ElementHeadline:
		return 36
	case domain.ElementSubheading:
		return 24
	default:
		return 14
	}
}

func place(o fyne.CanvasObject, r vector.Rect) {
	o.Move(fyne.NewPos(float32(r.X), float32(r.Y)))
	o.Resize(fyne.NewSize(float32(r.W), float32(r.H)))
}

// Recent projects are kept as a newline separated preference value.
func loadRecentProjects(p fyne.Preferences) []string {
	var out []string
	for _, s := range strings.Split(p.String(recentPrefs), "\n") {
		if s == "" {
			continue
		}
		if st, err := os.Stat(s); err == nil && st.IsDir() {
			out = append(out, s)
		}
	}
	return out
}

func saveRecentProjects(p fyne.Preferences, items []string) {
	if len(items) > maxRecent {
		items = items[:maxRecent]
	}
	p.SetString(recentPrefs, strings.Join(items, "\n"))
}

func addRecentProject(p fyne.Preferences, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	items := []string{abs}
	for _, s := range loadRecentProjects(p) {
		if s != abs {
			items = append(items, s)
		}
	}
	saveRecentProjects(p, items)
}
