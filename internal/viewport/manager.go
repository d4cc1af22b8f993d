/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import (
	"log/slog"

	applog "pagecraft/internal/log"
	"pagecraft/internal/vector"
)

// minPinchDistance guards the pinch ratio against a zero baseline.
const minPinchDistance = 1e-6

// Options configures a Manager. Zero values select the package defaults.
type Options struct {
	MinScale     float64
	MaxScale     float64
	PanThreshold float64
	Enabled      bool
}

func (o Options) withDefaults() Options {
	if o.MinScale <= 0 {
		o.MinScale = MinScale
	}
	if o.MaxScale <= 0 || o.MaxScale < o.MinScale {
		o.MaxScale = MaxScale
	}
	if o.PanThreshold <= 0 {
		o.PanThreshold = PanThreshold
	}
	return o
}

// Manager owns the viewport transform and the gesture state that drives it.
// It is not safe for concurrent use; feed it from the UI event loop.
type Manager struct {
	opts    Options
	enabled bool
	t       Transform

	// active pointers in arrival order; the first two form a pinch
	ids      []int
	pointers map[int]vector.Pt

	// one-finger pan baseline
	panT Transform
	panP vector.Pt

	// two-finger pinch baseline
	pinchT    Transform
	pinchMid  vector.Pt
	pinchDist float64

	didPan bool
	log    *slog.Logger
}

// NewManager returns a manager at the identity transform.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:     opts,
		enabled:  opts.Enabled,
		t:        Identity(),
		pointers: make(map[int]vector.Pt),
		log:      applog.WithComponent("viewport"),
	}
}

// Transform returns the current transform.
func (m *Manager) Transform() Transform { return m.t }

// SetTransform replaces the transform. The scale is clamped; non-finite input is ignored.
func (m *Manager) SetTransform(t Transform) {
	if !vector.IsFinite(t.Scale) || !vector.IsFinite(t.X) || !vector.IsFinite(t.Y) {
		return
	}
	t.Scale = m.clampScale(t.Scale)
	m.t = t
	m.rebaseline()
}

// Enabled reports whether gestures are recognised.
func (m *Manager) Enabled() bool { return m.enabled }

// SetEnabled toggles gesture recognition. Disabling drops any gesture in progress.
func (m *Manager) SetEnabled(on bool) {
	if m.enabled == on {
		return
	}
	m.enabled = on
	if !on {
		m.clearPointers()
	}
}

// Reset returns to the identity transform and forgets every pointer.
// Called whenever the active page changes.
func (m *Manager) Reset() {
	m.t = Identity()
	m.clearPointers()
	m.didPan = false
}

// Active returns the number of pointers the manager is tracking.
func (m *Manager) Active() int { return len(m.ids) }

// Tracking reports whether id takes part in the current gesture.
func (m *Manager) Tracking(id int) bool {
	_, ok := m.pointers[id]
	return ok
}

// DidPan reports whether the current or most recent gesture moved past the
// pan threshold. A click that ends such a gesture should not clear selection.
func (m *Manager) DidPan() bool { return m.didPan }

// PointerDown starts tracking a pointer. It reports false when gestures are disabled.
func (m *Manager) PointerDown(id int, p vector.Pt) bool {
	if !m.enabled || !p.Finite() {
		return false
	}
	if _, ok := m.pointers[id]; ok {
		m.pointers[id] = p
		m.rebaseline()
		return true
	}
	m.ids = append(m.ids, id)
	m.pointers[id] = p
	if len(m.ids) == 1 {
		m.didPan = false
	}
	m.rebaseline()
	if len(m.ids) == 2 {
		m.log.Debug("pinch started", slog.Float64("distance", m.pinchDist), slog.Float64("scale", m.t.Scale))
	}
	return true
}

// PointerMove updates a tracked pointer and applies pan or pinch. It reports
// whether the transform changed.
func (m *Manager) PointerMove(id int, p vector.Pt) bool {
	if !m.enabled || !p.Finite() {
		return false
	}
	if _, ok := m.pointers[id]; !ok {
		return false
	}
	m.pointers[id] = p
	prev := m.t
	switch {
	case len(m.ids) == 1:
		d := p.Sub(m.panP)
		m.t = Transform{Scale: m.panT.Scale, X: m.panT.X + d.X, Y: m.panT.Y + d.Y}
		if d.Len() > m.opts.PanThreshold {
			m.didPan = true
		}
	case len(m.ids) >= 2:
		if m.pinchDist <= minPinchDistance {
			return false
		}
		a, b := m.pointers[m.ids[0]], m.pointers[m.ids[1]]
		mid := vector.Midpoint(a, b)
		dist := vector.Distance(a, b)
		next := m.clampScale(m.pinchT.Scale * dist / m.pinchDist)
		// logical point under the original midpoint stays under the current one
		anchor := m.pinchMid.Sub(vector.Pt{X: m.pinchT.X, Y: m.pinchT.Y}).Div(m.pinchT.Scale)
		tr := mid.Sub(anchor.Mul(next))
		if !tr.Finite() || !vector.IsFinite(next) {
			return false
		}
		m.t = Transform{Scale: next, X: tr.X, Y: tr.Y}
		if vector.Distance(mid, m.pinchMid) > m.opts.PanThreshold || abs(dist-m.pinchDist) > m.opts.PanThreshold {
			m.didPan = true
		}
	}
	return m.t != prev
}

// PointerUp stops tracking id. When fewer than two pointers remain the pan
// baseline is taken from the remaining pointer so the view does not jump.
func (m *Manager) PointerUp(id int) {
	if _, ok := m.pointers[id]; !ok {
		return
	}
	delete(m.pointers, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	m.rebaseline()
}

// PointerCancel is PointerUp for interrupted pointers.
func (m *Manager) PointerCancel(id int) { m.PointerUp(id) }

// ZoomAt multiplies the scale by factor keeping the screen point focal fixed.
// Used for wheel and keyboard zoom.
func (m *Manager) ZoomAt(factor float64, focal vector.Pt) bool {
	if factor <= 0 || !vector.IsFinite(factor) || !focal.Finite() {
		return false
	}
	prev := m.t
	next := m.clampScale(m.t.Scale * factor)
	anchor := m.t.ToLogical(focal)
	tr := focal.Sub(anchor.Mul(next))
	m.t = Transform{Scale: next, X: tr.X, Y: tr.Y}
	m.rebaseline()
	return m.t != prev
}

func (m *Manager) rebaseline() {
	switch {
	case len(m.ids) == 1:
		m.panT = m.t
		m.panP = m.pointers[m.ids[0]]
	case len(m.ids) >= 2:
		a, b := m.pointers[m.ids[0]], m.pointers[m.ids[1]]
		m.pinchT = m.t
		m.pinchMid = vector.Midpoint(a, b)
		m.pinchDist = vector.Distance(a, b)
	}
}

func (m *Manager) clearPointers() {
	m.ids = m.ids[:0]
	for k := range m.pointers {
		delete(m.pointers, k)
	}
}

func (m *Manager) clampScale(s float64) float64 {
	return vector.Clamp(s, m.opts.MinScale, m.opts.MaxScale)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
