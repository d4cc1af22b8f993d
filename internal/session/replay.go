/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	"pagecraft/internal/media"
	"pagecraft/internal/vector"
	"pagecraft/internal/viewport"
)

// Script is a recorded pointer session replayed by Replay.
type Script struct {
	Page  string `json:"page,omitempty"`
	Steps []Step `json:"steps"`
}

// Step is one input. Coordinates are in screen space.
//
// Ops: down, move, up, cancel, dblclick, draft, blur, key, zoom, select,
// page, readonly, crop, undo, redo, flush.
type Step struct {
	Op       string           `json:"op"`
	X        float64          `json:"x,omitempty"`
	Y        float64          `json:"y,omitempty"`
	Pointer  int              `json:"pointer,omitempty"`
	Touch    bool             `json:"touch,omitempty"`
	Shift    bool             `json:"shift,omitempty"`
	InEditor bool             `json:"inEditor,omitempty"`
	Key      string           `json:"key,omitempty"`
	Text     string           `json:"text,omitempty"`
	Factor   float64          `json:"factor,omitempty"`
	ID       string           `json:"id,omitempty"`
	On       bool             `json:"on,omitempty"`
	Crop     *domain.CropData `json:"crop,omitempty"`
}

// Result is the page state after a replay.
type Result struct {
	Page      string                 `json:"page"`
	Mode      string                 `json:"mode"`
	Selected  string                 `json:"selected,omitempty"`
	Transform viewport.Transform     `json:"transform"`
	Elements  []domain.CanvasElement `json:"elements"`
	Errors    []string               `json:"errors,omitempty"`
}

// LoadScript reads a script from a JSON file.
func LoadScript(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, err
	}
	defer f.Close()
	return DecodeScript(f)
}

// DecodeScript parses a script and rejects unknown ops.
func DecodeScript(r io.Reader) (Script, error) {
	var sc Script
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	for i, st := range sc.Steps {
		if _, ok := stepOps[st.Op]; !ok {
			return Script{}, fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
	}
	return sc, nil
}

var keyNames = map[string]interact.Key{
	"escape": interact.KeyEscape,
	"left":   interact.KeyLeft,
	"right":  interact.KeyRight,
	"up":     interact.KeyUp,
	"down":   interact.KeyDown,
}

var stepOps = map[string]func(s *Session, ctx context.Context, st Step) error{
	"down":     func(s *Session, _ context.Context, st Step) error { s.Controller.OnPointerDown(pointer(st)); return nil },
	"move":     func(s *Session, _ context.Context, st Step) error { s.Controller.OnPointerMove(pointer(st)); return nil },
	"up":       func(s *Session, _ context.Context, st Step) error { s.Controller.OnPointerUp(pointer(st)); return nil },
	"cancel":   func(s *Session, _ context.Context, st Step) error { s.Controller.OnPointerCancel(pointer(st)); return nil },
	"dblclick": func(s *Session, _ context.Context, st Step) error { s.Controller.OnDoubleClick(pointer(st)); return nil },
	"draft":    func(s *Session, _ context.Context, st Step) error { s.Controller.SetDraft(st.Text); return nil },
	"blur":     func(s *Session, _ context.Context, _ Step) error { s.Controller.Blur(); return nil },
	"select":   func(s *Session, _ context.Context, st Step) error { s.Controller.Select(st.ID); return nil },
	"page":     func(s *Session, _ context.Context, st Step) error { s.Controller.SetPage(st.ID); return nil },
	"readonly": func(s *Session, _ context.Context, st Step) error { s.Controller.SetReadOnly(st.On); return nil },
	"key": func(s *Session, _ context.Context, st Step) error {
		k, ok := keyNames[strings.ToLower(st.Key)]
		if !ok {
			return fmt.Errorf("unknown key %q", st.Key)
		}
		s.Controller.OnKey(interact.KeyEvent{Key: k, Shift: st.Shift})
		return nil
	},
	"zoom": func(s *Session, _ context.Context, st Step) error {
		s.Controller.ZoomAt(st.Factor, vector.Pt{X: st.X, Y: st.Y})
		return nil
	},
	"crop": func(s *Session, ctx context.Context, st Step) error {
		if st.Crop == nil {
			return fmt.Errorf("crop step needs a crop")
		}
		return s.Controller.SaveCrop(ctx, st.ID, *st.Crop, s.NaturalSize(st.ID))
	},
	"undo":  func(s *Session, _ context.Context, _ Step) error { _, err := s.Controller.Undo(); return err },
	"redo":  func(s *Session, _ context.Context, _ Step) error { _, err := s.Controller.Redo(); return err },
	"flush": func(s *Session, ctx context.Context, _ Step) error { return s.Bridge.FlushAll(ctx) },
}

func pointer(st Step) interact.PointerEvent {
	kind := interact.Mouse
	if st.Touch {
		kind = interact.Touch
	}
	return interact.PointerEvent{ID: st.Pointer, Kind: kind, Screen: vector.Pt{X: st.X, Y: st.Y}, Shift: st.Shift, InEditor: st.InEditor}
}

// NaturalSize probes the intrinsic pixel size of an image element. When the
// file cannot be read the frame size stands in, which makes cover-fit the
// identity.
func (s *Session) NaturalSize(id string) vector.Size {
	el, _, ok := s.Board.Element(id)
	if !ok {
		return vector.Size{}
	}
	if info, err := media.ProbeFile(s.Handle.Root, el.ImageRef); err == nil {
		return info.Size
	}
	return vector.Size{W: el.Position.Width, H: el.Position.Height}
}

// Replay feeds sc through the controller. Step errors are collected, not fatal.
// Pending writes are flushed before the result is taken.
func (s *Session) Replay(ctx context.Context, sc Script) (Result, error) {
	if sc.Page != "" {
		if _, ok := s.Board.Page(sc.Page); !ok {
			return Result{}, fmt.Errorf("page %q: %w", sc.Page, domain.ErrNotFound)
		}
		s.Controller.SetPage(sc.Page)
	}
	var res Result
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := stepOps[st.Op](s, ctx, st); err != nil {
			s.log.Warn("replay step failed", slog.Int("step", i), slog.String("op", st.Op), slog.Any("err", err))
			res.Errors = append(res.Errors, fmt.Sprintf("step %d (%s): %v", i, st.Op, err))
		}
	}
	if err := s.Bridge.FlushAll(ctx); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("flush: %v", err))
	}
	res.Page = s.Controller.PageID()
	res.Mode = s.Controller.Mode().String()
	res.Selected = s.Controller.Selected()
	res.Transform = s.Controller.Transform()
	if pg, ok := s.Board.Page(res.Page); ok {
		res.Elements = pg.Elements
	}
	return res, nil
}
