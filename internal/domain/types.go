/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"math"
)

// This file defines the page-layout data model: a project holds pages, a page
// owns an ordered list of canvas elements (slice order is z-order, the last
// element renders front-most). Coordinates are logical page units and are
// independent of any viewport zoom or pan.

// Project represents a page-layout project and its metadata.
// It serializes to the human-readable JSON manifest.
type Project struct {
	Name     string   `json:"name"`
	Metadata Metadata `json:"metadata,omitempty"`
	Pages    []Page   `json:"pages"`
}

// Metadata contains optional descriptive metadata for a project.
type Metadata struct {
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Page is a fixed-size canvas.
type Page struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	Elements []CanvasElement `json:"elements"`
}

// ElementType enumerates what can be placed on a page.
type ElementType string

const (
	ElementImage      ElementType = "image"
	ElementHeadline   ElementType = "headline"
	ElementSubheading ElementType = "subheading"
	ElementCaption    ElementType = "caption"
)

// Minimum edge lengths in logical units.
const (
	MinImageSize = 80.0
	MinTextSize  = 40.0
)

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case ElementImage, ElementHeadline, ElementSubheading, ElementCaption:
		return true
	}
	return false
}

// IsText reports whether the element carries editable text.
func (t ElementType) IsText() bool {
	return t == ElementHeadline || t == ElementSubheading || t == ElementCaption
}

// MinSize returns the smallest width or height an element of this type may have.
func (t ElementType) MinSize() float64 {
	if t == ElementImage {
		return MinImageSize
	}
	return MinTextSize
}

// CheckPosition rejects non-finite coordinates and sizes below MinSize.
func (t ElementType) CheckPosition(p CanvasPosition) error {
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidPosition)
		}
	}
	if m := t.MinSize(); p.Width < m || p.Height < m {
		return fmt.Errorf("%w: %s needs at least %gx%g, got %gx%g", ErrInvalidPosition, t, m, m, p.Width, p.Height)
	}
	return nil
}

// CanvasPosition is a rectangle in logical page space.
type CanvasPosition struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns x + width.
func (p CanvasPosition) Right() float64 { return p.X + p.Width }

// Bottom returns y + height.
func (p CanvasPosition) Bottom() float64 { return p.Y + p.Height }

// Contains reports whether the logical point (x, y) lies inside p, edges included.
func (p CanvasPosition) Contains(x, y float64) bool {
	return x >= p.X && y >= p.Y && x <= p.X+p.Width && y <= p.Y+p.Height
}

// CropData is the offset and magnification applied to a cover-fit image.
type CropData struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultCrop is the identity crop.
func DefaultCrop() CropData { return CropData{X: 0, Y: 0, Zoom: 1} }

// CanvasElement is a photograph or a typographic block placed on a page.
type CanvasElement struct {
	ID       string            `json:"id"`
	Type     ElementType       `json:"type"`
	Position CanvasPosition    `json:"position"`
	Content  string            `json:"content,omitempty"`
	ImageRef string            `json:"imageRef,omitempty"`
	Crop     *CropData         `json:"cropData,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
}

// CropOrDefault returns the element crop or the identity crop when unset.
func (e CanvasElement) CropOrDefault() CropData {
	if e.Crop == nil {
		return DefaultCrop()
	}
	return *e.Crop
}

// Clone returns a deep copy so callers can keep a baseline for rollback.
func (e CanvasElement) Clone() CanvasElement {
	c := e
	if e.Crop != nil {
		cp := *e.Crop
		c.Crop = &cp
	}
	if e.Style != nil {
		c.Style = make(map[string]string, len(e.Style))
		for k, v := range e.Style {
			c.Style[k] = v
		}
	}
	return c
}

// Element returns a pointer to the element with id, or nil.
func (p *Page) Element(id string) *CanvasElement {
	for i := range p.Elements {
		if p.Elements[i].ID == id {
			return &p.Elements[i]
		}
	}
	return nil
}

// FindPage returns a pointer to the page with id, or nil.
func (p *Project) FindPage(id string) *Page {
	for i := range p.Pages {
		if p.Pages[i].ID == id {
			return &p.Pages[i]
		}
	}
	return nil
}
