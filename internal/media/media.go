/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package media probes image files for the natural size needed by cover-fit
// cropping.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// Info describes an image without decoding its pixels.
type Info struct {
	Format string
	Size   vector.Size
}

// Probe reads only the image header from r.
func Probe(r io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Info{}, fmt.Errorf("decode image header: %w", err)
	}
	return Info{Format: format, Size: vector.Size{W: float64(cfg.Width), H: float64(cfg.Height)}}, nil
}

// ProbeBytes is Probe over an in-memory image.
func ProbeBytes(b []byte) (Info, error) { return Probe(bytes.NewReader(b)) }

// ProbeFile probes the image at path. Relative refs resolve against root.
func ProbeFile(root, ref string) (Info, error) {
	p := ref
	if !filepath.IsAbs(p) && root != "" {
		p = filepath.Join(root, ref)
	}
	f, err := os.Open(p)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	info, err := Probe(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", p, err)
	}
	return info, nil
}

// LoadFile decodes the image at ref. Relative refs resolve against root.
func LoadFile(root, ref string) (image.Image, error) {
	p := ref
	if !filepath.IsAbs(p) && root != "" {
		p = filepath.Join(root, ref)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return img, nil
}

// Fit returns where the image is drawn for the element's frame (in frame
// local coordinates) and the crop actually in effect after clamping.
func Fit(natural vector.Size, frame domain.CanvasPosition, crop domain.CropData) (vector.Rect, domain.CropData) {
	zoom := crop.Zoom
	if zoom < 1 || !vector.IsFinite(zoom) {
		zoom = 1
	}
	r, off := vector.CoverFit(natural, vector.R(0, 0, frame.Width, frame.Height), vector.Pt{X: crop.X, Y: crop.Y}, zoom)
	return r, domain.CropData{X: off.X, Y: off.Y, Zoom: zoom}
}

// SourceRect maps the part of a drawn image that falls inside a frame of
// fw x fh back to pixel coordinates within bounds.
func SourceRect(bounds image.Rectangle, drawn vector.Rect, fw, fh float64) image.Rectangle {
	if drawn.W <= 0 || drawn.H <= 0 {
		return bounds
	}
	sx := float64(bounds.Dx()) / drawn.W
	sy := float64(bounds.Dy()) / drawn.H
	x0 := bounds.Min.X + int((0-drawn.X)*sx+0.5)
	y0 := bounds.Min.Y + int((0-drawn.Y)*sy+0.5)
	x1 := bounds.Min.X + int((fw-drawn.X)*sx+0.5)
	y1 := bounds.Min.Y + int((fh-drawn.Y)*sy+0.5)
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}
