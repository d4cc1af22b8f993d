/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by stores when an element id is unknown.
	ErrNotFound = errors.New("element not found")
	// ErrReadOnly is returned when a mutation is attempted on a read-only page.
	ErrReadOnly = errors.New("page is read-only")
	// ErrInvalidPosition is returned for a rectangle below the minimum size of its element type.
	ErrInvalidPosition = errors.New("invalid position")
)

// ElementStore persists element changes. Implementations are fallible and may
// block on I/O; callers pass a context.
type ElementStore interface {
	GetElement(ctx context.Context, id string) (CanvasElement, error)
	SetElementPosition(ctx context.Context, id string, pos CanvasPosition) error
	SetElementCrop(ctx context.Context, id string, crop CropData) error
	SetElementContent(ctx context.Context, id string, content string) error
}

// Selector receives selection changes. An empty id clears the selection.
type Selector interface {
	SelectElement(id string)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(id string)

func (f SelectorFunc) SelectElement(id string) { f(id) }

// ErrorReporter surfaces persistence failures to the user.
type ErrorReporter interface {
	ReportError(err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(err error)

func (f ErrorReporterFunc) ReportError(err error) { f(err) }

// PlaceholderPrefix marks identifiers minted on the client before the store confirmed them.
const PlaceholderPrefix = "tmp-"

// NewPlaceholderID returns a fresh client-only element id.
func NewPlaceholderID() string { return PlaceholderPrefix + uuid.NewString() }

// NewElementID returns a fresh permanent element id.
func NewElementID() string { return uuid.NewString() }

// IsPlaceholderID reports whether id has not been confirmed by a store yet.
func IsPlaceholderID(id string) bool { return strings.HasPrefix(id, PlaceholderPrefix) }
