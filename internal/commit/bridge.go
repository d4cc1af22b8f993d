/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package commit bridges finished gestures to persistence: the local board is
// updated optimistically, remote writes are coalesced per element and failed
// writes are rolled back.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pagecraft/internal/domain"
	"pagecraft/internal/log"
	"pagecraft/internal/undo"
)

const (
	DefaultDelay   = 400 * time.Millisecond
	DefaultTimeout = 15 * time.Second
)

// Local is the optimistic in-memory model, usually a *board.Board.
type Local interface {
	Element(id string) (domain.CanvasElement, string, bool)
	Put(el domain.CanvasElement) error
	Rekey(oldID, newID string) error
}

// History receives every applied change. *undo.ElementHistory satisfies it.
type History interface {
	Record(pageID string, before, after domain.CanvasElement)
	Undo(pageID string) (undo.Entry, bool)
	Redo(pageID string) (undo.Entry, bool)
}

// Change is a partial element update. Nil fields are left alone.
type Change struct {
	ElementID string
	Position  *domain.CanvasPosition
	Crop      *domain.CropData
	Content   *string
	// SkipHistory keeps the change out of the undo history.
	SkipHistory bool
}

// PositionChange builds a Change that moves or resizes an element.
func PositionChange(id string, pos domain.CanvasPosition) Change {
	return Change{ElementID: id, Position: &pos}
}

// CropChange builds a Change that updates an image crop.
func CropChange(id string, crop domain.CropData) Change {
	return Change{ElementID: id, Crop: &crop}
}

// ContentChange builds a Change that replaces text content.
func ContentChange(id, content string) Change {
	return Change{ElementID: id, Content: &content}
}

func (c Change) apply(el domain.CanvasElement) domain.CanvasElement {
	out := el.Clone()
	if c.Position != nil {
		out.Position = *c.Position
	}
	if c.Crop != nil {
		cr := *c.Crop
		out.Crop = &cr
	}
	if c.Content != nil {
		out.Content = *c.Content
	}
	return out
}

// Options configures a Bridge.
type Options struct {
	Delay    time.Duration
	Timeout  time.Duration
	Clock    Clock
	History  History
	Reporter domain.ErrorReporter
	Logger   *slog.Logger
}

// pending holds the merged unsent fields of one element and the state the
// element had before the first of them was applied.
type pending struct {
	pageID   string
	baseline domain.CanvasElement
	position *domain.CanvasPosition
	crop     *domain.CropData
	content  *string
}

func (p *pending) merge(c Change) {
	if c.Position != nil {
		v := *c.Position
		p.position = &v
	}
	if c.Crop != nil {
		v := *c.Crop
		p.crop = &v
	}
	if c.Content != nil {
		v := *c.Content
		p.content = &v
	}
}

// Bridge is safe for concurrent use.
type Bridge struct {
	local Local
	store domain.ElementStore
	opts  Options
	deb   *Debouncer
	log   *slog.Logger

	mu       sync.Mutex
	pending  map[string]*pending
	inflight map[string]*flight
	async    sync.WaitGroup
}

// flight marks an element whose write is on the wire. At most one write per
// element is in flight; later changes stay pending until done is closed.
type flight struct {
	done chan struct{}
	// again is set when a debounced flush found the write busy.
	again bool
}

// New returns a bridge writing through local to store.
func New(local Local, store domain.ElementStore, opts Options) *Bridge {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	lg := opts.Logger
	if lg == nil {
		lg = log.WithComponent("commit")
	}
	return &Bridge{
		local:   local,
		store:   store,
		opts:    opts,
		deb:     NewDebouncer(opts.Delay, opts.Clock),
		log:     lg,
		pending:  make(map[string]*pending),
		inflight: make(map[string]*flight),
	}
}

// Commit applies c locally right away and schedules the remote write after
// the debounce window. Later commits for the same element replace earlier
// unsent values field by field.
func (b *Bridge) Commit(c Change) error {
	id, err := b.applyLocal(c)
	if err != nil || id == "" {
		return err
	}
	if domain.IsPlaceholderID(id) {
		b.log.Debug("write parked for placeholder", slog.String("element", id))
		return nil
	}
	b.deb.Schedule(id, func() {
		_ = b.flush(context.Background(), id, false)
	})
	return nil
}

// Submit applies c locally and sends everything pending for the element
// without waiting for the debounce window. The write runs in the background;
// a failure is rolled back and goes to the Reporter.
func (b *Bridge) Submit(c Change) error {
	id, err := b.applyLocal(c)
	if err != nil {
		return err
	}
	if id == "" {
		id = c.ElementID
	}
	if domain.IsPlaceholderID(id) {
		return nil
	}
	b.deb.Cancel(id)
	b.goFlush(id)
	return nil
}

// CommitNow applies c locally and writes everything pending for the element
// immediately, waiting for the result. Placeholders are parked as with
// Commit and nil is returned.
func (b *Bridge) CommitNow(ctx context.Context, c Change) error {
	id, err := b.applyLocal(c)
	if err != nil {
		return err
	}
	if id == "" {
		id = c.ElementID
	}
	if domain.IsPlaceholderID(id) {
		return nil
	}
	b.deb.Cancel(id)
	return b.flush(ctx, id, true)
}

func (b *Bridge) goFlush(id string) {
	b.async.Add(1)
	go func() {
		defer b.async.Done()
		_ = b.flush(context.Background(), id, false)
	}()
}

// applyLocal returns "" when the change is a no-op.
func (b *Bridge) applyLocal(c Change) (string, error) {
	if c.ElementID == "" {
		return "", errors.New("commit: empty element id")
	}
	cur, pageID, ok := b.local.Element(c.ElementID)
	if !ok {
		return "", fmt.Errorf("commit %s: %w", c.ElementID, domain.ErrNotFound)
	}
	next := c.apply(cur)
	if sameState(cur, next) {
		return "", nil
	}
	if err := b.local.Put(next); err != nil {
		return "", fmt.Errorf("commit %s: %w", c.ElementID, err)
	}
	if b.opts.History != nil && !c.SkipHistory {
		b.opts.History.Record(pageID, cur, next)
	}
	b.mu.Lock()
	p := b.pending[c.ElementID]
	if p == nil {
		p = &pending{pageID: pageID, baseline: cur}
		b.pending[c.ElementID] = p
	}
	p.merge(c)
	b.mu.Unlock()
	return c.ElementID, nil
}

// InFlight reports whether a write for the element is on the wire.
func (b *Bridge) InFlight(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inflight[id]
	return ok
}

// Pending reports whether the element has unsent changes.
func (b *Bridge) Pending(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[id]
	return ok
}

// Busy reports whether any change is unsent or on the wire.
func (b *Bridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)+len(b.inflight) > 0
}

// PendingCount returns how many elements have unsent changes.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush writes the element's pending changes now.
func (b *Bridge) Flush(ctx context.Context, id string) error {
	if domain.IsPlaceholderID(id) {
		return nil
	}
	b.deb.Cancel(id)
	return b.flush(ctx, id, true)
}

// FlushAll writes every pending non-placeholder element concurrently and
// returns the first error.
func (b *Bridge) FlushAll(ctx context.Context) error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		if !domain.IsPlaceholderID(id) {
			ids = append(ids, id)
		}
	}
	b.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		b.deb.Cancel(id)
		g.Go(func() error { return b.flush(gctx, id, true) })
	}
	return g.Wait()
}

// Close flushes everything, waits for writes still on the wire and stops
// the debouncer.
func (b *Bridge) Close(ctx context.Context) error {
	err := b.FlushAll(ctx)
	b.mu.Lock()
	busy := make([]chan struct{}, 0, len(b.inflight))
	for _, f := range b.inflight {
		busy = append(busy, f.done)
	}
	b.mu.Unlock()
	for _, done := range busy {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.async.Wait()
	b.deb.Stop()
	return err
}

// Confirm re-keys a placeholder to the id assigned by the server and sends
// the writes parked under the placeholder.
func (b *Bridge) Confirm(ctx context.Context, tempID, realID string) error {
	if err := b.local.Rekey(tempID, realID); err != nil {
		return fmt.Errorf("confirm %s: %w", tempID, err)
	}
	b.mu.Lock()
	if p, ok := b.pending[tempID]; ok {
		delete(b.pending, tempID)
		p.baseline.ID = realID
		b.pending[realID] = p
	}
	b.mu.Unlock()
	b.log.Info("placeholder confirmed", slog.String("temp", tempID), slog.String("element", realID))
	return b.Flush(ctx, realID)
}

// Discard forgets unsent changes for the element without touching the board.
func (b *Bridge) Discard(id string) {
	b.deb.Cancel(id)
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Undo reverts the most recent committed change on the page and returns the
// affected element id.
func (b *Bridge) Undo(pageID string) (string, bool, error) {
	if b.opts.History == nil {
		return "", false, nil
	}
	e, ok := b.opts.History.Undo(pageID)
	if !ok {
		return "", false, nil
	}
	return e.Before.ID, true, b.restore(e.Before)
}

// Redo re-applies the most recently undone change on the page.
func (b *Bridge) Redo(pageID string) (string, bool, error) {
	if b.opts.History == nil {
		return "", false, nil
	}
	e, ok := b.opts.History.Redo(pageID)
	if !ok {
		return "", false, nil
	}
	return e.After.ID, true, b.restore(e.After)
}

func (b *Bridge) restore(target domain.CanvasElement) error {
	cur, _, ok := b.local.Element(target.ID)
	if !ok {
		return fmt.Errorf("restore %s: %w", target.ID, domain.ErrNotFound)
	}
	c := Change{ElementID: target.ID, SkipHistory: true}
	if cur.Position != target.Position {
		pos := target.Position
		c.Position = &pos
	}
	if cur.CropOrDefault() != target.CropOrDefault() {
		cr := target.CropOrDefault()
		c.Crop = &cr
	}
	if cur.Content != target.Content {
		s := target.Content
		c.Content = &s
	}
	return b.Commit(c)
}

// flush sends the pending changes of id. When a write for id is already in
// flight, wait blocks until it finishes; otherwise the flush is handed to
// the running write, which sends the rest once it is done.
func (b *Bridge) flush(ctx context.Context, id string, wait bool) error {
	b.mu.Lock()
	for {
		f := b.inflight[id]
		if f == nil {
			break
		}
		if !wait {
			f.again = true
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()
		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		b.mu.Lock()
	}
	p := b.pending[id]
	if p == nil {
		b.mu.Unlock()
		return nil
	}
	delete(b.pending, id)
	f := &flight{done: make(chan struct{})}
	b.inflight[id] = f
	b.mu.Unlock()

	err := b.send(ctx, id, p)

	b.mu.Lock()
	delete(b.inflight, id)
	again := f.again && b.pending[id] != nil
	b.mu.Unlock()
	if again {
		b.goFlush(id)
	}
	close(f.done)
	return err
}

func (b *Bridge) send(ctx context.Context, id string, p *pending) error {
	ctx, cancel := context.WithTimeout(log.ContextWithElement(log.ContextWithPage(ctx, p.pageID), id), b.opts.Timeout)
	defer cancel()
	l := log.WithOperation(b.log, "flush")

	if err := b.write(ctx, id, p); err != nil {
		b.rollback(ctx, id, p)
		err = fmt.Errorf("persist element %s: %w", id, err)
		l.ErrorContext(ctx, "write failed, rolled back", slog.Any("err", err))
		if b.opts.Reporter != nil {
			b.opts.Reporter.ReportError(err)
		}
		return err
	}
	l.InfoContext(ctx, "element persisted")
	return nil
}

func (b *Bridge) write(ctx context.Context, id string, p *pending) error {
	if p.position != nil {
		if err := b.store.SetElementPosition(ctx, id, *p.position); err != nil {
			return err
		}
	}
	if p.crop != nil {
		if err := b.store.SetElementCrop(ctx, id, *p.crop); err != nil {
			return err
		}
	}
	if p.content != nil {
		if err := b.store.SetElementContent(ctx, id, *p.content); err != nil {
			return err
		}
	}
	return nil
}

// rollback restores the baseline locally. Writes are serialized per element,
// so the baseline is the last state the store accepted. Newer unsent edits
// were made on top of the failed state and are dropped with it.
func (b *Bridge) rollback(ctx context.Context, id string, p *pending) {
	b.deb.Cancel(id)
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
	if err := b.local.Put(p.baseline); err != nil {
		b.log.WarnContext(ctx, "rollback failed", slog.Any("err", err))
	}
}

func sameState(a, b domain.CanvasElement) bool {
	if a.Position != b.Position || a.Content != b.Content {
		return false
	}
	if (a.Crop == nil) != (b.Crop == nil) {
		return false
	}
	return a.Crop == nil || *a.Crop == *b.Crop
}
