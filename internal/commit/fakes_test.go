/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package commit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pagecraft/internal/domain"
)

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// fakeClock fires timers only from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

type call struct {
	op      string
	id      string
	pos     domain.CanvasPosition
	crop    domain.CropData
	content string
}

// recordingStore is an ElementStore that records calls and can be told to fail.
type recordingStore struct {
	mu    sync.Mutex
	calls []call
	fail  error
}

func (s *recordingStore) GetElement(context.Context, string) (domain.CanvasElement, error) {
	return domain.CanvasElement{}, errors.New("not supported")
}

func (s *recordingStore) SetElementPosition(_ context.Context, id string, pos domain.CanvasPosition) error {
	return s.record(call{op: "position", id: id, pos: pos})
}

func (s *recordingStore) SetElementCrop(_ context.Context, id string, crop domain.CropData) error {
	return s.record(call{op: "crop", id: id, crop: crop})
}

func (s *recordingStore) SetElementContent(_ context.Context, id string, content string) error {
	return s.record(call{op: "content", id: id, content: content})
}

func (s *recordingStore) record(c call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.calls = append(s.calls, c)
	return nil
}

func (s *recordingStore) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func (s *recordingStore) SetFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// gatedStore holds the first position write until release receives its
// result. Later writes go straight to the recording store.
type gatedStore struct {
	*recordingStore
	entered chan struct{}
	release chan error
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{recordingStore: &recordingStore{}, entered: make(chan struct{}), release: make(chan error)}
}

func (s *gatedStore) SetElementPosition(ctx context.Context, id string, pos domain.CanvasPosition) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		if err := <-s.release; err != nil {
			return err
		}
	}
	return s.recordingStore.SetElementPosition(ctx, id, pos)
}
