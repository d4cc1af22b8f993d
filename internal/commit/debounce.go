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
	"sort"
	"sync"
	"time"
)

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so debounced writes can be driven by tests.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (systemClock) Now() time.Time                            { return time.Now() }

// SystemClock is backed by the time package.
var SystemClock Clock = systemClock{}

type task struct {
	fn    func()
	timer Timer
	seq   uint64
}

// Debouncer runs at most one task per key after a quiet period. Scheduling a
// key again replaces the task and restarts its timer.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	tasks   map[string]*task
	seq     uint64
	stopped bool
}

// NewDebouncer returns a debouncer. A nil clock uses SystemClock.
func NewDebouncer(delay time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = SystemClock
	}
	return &Debouncer{clock: clock, delay: delay, tasks: make(map[string]*task)}
}

// Delay reports the quiet period.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Schedule queues fn for key. Returns false after Stop.
func (d *Debouncer) Schedule(key string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if old := d.tasks[key]; old != nil {
		old.timer.Stop()
	}
	d.seq++
	seq := d.seq
	t := &task{fn: fn, seq: seq}
	t.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, seq) })
	d.tasks[key] = t
	return true
}

func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	t := d.tasks[key]
	if t == nil || t.seq != seq {
		// replaced or cancelled after the timer had already fired
		d.mu.Unlock()
		return
	}
	delete(d.tasks, key)
	d.mu.Unlock()
	t.fn()
}

// Flush runs the pending task for key now, on the calling goroutine.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	t := d.tasks[key]
	if t == nil {
		d.mu.Unlock()
		return false
	}
	t.timer.Stop()
	delete(d.tasks, key)
	d.mu.Unlock()
	t.fn()
	return true
}

// FlushAll runs every pending task in key order.
func (d *Debouncer) FlushAll() int {
	n := 0
	for _, k := range d.Keys() {
		if d.Flush(k) {
			n++
		}
	}
	return n
}

// Cancel drops the pending task for key without running it.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tasks[key]
	if t == nil {
		return false
	}
	t.timer.Stop()
	delete(d.tasks, key)
	return true
}

// Pending reports whether key has a queued task.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.tasks[key]
	return ok
}

// Keys returns the pending keys, sorted.
func (d *Debouncer) Keys() []string {
	d.mu.Lock()
	keys := make([]string, 0, len(d.tasks))
	for k := range d.tasks {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Stop cancels all pending tasks and rejects new ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, t := range d.tasks {
		t.timer.Stop()
		delete(d.tasks, k)
	}
	d.stopped = true
}
