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
	"testing"
	"time"
)

func TestDebouncerCoalescesAndFires(t *testing.T) {
	clk := newFakeClock()
	d := NewDebouncer(400*time.Millisecond, clk)
	var ran []int
	d.Schedule("a", func() { ran = append(ran, 1) })
	clk.Advance(200 * time.Millisecond)
	d.Schedule("a", func() { ran = append(ran, 2) })
	clk.Advance(300 * time.Millisecond)
	if len(ran) != 0 {
		t.Fatalf("task should not run before quiet period, ran=%v", ran)
	}
	if !d.Pending("a") {
		t.Fatalf("expected pending task")
	}
	clk.Advance(100 * time.Millisecond)
	if len(ran) != 1 || ran[0] != 2 {
		t.Fatalf("expected only latest task to run once, got %v", ran)
	}
	if d.Pending("a") {
		t.Fatalf("task should be cleared after firing")
	}
}

func TestDebouncerFlushAndCancel(t *testing.T) {
	clk := newFakeClock()
	d := NewDebouncer(time.Second, clk)
	count := 0
	d.Schedule("a", func() { count++ })
	d.Schedule("b", func() { count += 10 })
	if !d.Flush("a") || count != 1 {
		t.Fatalf("flush should run task synchronously, count=%d", count)
	}
	if d.Flush("a") {
		t.Fatalf("second flush should find nothing")
	}
	if !d.Cancel("b") {
		t.Fatalf("cancel should report pending task")
	}
	clk.Advance(2 * time.Second)
	if count != 1 {
		t.Fatalf("cancelled task ran, count=%d", count)
	}
}

func TestDebouncerFlushAllAndStop(t *testing.T) {
	clk := newFakeClock()
	d := NewDebouncer(time.Second, clk)
	var order []string
	d.Schedule("b", func() { order = append(order, "b") })
	d.Schedule("a", func() { order = append(order, "a") })
	if n := d.FlushAll(); n != 2 {
		t.Fatalf("expected 2 flushed, got %d", n)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
	d.Schedule("c", func() { order = append(order, "c") })
	d.Stop()
	if d.Schedule("d", func() {}) {
		t.Fatalf("schedule after stop should be rejected")
	}
	clk.Advance(2 * time.Second)
	if len(order) != 2 {
		t.Fatalf("stopped tasks ran: %v", order)
	}
}

func TestDebouncerStaleTimerIgnored(t *testing.T) {
	clk := newFakeClock()
	d := NewDebouncer(100*time.Millisecond, clk)
	runs := 0
	d.Schedule("a", func() { runs++ })
	// Simulate the first timer firing after it was replaced.
	first := clk.timers[0]
	d.Schedule("a", func() { runs += 10 })
	first.fn()
	if runs != 0 {
		t.Fatalf("stale timer must not run the replacement task, runs=%d", runs)
	}
	clk.Advance(100 * time.Millisecond)
	if runs != 10 {
		t.Fatalf("expected replacement to run once, runs=%d", runs)
	}
}
