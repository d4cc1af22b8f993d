/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type sink struct {
	mu      sync.Mutex
	events  []map[string]any
	crashes []string
	ctype   string
}

func newSink(t *testing.T) (*sink, *httptest.Server) {
	t.Helper()
	s := &sink{}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		s.mu.Lock()
		s.events = append(s.events, m)
		s.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.crashes = append(s.crashes, string(b))
		s.ctype = r.Header.Get("Content-Type")
		s.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

// waitFor polls cond for up to two seconds.
func (s *sink) waitFor(t *testing.T, what string, cond func(*sink) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		ok := cond(s)
		s.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionEventCarriesBuildInfo(t *testing.T) {
	s, srv := newSink(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer c.Close()

	c.Event("session_open", map[string]any{"backend": "sqlite", "pages": 3})
	c.Flush(context.Background())
	s.waitFor(t, "session event", func(s *sink) bool { return len(s.events) == 1 })

	ev := s.events[0]
	if ev["name"] != "session_open" || ev["backend"] != "sqlite" || ev["pages"] != float64(3) {
		t.Fatalf("unexpected event %v", ev)
	}
	for _, k := range []string{"ts", "version", "os", "arch"} {
		if _, ok := ev[k].(string); !ok {
			t.Fatalf("event lacks %q: %v", k, ev)
		}
	}
}

func TestCrashUploadIsPlainText(t *testing.T) {
	s, srv := newSink(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("events stay disabled without an events URL")
	}
	report := []byte("panic: drag on missing element\ngoroutine 1 [running]:")
	c.UploadCrash(report)
	report[0] = 'X'
	s.waitFor(t, "crash upload", func(s *sink) bool { return len(s.crashes) == 1 })
	if s.crashes[0][0] != 'p' || s.ctype != "text/plain; charset=utf-8" {
		t.Fatalf("crash body must be copied and sent as text, got %q (%s)", s.crashes[0], s.ctype)
	}
}

func TestShutdownReportsCommitCounters(t *testing.T) {
	s, srv := newSink(t)
	NewDefault(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	t.Cleanup(func() { NewDefault(Config{}) })

	Count("commit.crop")
	Count("commit.position")
	Count("commit.crop")
	Count("")
	Shutdown(context.Background())
	s.waitFor(t, "usage event", func(s *sink) bool { return len(s.events) == 1 })

	ev := s.events[0]
	counts, _ := ev["counts"].(map[string]any)
	keys, _ := ev["keys"].([]any)
	if ev["name"] != "usage" || counts["commit.crop"] != float64(2) || counts["commit.position"] != float64(1) {
		t.Fatalf("unexpected usage event %v", ev)
	}
	if len(keys) != 2 || keys[0] != "commit.crop" || keys[1] != "commit.position" {
		t.Fatalf("keys must be sorted, got %v", keys)
	}
}

func TestUnreachableEndpointsAreSilent(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Count("commit.content")
	c.ReportUsage()
	c.UploadCrash([]byte("oops"))
	c.Flush(context.Background())
	c.mu.Lock()
	n := len(c.counts)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("reported counters must be reset, got %d", n)
	}
}

func TestFromEnvTimeoutAndOptIn(t *testing.T) {
	t.Setenv("PAGECRAFT_TELEMETRY_OPT_IN", "yes")
	t.Setenv("PAGECRAFT_TELEMETRY_URL", " http://127.0.0.1:0 ")
	t.Setenv("PAGECRAFT_CRASH_UPLOAD_URL", "")
	t.Setenv("PAGECRAFT_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://127.0.0.1:0" || cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("FromEnv parsed %+v", cfg)
	}
	NewDefault(cfg)
	t.Cleanup(func() { NewDefault(Config{}) })
	if !Enabled() {
		t.Fatalf("default client should be enabled")
	}

	t.Setenv("PAGECRAFT_TELEMETRY_OPT_IN", "off")
	t.Setenv("PAGECRAFT_TELEMETRY_TIMEOUT_MS", "soon")
	cfg = FromEnv()
	if cfg.OptIn || cfg.Timeout != 1500*time.Millisecond {
		t.Fatalf("expected opt-out with default timeout, got %+v", cfg)
	}
}
