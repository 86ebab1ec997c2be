package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/signn/internal/app"
	"github.com/ayusman/signn/internal/pipeline"
	"github.com/ayusman/signn/internal/store"
)

// fakeController records calls in place of a running App.
type fakeController struct {
	mu       sync.Mutex
	snap     app.Snapshot
	enabled  bool
	cooldown time.Duration
	cleared  int
	stats    pipeline.Stats
	statsErr error
}

func (f *fakeController) Snapshot() app.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.snap.Text = ""
}

func (f *fakeController) Enabled() bool { return f.enabled }

func (f *fakeController) SetEnabled(on bool) { f.enabled = on }

func (f *fakeController) Cooldown() time.Duration { return f.cooldown }

func (f *fakeController) SetCooldown(d time.Duration) { f.cooldown = d }

func (f *fakeController) Stats() (pipeline.Stats, error) { return f.stats, f.statsErr }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTranscriptHandler(t *testing.T) {
	emit := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctl := &fakeController{snap: app.Snapshot{Text: "AB ", LastEmit: emit}}
	h := NewTranscriptHandler(ctl)

	t.Run("get with no last gesture", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/transcript", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp map[string]any
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp["text"] != "AB " {
			t.Errorf("text = %v", resp["text"])
		}
		if resp["last_gesture"] != nil {
			t.Errorf("last_gesture = %v, want null", resp["last_gesture"])
		}
		if resp["last_emit"] != "2024-05-01T12:00:00Z" {
			t.Errorf("last_emit = %v", resp["last_emit"])
		}
	})

	t.Run("get with last gesture", func(t *testing.T) {
		ctl.snap.LastGesture, ctl.snap.HasGesture = "B", true
		rec := serve(h, http.MethodGet, "/api/transcript", nil)

		var resp transcriptResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.LastGesture == nil || *resp.LastGesture != "B" {
			t.Errorf("last_gesture = %v, want B", resp.LastGesture)
		}
	})

	t.Run("delete clears", func(t *testing.T) {
		rec := serve(h, http.MethodDelete, "/api/transcript", nil)
		if rec.Code != http.StatusAccepted {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
		}
		if ctl.cleared != 1 {
			t.Errorf("Clear called %d times", ctl.cleared)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		if rec := serve(h, http.MethodPost, "/api/transcript", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestEnabledHandler(t *testing.T) {
	ctl := &fakeController{}
	h := NewEnabledHandler(ctl)

	tests := []struct {
		name    string
		method  string
		body    string
		status  int
		enabled bool
	}{
		{"get initial", http.MethodGet, "", http.StatusOK, false},
		{"turn on", http.MethodPut, `{"enabled": true}`, http.StatusOK, true},
		{"missing field", http.MethodPut, `{}`, http.StatusBadRequest, true},
		{"invalid json", http.MethodPut, `{`, http.StatusBadRequest, true},
		{"turn off", http.MethodPut, `{"enabled": false}`, http.StatusOK, false},
		{"delete", http.MethodDelete, "", http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, "/api/enabled", []byte(tt.body))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ctl.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", ctl.enabled, tt.enabled)
			}
			if rec.Code == http.StatusOK {
				var resp struct{ Enabled bool }
				json.NewDecoder(rec.Body).Decode(&resp)
				if resp.Enabled != tt.enabled {
					t.Errorf("response enabled = %v", resp.Enabled)
				}
			}
		})
	}
}

func TestCooldownHandler(t *testing.T) {
	ctl := &fakeController{cooldown: 2 * time.Second}
	h := NewCooldownHandler(ctl)

	tests := []struct {
		name   string
		method string
		body   string
		status int
		want   time.Duration
	}{
		{"get", http.MethodGet, "", http.StatusOK, 2 * time.Second},
		{"set", http.MethodPut, `{"cooldown": "750ms"}`, http.StatusOK, 750 * time.Millisecond},
		{"negative", http.MethodPut, `{"cooldown": "-1s"}`, http.StatusBadRequest, 750 * time.Millisecond},
		{"garbage", http.MethodPut, `{"cooldown": "soon"}`, http.StatusBadRequest, 750 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, "/api/cooldown", []byte(tt.body))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ctl.cooldown != tt.want {
				t.Errorf("cooldown = %v, want %v", ctl.cooldown, tt.want)
			}
		})
	}
}

func TestStatsHandler(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		ctl := &fakeController{stats: pipeline.Stats{Submitted: 10, Rejected: 2, Processed: 7, Failed: 1, State: pipeline.Running}}
		rec := serve(NewStatsHandler(ctl), http.MethodGet, "/api/stats", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp statsResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.State != "running" || resp.Submitted != 10 || resp.Rejected != 2 || resp.Processed != 7 || resp.Failed != 1 {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("not running", func(t *testing.T) {
		ctl := &fakeController{statsErr: app.ErrNotRunning}
		rec := serve(NewStatsHandler(ctl), http.MethodGet, "/api/stats", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestEventHandler(t *testing.T) {
	s := newTestStore(t)
	sess, _ := s.Sessions().Start()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, label := range []string{"A", "B", "C"} {
		s.Events().Create(&store.Event{
			SessionID:  sess.ID,
			Index:      1,
			Label:      label,
			Confidence: 0.9,
			EmittedAt:  base.Add(time.Duration(i) * 2 * time.Second),
		})
	}
	h := NewEventHandler(s)

	decode := func(t *testing.T, rec *httptest.ResponseRecorder) []string {
		t.Helper()
		var resp listEventsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		labels := make([]string, len(resp.Events))
		for i, e := range resp.Events {
			labels[i] = e.Label
		}
		return labels
	}

	t.Run("list with limit", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/events?limit=2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := decode(t, rec); len(got) != 2 || got[0] != "C" || got[1] != "B" {
			t.Errorf("labels = %q, want newest first", got)
		}
	})

	t.Run("list by session", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/events?session="+sess.ID, nil)
		if got := decode(t, rec); len(got) != 3 || got[0] != "A" {
			t.Errorf("labels = %q, want emission order", got)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		for _, q := range []string{"0", "-3", "abc", "100000"} {
			rec := serve(h, http.MethodGet, "/api/events?limit="+q, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: status = %d, want 400", q, rec.Code)
			}
		}
	})

	t.Run("delete all", func(t *testing.T) {
		rec := serve(h, http.MethodDelete, "/api/events", nil)
		var resp deleteEventsResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Deleted != 3 {
			t.Errorf("deleted = %d, want 3", resp.Deleted)
		}

		rec = serve(h, http.MethodGet, "/api/events", nil)
		if got := decode(t, rec); len(got) != 0 {
			t.Errorf("labels after delete = %q", got)
		}
	})
}
