package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/signn/internal/app"
)

// TranscriptHandler serves /api/transcript.
type TranscriptHandler struct {
	ctl Controller
}

// NewTranscriptHandler creates a TranscriptHandler.
func NewTranscriptHandler(ctl Controller) *TranscriptHandler {
	return &TranscriptHandler{ctl: ctl}
}

type transcriptResponse struct {
	Text        string  `json:"text"`
	LastGesture *string `json:"last_gesture"`
	LastEmit    *string `json:"last_emit"`
}

func toTranscriptResponse(s app.Snapshot) transcriptResponse {
	resp := transcriptResponse{Text: s.Text}
	if s.HasGesture {
		g := s.LastGesture
		resp.LastGesture = &g
	}
	if !s.LastEmit.IsZero() {
		t := s.LastEmit.Format(time.RFC3339Nano)
		resp.LastEmit = &t
	}
	return resp
}

// ServeHTTP returns the transcript on GET and clears it on DELETE. The clear
// is applied by the capture loop, hence 202.
func (h *TranscriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toTranscriptResponse(h.ctl.Snapshot()))
	case http.MethodDelete:
		h.ctl.Clear()
		w.WriteHeader(http.StatusAccepted)
	default:
		methodNotAllowed(w)
	}
}

// EnabledHandler serves /api/enabled.
type EnabledHandler struct {
	ctl Controller
}

// NewEnabledHandler creates an EnabledHandler.
func NewEnabledHandler(ctl Controller) *EnabledHandler {
	return &EnabledHandler{ctl: ctl}
}

type enabledBody struct {
	Enabled *bool `json:"enabled"`
}

func (h *EnabledHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req enabledBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.ctl.SetEnabled(*req.Enabled)
	default:
		methodNotAllowed(w)
		return
	}

	on := h.ctl.Enabled()
	writeJSON(w, http.StatusOK, enabledBody{Enabled: &on})
}

// CooldownHandler serves /api/cooldown.
type CooldownHandler struct {
	ctl Controller
}

// NewCooldownHandler creates a CooldownHandler.
func NewCooldownHandler(ctl Controller) *CooldownHandler {
	return &CooldownHandler{ctl: ctl}
}

type cooldownBody struct {
	Cooldown string `json:"cooldown"`
}

func (h *CooldownHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req cooldownBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		d, err := time.ParseDuration(req.Cooldown)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "cooldown must be a non-negative duration such as \"2s\"")
			return
		}
		h.ctl.SetCooldown(d)
	default:
		methodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, cooldownBody{Cooldown: h.ctl.Cooldown().String()})
}

// StatsHandler serves /api/stats.
type StatsHandler struct {
	ctl Controller
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(ctl Controller) *StatsHandler {
	return &StatsHandler{ctl: ctl}
}

type statsResponse struct {
	State     string `json:"state"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Failed    uint64 `json:"failed"`
	Queued    int    `json:"queued"`
	Pending   int    `json:"pending"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	s, err := h.ctl.Stats()
	if errors.Is(err, app.ErrNotRunning) {
		writeError(w, http.StatusServiceUnavailable, "Recognition is not running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read stats")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		State:     s.State.String(),
		Submitted: s.Submitted,
		Rejected:  s.Rejected,
		Processed: s.Processed,
		Skipped:   s.Skipped,
		Failed:    s.Failed,
		Queued:    s.Queued,
		Pending:   s.Pending,
	})
}
