package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/signn/internal/store"
)

// MaxEventLimit bounds the limit query parameter.
const MaxEventLimit = 1000

// EventHandler serves the gesture event history at /api/events.
type EventHandler struct {
	store *store.Store
}

// NewEventHandler creates an EventHandler backed by s.
func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

type eventResponse struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id"`
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	EmittedAt  string  `json:"emitted_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

type deleteEventsResponse struct {
	Deleted int64 `json:"deleted"`
}

func toEventResponse(e *store.Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Index:      e.Index,
		Label:      e.Label,
		Confidence: e.Confidence,
		EmittedAt:  e.EmittedAt.Format(time.RFC3339Nano),
	}
}

// ServeHTTP lists events on GET (optionally ?limit=N or ?session=ID) and
// deletes all of them on DELETE.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.deleteAll(w)
	default:
		methodNotAllowed(w)
	}
}

func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		events []*store.Event
		err    error
	)
	if session := q.Get("session"); session != "" {
		events, err = h.store.Events().ListBySession(session)
	} else {
		limit := store.DefaultEventLimit
		if v := q.Get("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit < 1 || limit > MaxEventLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxEventLimit))
				return
			}
		}
		events, err = h.store.Events().List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
	}
	for _, e := range events {
		response.Events = append(response.Events, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *EventHandler) deleteAll(w http.ResponseWriter) {
	n, err := h.store.Events().DeleteAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete events")
		return
	}
	writeJSON(w, http.StatusOK, deleteEventsResponse{Deleted: n})
}
