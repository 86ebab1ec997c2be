// Package api provides the JSON handlers of the signn HTTP surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/signn/internal/app"
	"github.com/ayusman/signn/internal/pipeline"
)

// Controller is the part of the running application the handlers drive.
type Controller interface {
	Snapshot() app.Snapshot
	Clear()
	Enabled() bool
	SetEnabled(enabled bool)
	Cooldown() time.Duration
	SetCooldown(d time.Duration)
	Stats() (pipeline.Stats, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
