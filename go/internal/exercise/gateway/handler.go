package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ActorHeader names who is acting in logs. It is a label, not an authorization check.
const ActorHeader = "X-Excon-Actor"

// ActorFrom returns the actor label of r, from the header or the actor query parameter
func ActorFrom(r *http.Request) string {
	if actor := r.Header.Get(ActorHeader); actor != "" {
		return actor
	}
	if actor := r.URL.Query().Get("actor"); actor != "" {
		return actor
	}
	return "excon"
}

// Handler serves the WebSocket endpoint and read-only state routes
type Handler struct {
	connectionManager *ConnectionManager
}

// NewHandler creates a Handler
func NewHandler(cm *ConnectionManager) *Handler {
	return &Handler{connectionManager: cm}
}

// HandleWebSocket attaches a window
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r)
	if err := h.connectionManager.UpgradeConnection(w, r, actor); err != nil {
		// the upgrader has already written an HTTP error
		log.Error().Err(err).Str("actor", actor).Msg("failed to upgrade WebSocket connection")
	}
}

// HandleState returns the current snapshot as JSON
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.connectionManager.source()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleStats returns statistics about attached windows
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.Stats())
}

// RegisterRoutes registers the gateway routes with mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.HandleWebSocket)
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("GET /ws/stats", h.HandleStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
