package chat

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parleychat/parley/internal/service/relay"
	"github.com/parleychat/parley/pkg/utils"
)

// Handler serves the read-only REST surface over hub state.
type Handler struct {
	hub        *relay.Hub
	historyMax int
}

// New creates the REST handler. historyMax clamps the limit parameter
// of the history endpoint.
func New(hub *relay.Hub, historyMax int) *Handler {
	return &Handler{hub: hub, historyMax: historyMax}
}

// RegisterRoutes mounts the REST endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/messages", h.messages)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	stats := h.hub.Snapshot()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"connectedClients": stats.ConnectedClients,
		"messagesInMemory": stats.MessagesInMemory,
		"uptime":           stats.Uptime.Seconds(),
	})
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > h.historyMax {
		limit = h.historyMax
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messages": h.hub.RecentMessages(limit),
	})
}
