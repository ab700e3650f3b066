package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/bazaar/go/clients"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for auction feeds
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	views             *ViewRegistry
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, views *ViewRegistry) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		views:             views,
	}
}

// HandleAuctionConnection handles GET /ws/auction?auction_id=..&user_id=..
func (h *WebSocketHandler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := models.ID(r.URL.Query().Get("auction_id"))
	if auctionID == "" {
		http.Error(w, "auction_id is required", http.StatusBadRequest)
		return
	}

	// In production, this would come from a session
	userID := models.ID(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "anonymous"
	}

	// The initial load is the only fetch whose failure the client sees.
	view, err := h.views.Acquire(r.Context(), auctionID)
	if err != nil {
		log.Error().
			Err(err).
			Str("auction_id", auctionID.String()).
			Msg("failed to open auction view")
		writeError(w, loadErrorStatus(err), "failed to load auction")
		return
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, userID, auctionID, func() {
		h.views.Release(auctionID)
	})
	if err != nil {
		h.views.Release(auctionID)
		log.Error().
			Err(err).
			Str("auction_id", auctionID.String()).
			Str("user_id", userID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	// Prime the new subscriber with the current projection.
	if snap := view.Snapshot(); snap != nil {
		event, err := NewAuctionEvent(snapshotEvent(snap, h.connectionManager.clock.Now()))
		if err == nil {
			if data, err := json.Marshal(event); err == nil {
				conn.trySend(data)
			}
		}
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/auction", h.HandleAuctionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

// loadErrorStatus maps a marketplace failure to the status returned to the
// subscriber.
func loadErrorStatus(err error) int {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
