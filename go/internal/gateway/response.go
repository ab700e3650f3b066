package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/bazaar/go/internal/livesync"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func snapshotEvent(a *models.Auction, at time.Time) livesync.Event {
	return livesync.Event{
		Type:      livesync.EventTypeSnapshot,
		AuctionID: a.ID,
		At:        at,
		Auction:   a,
	}
}
