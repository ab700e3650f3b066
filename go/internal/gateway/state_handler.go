package gateway

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/countdown"
	"github.com/mcdev12/bazaar/go/internal/livesync"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// AuctionStateResponse represents the current state of an auction
type AuctionStateResponse struct {
	Auction     *models.Auction  `json:"auction"`
	Countdown   CountdownPayload `json:"countdown"`
	Live        bool             `json:"live"`
	Subscribers int              `json:"subscribers"`
	Notified    bool             `json:"notified"`
}

// StateHandler handles HTTP requests for auction state
type StateHandler struct {
	views       *ViewRegistry
	connections *ConnectionManager
	fetcher     livesync.AuctionFetcher
	clock       clockwork.Clock
}

// NewStateHandler creates a new state handler
func NewStateHandler(views *ViewRegistry, connections *ConnectionManager, fetcher livesync.AuctionFetcher, clock clockwork.Clock) *StateHandler {
	return &StateHandler{
		views:       views,
		connections: connections,
		fetcher:     fetcher,
		clock:       clock,
	}
}

// HandleGetAuctionState handles GET /api/auctions/{id}/state. A live view
// answers from its projection; otherwise the auction is fetched once.
func (h *StateHandler) HandleGetAuctionState(w http.ResponseWriter, r *http.Request) {
	id := models.ID(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "auction id is required")
		return
	}

	resp := AuctionStateResponse{Subscribers: h.connections.SubscriberCount(id)}

	if view, ok := h.views.Get(id); ok {
		resp.Live = true
		resp.Auction = view.Snapshot()
		resp.Notified = view.Guard().Fired()
		if tick, ok := view.Countdown(); ok {
			resp.Countdown = countdownPayload(tick)
		}
	}

	if resp.Auction == nil {
		a, err := h.fetcher.GetAuction(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("auction_id", id.String()).Msg("failed to get auction state")
			writeError(w, loadErrorStatus(err), "failed to get auction state")
			return
		}
		resp.Auction = a
		resp.Countdown = countdownPayload(evaluate(a, h.clock.Now()))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auctions/{id}/state", h.HandleGetAuctionState)
}

func countdownPayload(tick countdown.Tick) CountdownPayload {
	return CountdownPayload{
		Direction:        tick.Direction,
		Label:            tick.Label,
		TimeRemainingSec: int(tick.Left / time.Second),
		Done:             tick.Done,
	}
}

// evaluate computes the countdown an auction shows without running a timer.
func evaluate(a *models.Auction, now time.Time) countdown.Tick {
	dir, target := countdown.Remaining, a.EndDate
	if a.Status == models.AuctionStatusUpcoming {
		dir, target = countdown.UntilStart, a.StartDate
	}
	return countdown.Evaluate(target, now, dir)
}
