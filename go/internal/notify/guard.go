package notify

import (
	"context"
	"sync"

	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Outcome describes what an ended observation did.
type Outcome string

const (
	// OutcomeDispatched means the latch flipped and both notifications went out.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeNoWinner means the latch flipped but there were no bids.
	OutcomeNoWinner Outcome = "no_winner"
	// OutcomeAlreadyFired means the latch was already consumed.
	OutcomeAlreadyFired Outcome = "already_fired"
	// OutcomeNotEnded means the auction is still running.
	OutcomeNotEnded Outcome = "not_ended"
	// OutcomeOtherAuction means the observation belongs to a different auction
	// than the one the guard is scoped to.
	OutcomeOtherAuction Outcome = "other_auction"
)

// Guard is a one-shot latch per auction session. The first ended observation
// with bids sends one winner and one seller notification; every later
// observation of the same auction is a no-op. An ended auction without bids
// consumes the latch without notifying, even if bids show up later.
type Guard struct {
	sink Sink

	mu        sync.Mutex
	auctionID models.ID
	fired     bool
}

// NewGuard creates a guard scoped to auctionID.
func NewGuard(sink Sink, auctionID models.ID) *Guard {
	return &Guard{sink: sink, auctionID: auctionID}
}

// Reset rescopes the guard. The latch is cleared only when the id changes.
func (g *Guard) Reset(auctionID models.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.auctionID == auctionID {
		return
	}
	g.auctionID = auctionID
	g.fired = false
}

// Fired reports whether the latch has been consumed.
func (g *Guard) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

// AuctionID returns the auction the guard is scoped to.
func (g *Guard) AuctionID() models.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.auctionID
}

// ObserveEnded is called with every applied projection whose status is ended.
func (g *Guard) ObserveEnded(ctx context.Context, a *models.Auction) Outcome {
	if a.Status != models.AuctionStatusEnded {
		return OutcomeNotEnded
	}

	g.mu.Lock()
	if a.ID != g.auctionID {
		g.mu.Unlock()
		return OutcomeOtherAuction
	}
	if g.fired {
		g.mu.Unlock()
		return OutcomeAlreadyFired
	}
	g.fired = true
	g.mu.Unlock()

	winner, ok := a.WinningBid()
	if !ok {
		log.Info().
			Str("auction_id", a.ID.String()).
			Msg("auction ended without bids, no winner to notify")
		return OutcomeNoWinner
	}

	g.dispatch(ctx, a, winner)
	return OutcomeDispatched
}

func (g *Guard) dispatch(ctx context.Context, a *models.Auction, winner models.Bid) {
	wn := WinnerNotification{
		ID:           NotificationID(a.ID, KindAuctionWinner),
		UserID:       winner.UserID,
		AuctionTitle: a.Title,
		Amount:       winner.Amount,
		AuctionID:    a.ID,
	}
	if err := g.sink.NotifyAuctionWinner(ctx, wn); err != nil {
		log.Error().
			Err(err).
			Str("auction_id", a.ID.String()).
			Str("user_id", winner.UserID.String()).
			Msg("failed to send winner notification")
	}

	sn := SellerNotification{
		ID:           NotificationID(a.ID, KindAuctionSeller),
		SellerID:     a.UserID,
		AuctionTitle: a.Title,
		WinnerName:   winner.UserName,
		Amount:       winner.Amount,
		AuctionID:    a.ID,
	}
	if err := g.sink.NotifyAuctionSeller(ctx, sn); err != nil {
		log.Error().
			Err(err).
			Str("auction_id", a.ID.String()).
			Str("seller_id", a.UserID.String()).
			Msg("failed to send seller notification")
	}

	log.Info().
		Str("auction_id", a.ID.String()).
		Str("winner_id", winner.UserID.String()).
		Float64("amount", winner.Amount).
		Msg("auction end notifications dispatched")
}
