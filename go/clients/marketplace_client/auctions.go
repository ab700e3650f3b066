package marketplace_client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/bazaar/go/internal/models"
)

// Marketplace response structures. Every field is optional on the wire; the
// conversion fills defaults.
type MPBid struct {
	UserID    models.ID `json:"userId"`
	UserName  string    `json:"userName"`
	Amount    *float64  `json:"amount"`
	Timestamp string    `json:"timestamp"`
}

type MPAuction struct {
	ID            models.ID `json:"id"`
	UserID        models.ID `json:"userId"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	StartDate     string    `json:"startDate"`
	EndDate       string    `json:"endDate"`
	Status        string    `json:"status"`
	CurrentBid    *float64  `json:"currentBid"`
	BidCount      *int      `json:"bidCount"`
	StartingPrice *float64  `json:"startingPrice"`
	MinBidStep    *float64  `json:"minBidStep"`
	BuyNowPrice   *float64  `json:"buyNowPrice"`
	Bids          []MPBid   `json:"bids"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func valueOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// ToModel converts the wire form into a normalized projection.
func (a MPAuction) ToModel(now time.Time) *models.Auction {
	auction := &models.Auction{
		ID:            a.ID,
		UserID:        a.UserID,
		Title:         a.Title,
		Category:      a.Category,
		StartDate:     parseTime(a.StartDate),
		EndDate:       parseTime(a.EndDate),
		Status:        models.AuctionStatus(a.Status),
		CurrentBid:    valueOr(a.CurrentBid),
		StartingPrice: valueOr(a.StartingPrice),
		MinBidStep:    valueOr(a.MinBidStep),
		BuyNowPrice:   a.BuyNowPrice,
		Bids:          make([]models.Bid, 0, len(a.Bids)),
	}
	for _, b := range a.Bids {
		auction.Bids = append(auction.Bids, models.Bid{
			UserID:    b.UserID,
			UserName:  b.UserName,
			Amount:    valueOr(b.Amount),
			Timestamp: parseTime(b.Timestamp),
		})
	}
	auction.Normalize(now)
	return auction
}

// GetAuction fetches the current auction projection.
func (c *MarketplaceClient) GetAuction(ctx context.Context, id models.ID) (*models.Auction, error) {
	body, err := c.Get(ctx, fmt.Sprintf(auctionPath, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %s: %w", id, err)
	}

	var response MPAuction
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if response.ID == "" {
		response.ID = id
	}

	return response.ToModel(c.clock.Now()), nil
}
