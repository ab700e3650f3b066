package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/bazaar/go/internal/models"
)

// Kind names a notification type; it doubles as the subject suffix on the bus.
type Kind string

const (
	KindAuctionWinner Kind = "winner"
	KindAuctionSeller Kind = "seller"
)

// WinnerNotification tells the winning bidder they won.
type WinnerNotification struct {
	ID           uuid.UUID `json:"id"`
	UserID       models.ID `json:"userId"`
	AuctionTitle string    `json:"auctionTitle"`
	Amount       float64   `json:"amount"`
	AuctionID    models.ID `json:"auctionId"`
}

// SellerNotification tells the seller who won their auction.
type SellerNotification struct {
	ID           uuid.UUID `json:"id"`
	SellerID     models.ID `json:"sellerId"`
	AuctionTitle string    `json:"auctionTitle"`
	WinnerName   string    `json:"winnerName"`
	Amount       float64   `json:"amount"`
	AuctionID    models.ID `json:"auctionId"`
}

// Sink receives end-of-auction notifications. Delivery (push, email,
// in-app) happens behind it; callers treat it as fire-and-forget.
type Sink interface {
	NotifyAuctionWinner(ctx context.Context, n WinnerNotification) error
	NotifyAuctionSeller(ctx context.Context, n SellerNotification) error
}

// Envelope is the transport form of a notification.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	Kind      Kind            `json:"kind"`
	AuctionID models.ID       `json:"auctionId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	SentAt    *time.Time      `json:"sentAt,omitempty"`
}

// Publisher moves envelopes to a transport.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// namespace for deterministic notification ids.
var namespace = uuid.MustParse("7b0f3c52-5d0e-4f7e-9a51-2d8f0c1e6a44")

// NotificationID derives a stable id for one notification of one auction, so
// a transport with duplicate detection can drop repeats from other processes.
func NotificationID(auctionID models.ID, kind Kind) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(string(kind)+":"+auctionID.String()))
}
