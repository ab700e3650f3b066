package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/bazaar/go/internal/countdown"
	"github.com/mcdev12/bazaar/go/internal/livesync"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/notify"
)

// AuctionEvent is the wire envelope pushed to websocket subscribers
type AuctionEvent struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of auction event
type EventType string

const (
	EventTypeSnapshot      = EventType(livesync.EventTypeSnapshot)
	EventTypeNewBid        = EventType(livesync.EventTypeNewBid)
	EventTypeStatusChanged = EventType(livesync.EventTypeStatusChanged)
	EventTypeAuctionEnded  = EventType(livesync.EventTypeAuctionEnded)
	EventTypeCountdown     = EventType(livesync.EventTypeCountdown)

	// EventTypeAuctionWon goes only to the winning bidder's connections.
	EventTypeAuctionWon EventType = "AuctionWon"
)

type SnapshotPayload struct {
	Auction *models.Auction `json:"auction"`
}

type NewBidPayload struct {
	CurrentBid float64      `json:"current_bid"`
	BidCount   int          `json:"bid_count"`
	NewBids    []models.Bid `json:"new_bids"`
	Cue        bool         `json:"cue"`
	Toast      string       `json:"toast"`
}

type StatusChangedPayload struct {
	From models.AuctionStatus `json:"from"`
	To   models.AuctionStatus `json:"to"`
}

type AuctionEndedPayload struct {
	WinnerUserID  models.ID      `json:"winner_user_id,omitempty"`
	WinnerName    string         `json:"winner_name,omitempty"`
	Amount        float64        `json:"amount,omitempty"`
	NotifyOutcome notify.Outcome `json:"notify_outcome"`
}

type CountdownPayload struct {
	Direction        countdown.Direction `json:"direction"`
	Label            string              `json:"label"`
	TimeRemainingSec int                 `json:"time_remaining_sec"`
	Done             bool                `json:"done"`
}

// NewAuctionEvent converts a live auction event into its wire form.
func NewAuctionEvent(ev livesync.Event) (*AuctionEvent, error) {
	var payload any
	switch ev.Type {
	case livesync.EventTypeSnapshot:
		payload = SnapshotPayload{Auction: ev.Auction}
	case livesync.EventTypeNewBid:
		payload = NewBidPayload{
			CurrentBid: ev.CurrentBid,
			BidCount:   ev.Auction.BidCount,
			NewBids:    ev.NewBids,
			Cue:        ev.Cue,
			Toast:      ev.Toast,
		}
	case livesync.EventTypeStatusChanged:
		payload = StatusChangedPayload{From: ev.Previous, To: ev.Auction.Status}
	case livesync.EventTypeAuctionEnded:
		p := AuctionEndedPayload{NotifyOutcome: ev.Outcome}
		if ev.Winner != nil {
			p.WinnerUserID = ev.Winner.UserID
			p.WinnerName = ev.Winner.UserName
			p.Amount = ev.Winner.Amount
		}
		payload = p
	case livesync.EventTypeCountdown:
		payload = CountdownPayload{
			Direction:        ev.Tick.Direction,
			Label:            ev.Tick.Label,
			TimeRemainingSec: int(ev.Tick.Left / time.Second),
			Done:             ev.Tick.Done,
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Type, err)
	}

	return &AuctionEvent{
		ID:        uuid.New().String(),
		AuctionID: ev.AuctionID.String(),
		Type:      EventType(ev.Type),
		Timestamp: ev.At,
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *AuctionEvent) (any, error) {
	switch event.Type {
	case EventTypeSnapshot:
		var payload SnapshotPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeNewBid:
		var payload NewBidPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeStatusChanged:
		var payload StatusChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAuctionEnded, EventTypeAuctionWon:
		var payload AuctionEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeCountdown:
		var payload CountdownPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
