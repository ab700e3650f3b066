package livesync

import (
	"time"

	"github.com/mcdev12/bazaar/go/internal/countdown"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EventType represents the type of live auction event
type EventType string

const (
	EventTypeSnapshot      EventType = "AuctionSnapshot"
	EventTypeNewBid        EventType = "NewBid"
	EventTypeStatusChanged EventType = "StatusChanged"
	EventTypeAuctionEnded  EventType = "AuctionEnded"
	EventTypeCountdown     EventType = "CountdownTick"
)

// Event is one change observed on a live auction.
type Event struct {
	Type      EventType `json:"type"`
	AuctionID models.ID `json:"auction_id"`
	At        time.Time `json:"timestamp"`

	// Auction is the projection after the change. Set for every type except
	// EventTypeCountdown.
	Auction *models.Auction `json:"auction,omitempty"`

	// NewBid
	NewBids    []models.Bid `json:"new_bids,omitempty"`
	CurrentBid float64      `json:"current_bid,omitempty"`
	Cue        bool         `json:"cue,omitempty"`
	Toast      string       `json:"toast,omitempty"`

	// StatusChanged
	Previous models.AuctionStatus `json:"previous_status,omitempty"`

	// AuctionEnded
	Winner  *models.Bid    `json:"winner,omitempty"`
	Outcome notify.Outcome `json:"notify_outcome,omitempty"`

	// CountdownTick
	Tick *countdown.Tick `json:"tick,omitempty"`
}

// Observer receives live auction events. Notify is called from poller and
// timer goroutines and must not block.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Notify(ev Event) { f(ev) }

type nopObserver struct{}

func (nopObserver) Notify(Event) {}

var printer = message.NewPrinter(language.Russian)

// NewBidToast is the toast text shown for a new bid.
func NewBidToast(currentBid float64) string {
	return printer.Sprintf("Новая ставка: %.0f ₽", currentBid)
}
