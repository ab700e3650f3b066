package models

import (
	"sort"
	"time"
)

// AuctionStatus defines the status of an auction.
type AuctionStatus string

const (
	AuctionStatusUpcoming AuctionStatus = "upcoming"
	AuctionStatusActive   AuctionStatus = "active"
	AuctionStatusEnded    AuctionStatus = "ended"
)

// Bid is a single bid placed on an auction.
type Bid struct {
	UserID    ID        `json:"userId"`
	UserName  string    `json:"userName"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Auction is the client projection of a live auction.
type Auction struct {
	ID       ID     `json:"id"`
	UserID   ID     `json:"userId"` // seller
	Title    string `json:"title"`
	Category string `json:"category"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	Status        AuctionStatus `json:"status"`
	CurrentBid    float64       `json:"currentBid"`
	BidCount      int           `json:"bidCount"`
	StartingPrice float64       `json:"startingPrice"`
	MinBidStep    float64       `json:"minBidStep"`
	BuyNowPrice   *float64      `json:"buyNowPrice,omitempty"`

	// Bids are ordered newest first.
	Bids []Bid `json:"bids"`
}

// Normalize substitutes defaults for fields a partial response left out so the
// projection is always renderable: a nil bid list becomes empty, bids are
// sorted newest first, bidCount follows the bid list, a missing currentBid
// falls back to the top bid or the starting price, and a missing status is
// derived from the schedule.
func (a *Auction) Normalize(now time.Time) {
	if a.Bids == nil {
		a.Bids = []Bid{}
	}
	sort.SliceStable(a.Bids, func(i, j int) bool {
		return a.Bids[i].Timestamp.After(a.Bids[j].Timestamp)
	})
	a.BidCount = len(a.Bids)

	if a.CurrentBid == 0 {
		if len(a.Bids) > 0 {
			a.CurrentBid = a.Bids[0].Amount
		} else {
			a.CurrentBid = a.StartingPrice
		}
	}

	switch a.Status {
	case AuctionStatusUpcoming, AuctionStatusActive, AuctionStatusEnded:
	default:
		a.Status = a.ScheduledStatus(now)
	}
}

// ScheduledStatus derives the status implied by start and end dates alone.
func (a *Auction) ScheduledStatus(now time.Time) AuctionStatus {
	switch {
	case !a.StartDate.IsZero() && now.Before(a.StartDate):
		return AuctionStatusUpcoming
	case !a.EndDate.IsZero() && !now.Before(a.EndDate):
		return AuctionStatusEnded
	default:
		return AuctionStatusActive
	}
}

// WinningBid returns the newest bid, which is the winner once the auction
// has ended.
func (a *Auction) WinningBid() (Bid, bool) {
	if len(a.Bids) == 0 {
		return Bid{}, false
	}
	return a.Bids[0], true
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	c := *a
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		c.BuyNowPrice = &v
	}
	c.Bids = make([]Bid, len(a.Bids))
	copy(c.Bids, a.Bids)
	return &c
}
