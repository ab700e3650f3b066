package countdown

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
)

// Pair holds the two countdowns an auction shows: time until start while
// upcoming, time remaining otherwise. At most one of them runs.
type Pair struct {
	remaining  *Timer
	untilStart *Timer
}

// NewPair creates both timers, reporting their ticks to onTick.
// onTick runs on the timer goroutine and must not call back into the Pair.
func NewPair(clock clockwork.Clock, onTick func(Tick)) *Pair {
	return &Pair{
		remaining:  NewTimer(clock, Remaining, onTick),
		untilStart: NewTimer(clock, UntilStart, onTick),
	}
}

// Sync starts the countdown matching the auction's status and stops the other.
func (p *Pair) Sync(a *models.Auction) {
	if a.Status == models.AuctionStatusUpcoming {
		p.remaining.Stop()
		p.untilStart.Start(a.StartDate)
		return
	}
	p.untilStart.Stop()
	p.remaining.Start(a.EndDate)
}

// Active returns the running timer, or nil.
func (p *Pair) Active() *Timer {
	switch {
	case p.untilStart.Running():
		return p.untilStart
	case p.remaining.Running():
		return p.remaining
	default:
		return nil
	}
}

// Stop halts both countdowns.
func (p *Pair) Stop() {
	p.remaining.Stop()
	p.untilStart.Stop()
}
