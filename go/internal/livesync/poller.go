package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is the polling period for an active auction.
const DefaultPollInterval = 10 * time.Second

var (
	ErrPollerClosed  = errors.New("poller closed")
	ErrPollerRunning = errors.New("poller already running")
)

// AuctionFetcher loads the server's current auction projection.
type AuctionFetcher interface {
	GetAuction(ctx context.Context, id models.ID) (*models.Auction, error)
}

// Visibility reports whether anyone is looking at the auction. Ticks are
// skipped while it returns false.
type Visibility func() bool

// AlwaysVisible never skips a tick.
func AlwaysVisible() bool { return true }

// PollResult describes what one polling cycle did.
type PollResult string

const (
	PollApplied  PollResult = "applied"
	PollStale    PollResult = "stale"
	PollFailed   PollResult = "failed"
	PollHidden   PollResult = "hidden"
	PollInactive PollResult = "inactive"
	PollClosed   PollResult = "closed"
)

// PollerConfig holds the optional collaborators of a Poller.
type PollerConfig struct {
	Interval time.Duration
	Visible  Visibility
	Observer Observer
	Metrics  *Metrics
}

// Poller keeps one auction's projection in step with the server while the
// auction is active. Every fetch takes a sequence number when it is issued;
// a response is applied only if no later-issued fetch has been applied
// before it.
type Poller struct {
	id       models.ID
	fetcher  AuctionFetcher
	guard    *notify.Guard
	clock    clockwork.Clock
	interval time.Duration
	visible  Visibility
	observer Observer
	metrics  *Metrics

	mu      sync.Mutex
	auction *models.Auction
	issued  uint64
	applied uint64
	closed  bool
	stop    chan struct{}

	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

// NewPoller creates a poller for auction id. The guard must be scoped to id.
func NewPoller(id models.ID, fetcher AuctionFetcher, guard *notify.Guard, clock clockwork.Clock, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Visible == nil {
		cfg.Visible = AlwaysVisible
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Poller{
		id:       id,
		fetcher:  fetcher,
		guard:    guard,
		clock:    clock,
		interval: cfg.Interval,
		visible:  cfg.Visible,
		observer: cfg.Observer,
		metrics:  cfg.Metrics,
	}
}

func (p *Poller) ID() models.ID { return p.id }

// Snapshot returns a copy of the current projection, or nil before the
// first successful fetch.
func (p *Poller) Snapshot() *models.Auction {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.auction == nil {
		return nil
	}
	return p.auction.Clone()
}

// Load performs the initial fetch. Unlike background polls its error is
// returned to the caller.
func (p *Poller) Load(ctx context.Context) (*models.Auction, error) {
	result, err := p.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auction %s: %w", p.id, err)
	}
	if result == PollClosed {
		return nil, ErrPollerClosed
	}
	return p.Snapshot(), nil
}

// Refresh fetches once regardless of status and visibility.
func (p *Poller) Refresh(ctx context.Context) (PollResult, error) {
	return p.fetch(ctx)
}

// Start begins ticking. Each tick runs Poll in its own goroutine, so a slow
// fetch neither delays nor cancels the next one.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	if p.stop != nil {
		return ErrPollerRunning
	}
	p.stop = make(chan struct{})

	p.wg.Add(1)
	go p.run(ctx, p.stop)

	log.Debug().
		Str("auction_id", p.id.String()).
		Dur("interval", p.interval).
		Msg("poller started")
	return nil
}

// Close stops ticking. Fetches already in flight are not aborted; their
// responses are dropped when they arrive.
func (p *Poller) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	stop := p.stop
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	p.wg.Wait()

	log.Debug().Str("auction_id", p.id.String()).Msg("poller closed")
}

// Wait blocks until every fetch started by the ticker has returned.
func (p *Poller) Wait() {
	p.inflight.Wait()
}

func (p *Poller) run(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.Chan():
			p.inflight.Add(1)
			go func() {
				defer p.inflight.Done()
				p.Poll(ctx)
			}()
		}
	}
}

// Poll runs one polling cycle: it fetches only while the local status is
// active and someone is watching.
func (p *Poller) Poll(ctx context.Context) PollResult {
	p.mu.Lock()
	closed := p.closed
	active := p.auction != nil && p.live(p.auction)
	p.mu.Unlock()

	switch {
	case closed:
		return PollClosed
	case !active:
		p.metrics.recordPoll(PollInactive)
		return PollInactive
	case !p.visible():
		p.metrics.recordPoll(PollHidden)
		return PollHidden
	}

	result, _ := p.fetch(ctx)
	return result
}

// live reports whether a is running: active, or upcoming past its start date
// while the server has not caught up yet.
func (p *Poller) live(a *models.Auction) bool {
	switch a.Status {
	case models.AuctionStatusActive:
		return true
	case models.AuctionStatusUpcoming:
		return !a.StartDate.IsZero() && !p.clock.Now().Before(a.StartDate)
	default:
		return false
	}
}

func (p *Poller) fetch(ctx context.Context) (PollResult, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return PollClosed, nil
	}
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	start := p.clock.Now()
	a, err := p.fetcher.GetAuction(ctx, p.id)
	p.metrics.recordFetch(p.clock.Since(start))
	if err != nil {
		p.metrics.recordPoll(PollFailed)
		log.Warn().
			Err(err).
			Str("auction_id", p.id.String()).
			Uint64("seq", seq).
			Msg("failed to fetch auction, keeping local state")
		return PollFailed, err
	}

	result := p.apply(ctx, seq, a)
	p.metrics.recordPoll(result)
	return result, nil
}

type transition struct {
	prev *models.Auction
	next *models.Auction
}

func (p *Poller) apply(ctx context.Context, seq uint64, fetched *models.Auction) PollResult {
	next := fetched.Clone()
	next.Normalize(p.clock.Now())
	if next.ID == "" {
		next.ID = p.id
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		log.Debug().
			Str("auction_id", p.id.String()).
			Uint64("seq", seq).
			Msg("dropping response for closed poller")
		return PollClosed
	}
	if seq <= p.applied {
		applied := p.applied
		p.mu.Unlock()
		log.Debug().
			Str("auction_id", p.id.String()).
			Uint64("seq", seq).
			Uint64("applied_seq", applied).
			Msg("dropping stale auction response")
		return PollStale
	}

	prev := p.auction
	if prev != nil && next.CurrentBid < prev.CurrentBid {
		log.Warn().
			Str("auction_id", p.id.String()).
			Float64("current_bid", prev.CurrentBid).
			Float64("fetched_bid", next.CurrentBid).
			Msg("server reported a lower current bid, keeping the higher one")
		next.CurrentBid = prev.CurrentBid
	}
	p.auction = next
	p.applied = seq
	t := transition{next: next.Clone()}
	if prev != nil {
		t.prev = prev.Clone()
	}
	p.mu.Unlock()

	p.emit(ctx, t)
	return PollApplied
}

func (p *Poller) emit(ctx context.Context, t transition) {
	now := p.clock.Now()
	next := t.next

	p.observer.Notify(Event{
		Type:      EventTypeSnapshot,
		AuctionID: p.id,
		At:        now,
		Auction:   next,
	})

	if t.prev == nil {
		return
	}
	prev := t.prev

	if added := len(next.Bids) - len(prev.Bids); added > 0 {
		p.metrics.recordNewBid()
		log.Info().
			Str("auction_id", p.id.String()).
			Int("bid_count", next.BidCount).
			Float64("current_bid", next.CurrentBid).
			Msg("new bid")
		p.observer.Notify(Event{
			Type:       EventTypeNewBid,
			AuctionID:  p.id,
			At:         now,
			Auction:    next,
			NewBids:    next.Bids[:added],
			CurrentBid: next.CurrentBid,
			Cue:        true,
			Toast:      NewBidToast(next.CurrentBid),
		})
	}

	if next.Status != prev.Status {
		log.Info().
			Str("auction_id", p.id.String()).
			Str("from", string(prev.Status)).
			Str("to", string(next.Status)).
			Msg("auction status changed")
		p.observer.Notify(Event{
			Type:      EventTypeStatusChanged,
			AuctionID: p.id,
			At:        now,
			Auction:   next,
			Previous:  prev.Status,
		})
	}

	if prev.Status != models.AuctionStatusEnded && next.Status == models.AuctionStatusEnded {
		outcome := p.guard.ObserveEnded(ctx, next)
		p.metrics.recordEnding(string(outcome))

		ev := Event{
			Type:      EventTypeAuctionEnded,
			AuctionID: p.id,
			At:        now,
			Auction:   next,
			Outcome:   outcome,
		}
		if winner, ok := next.WinningBid(); ok {
			ev.Winner = &winner
		}
		p.observer.Notify(ev)
	}
}
