package livesync

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/countdown"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/rs/zerolog/log"
)

// View owns everything live about one auction at a time: the poller, both
// countdowns and the notification guard. Switching to another auction tears
// the old session down before the new one starts.
type View struct {
	fetcher AuctionFetcher
	clock   clockwork.Clock
	guard   *notify.Guard
	cfg     PollerConfig

	mu      sync.Mutex
	session *session
}

type session struct {
	id     models.ID
	poller *Poller
	timers *countdown.Pair
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewView creates a view on auction id. Nothing runs until Load and Start.
func NewView(id models.ID, fetcher AuctionFetcher, sink notify.Sink, clock clockwork.Clock, cfg PollerConfig) *View {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	v := &View{
		fetcher: fetcher,
		clock:   clock,
		guard:   notify.NewGuard(sink, id),
		cfg:     cfg,
	}
	v.session = v.newSession(id)
	return v
}

func (v *View) newSession(id models.ID) *session {
	s := &session{id: id}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	pcfg := v.cfg
	pcfg.Observer = ObserverFunc(func(ev Event) { v.onPollerEvent(s, ev) })
	s.poller = NewPoller(id, v.fetcher, v.guard, v.clock, pcfg)

	s.timers = countdown.NewPair(v.clock, func(tick countdown.Tick) { v.onTick(s, tick) })
	return s
}

func (v *View) current() *session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

// ID returns the auction the view currently shows.
func (v *View) ID() models.ID {
	return v.current().id
}

// Guard returns the notification latch of the view.
func (v *View) Guard() *notify.Guard {
	return v.guard
}

// Load performs the initial fetch and starts the matching countdown.
func (v *View) Load(ctx context.Context) (*models.Auction, error) {
	s := v.current()
	a, err := s.poller.Load(ctx)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Start begins polling. ctx bounds the fetches issued by the ticker.
func (v *View) Start(ctx context.Context) error {
	return v.current().poller.Start(ctx)
}

// Snapshot returns the current projection, or nil before Load.
func (v *View) Snapshot() *models.Auction {
	return v.current().poller.Snapshot()
}

// Countdown evaluates the active countdown.
func (v *View) Countdown() (countdown.Tick, bool) {
	t := v.current().timers.Active()
	if t == nil {
		return countdown.Tick{}, false
	}
	return t.Evaluate(), true
}

// Poll runs one polling cycle immediately.
func (v *View) Poll(ctx context.Context) PollResult {
	return v.current().poller.Poll(ctx)
}

// SwitchTo tears down the current session and opens auction id. The guard
// latch is reset only when id differs from the current auction.
func (v *View) SwitchTo(ctx context.Context, id models.ID) (*models.Auction, error) {
	v.mu.Lock()
	old := v.session
	v.mu.Unlock()

	if old.id == id {
		return old.poller.Snapshot(), nil
	}

	old.close()
	v.guard.Reset(id)

	s := v.newSession(id)
	v.mu.Lock()
	v.session = s
	v.mu.Unlock()

	log.Info().
		Str("from", old.id.String()).
		Str("to", id.String()).
		Msg("view switched auction")

	a, err := s.poller.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.poller.Start(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close tears the view down: polling and both countdowns stop before it
// returns.
func (v *View) Close() {
	v.current().close()
}

func (s *session) close() {
	s.cancel()
	s.poller.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.timers.Stop()
}

func (s *session) syncTimers(a *models.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timers.Sync(a)
}

func (v *View) onPollerEvent(s *session, ev Event) {
	switch ev.Type {
	case EventTypeSnapshot, EventTypeStatusChanged:
		if ev.Auction != nil {
			s.syncTimers(ev.Auction)
		}
	}
	v.cfg.Observer.Notify(ev)
}

func (v *View) onTick(s *session, tick countdown.Tick) {
	v.cfg.Observer.Notify(Event{
		Type:      EventTypeCountdown,
		AuctionID: s.id,
		At:        tick.At,
		Tick:      &tick,
	})

	// Polling only runs while active, so the start of an upcoming auction
	// is picked up with a one-off refresh.
	if tick.Done && tick.Direction == countdown.UntilStart {
		go func() {
			if _, err := s.poller.Refresh(s.ctx); err != nil {
				log.Warn().Err(err).Str("auction_id", s.id.String()).Msg("refresh at start failed")
			}
		}()
	}
}
