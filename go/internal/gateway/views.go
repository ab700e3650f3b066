package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/livesync"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/rs/zerolog/log"
)

var ErrRegistryClosed = errors.New("view registry closed")

// ViewRegistry keeps one livesync.View per auction that has subscribers or
// is on the watch list. A view is created by the first subscriber and closed
// when the last one leaves, unless the auction is watched.
type ViewRegistry struct {
	fetcher     livesync.AuctionFetcher
	sink        notify.Sink
	clock       clockwork.Clock
	connections *ConnectionManager
	metrics     *livesync.Metrics
	interval    time.Duration

	// ctx bounds every poll issued by the views.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	views  map[models.ID]*viewEntry
	closed bool
}

type viewEntry struct {
	view    *livesync.View
	refs    int
	watched bool

	ready chan struct{}
	err   error
}

func NewViewRegistry(fetcher livesync.AuctionFetcher, sink notify.Sink, clock clockwork.Clock, connections *ConnectionManager, metrics *livesync.Metrics, interval time.Duration) *ViewRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &ViewRegistry{
		fetcher:     fetcher,
		sink:        sink,
		clock:       clock,
		connections: connections,
		metrics:     metrics,
		interval:    interval,
		ctx:         ctx,
		cancel:      cancel,
		views:       make(map[models.ID]*viewEntry),
	}
}

// Acquire returns the live view of an auction, creating and loading it for
// the first subscriber. Every successful Acquire must be paired with Release.
func (r *ViewRegistry) Acquire(ctx context.Context, id models.ID) (*livesync.View, error) {
	return r.acquire(ctx, id, false)
}

// Watch keeps a view open for id without any subscriber. Watched views poll
// even when nobody is connected, so end-of-auction notifications go out.
func (r *ViewRegistry) Watch(ctx context.Context, id models.ID) error {
	_, err := r.acquire(ctx, id, true)
	return err
}

func (r *ViewRegistry) acquire(ctx context.Context, id models.ID, watch bool) (*livesync.View, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	entry, exists := r.views[id]
	if exists {
		if watch {
			entry.watched = true
		} else {
			entry.refs++
		}
		r.mu.Unlock()

		select {
		case <-entry.ready:
		case <-ctx.Done():
			r.releaseEntry(id, entry, watch)
			return nil, ctx.Err()
		}
		if entry.err != nil {
			r.releaseEntry(id, entry, watch)
			return nil, entry.err
		}
		return entry.view, nil
	}

	entry = &viewEntry{ready: make(chan struct{}), watched: watch}
	if !watch {
		entry.refs = 1
	}
	entry.view = livesync.NewView(id, r.fetcher, r.sink, r.clock, livesync.PollerConfig{
		Interval: r.interval,
		Visible:  func() bool { return r.visible(id) },
		Observer: livesync.ObserverFunc(func(ev livesync.Event) { r.broadcast(ev) }),
		Metrics:  r.metrics,
	})
	r.views[id] = entry
	r.mu.Unlock()

	entry.err = r.open(ctx, entry.view)
	close(entry.ready)

	if entry.err != nil {
		r.mu.Lock()
		if r.views[id] == entry {
			delete(r.views, id)
		}
		r.mu.Unlock()
		entry.view.Close()
		return nil, entry.err
	}

	log.Info().
		Str("auction_id", id.String()).
		Bool("watched", watch).
		Msg("auction view opened")

	return entry.view, nil
}

func (r *ViewRegistry) open(ctx context.Context, view *livesync.View) error {
	if _, err := view.Load(ctx); err != nil {
		return err
	}
	return view.Start(r.ctx)
}

// Release drops one subscriber reference.
func (r *ViewRegistry) Release(id models.ID) {
	r.release(id, false)
}

// Unwatch removes id from the watch list.
func (r *ViewRegistry) Unwatch(id models.ID) {
	r.release(id, true)
}

func (r *ViewRegistry) release(id models.ID, watch bool) {
	r.releaseEntry(id, nil, watch)
}

// releaseEntry drops a reference on the entry registered for id. When want is
// set, nothing happens unless that exact entry is still registered: a failed
// load may already have removed it and a newer view taken its place.
func (r *ViewRegistry) releaseEntry(id models.ID, want *viewEntry, watch bool) {
	r.mu.Lock()
	entry, exists := r.views[id]
	if !exists || (want != nil && entry != want) {
		r.mu.Unlock()
		return
	}
	if watch {
		entry.watched = false
	} else if entry.refs > 0 {
		entry.refs--
	}
	if entry.refs > 0 || entry.watched {
		r.mu.Unlock()
		return
	}
	delete(r.views, id)
	r.mu.Unlock()

	<-entry.ready
	entry.view.Close()

	log.Info().Str("auction_id", id.String()).Msg("auction view closed")
}

// Get returns the open view of an auction.
func (r *ViewRegistry) Get(id models.ID) (*livesync.View, bool) {
	r.mu.Lock()
	entry, exists := r.views[id]
	r.mu.Unlock()
	if !exists {
		return nil, false
	}
	<-entry.ready
	if entry.err != nil {
		return nil, false
	}
	return entry.view, true
}

// Len returns the number of open views.
func (r *ViewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close tears down every view.
func (r *ViewRegistry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := make([]*viewEntry, 0, len(r.views))
	for id, entry := range r.views {
		entries = append(entries, entry)
		delete(r.views, id)
	}
	r.mu.Unlock()

	r.cancel()
	for _, entry := range entries {
		<-entry.ready
		entry.view.Close()
	}
}

func (r *ViewRegistry) visible(id models.ID) bool {
	r.mu.Lock()
	entry, exists := r.views[id]
	watched := exists && entry.watched
	r.mu.Unlock()
	return watched || r.connections.SubscriberCount(id) > 0
}

func (r *ViewRegistry) broadcast(ev livesync.Event) {
	event, err := NewAuctionEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("auction_id", ev.AuctionID.String()).Msg("failed to build auction event")
		return
	}
	r.connections.BroadcastToAuction(ev.AuctionID, event)

	if ev.Type == livesync.EventTypeAuctionEnded && ev.Winner != nil {
		won := *event
		won.Type = EventTypeAuctionWon
		r.connections.BroadcastToUser(ev.AuctionID, ev.Winner.UserID, &won)
	}
}
