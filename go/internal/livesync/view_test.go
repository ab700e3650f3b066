package livesync

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/countdown"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_LoadStartsMatchingCountdown(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	fetcher := &fakeFetcher{}
	upcoming := auction(models.AuctionStatusUpcoming)
	upcoming.StartDate = t0.Add(90 * time.Second)
	fetcher.push(fetchResponse{auction: upcoming})

	events := &eventLog{}
	v := NewView("a-1", fetcher, &recordingSink{}, clock, PollerConfig{Observer: events})
	defer v.Close()

	a, err := v.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusUpcoming, a.Status)

	tick, ok := v.Countdown()
	require.True(t, ok)
	assert.Equal(t, countdown.UntilStart, tick.Direction)
	assert.Equal(t, "00:01:30", tick.Label)

	require.Eventually(t, func() bool { return events.count(EventTypeCountdown) >= 1 }, time.Second, time.Millisecond)
}

func TestView_StartOfAuctionTriggersRefresh(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	fetcher := &fakeFetcher{}
	upcoming := auction(models.AuctionStatusUpcoming)
	upcoming.StartDate = t0.Add(2 * time.Second)
	fetcher.push(fetchResponse{auction: upcoming})

	v := NewView("a-1", fetcher, &recordingSink{}, clock, PollerConfig{})
	defer v.Close()

	_, err := v.Load(context.Background())
	require.NoError(t, err)

	active := auction(models.AuctionStatusActive)
	active.StartDate = upcoming.StartDate
	fetcher.push(fetchResponse{auction: active})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool {
		snap := v.Snapshot()
		return snap != nil && snap.Status == models.AuctionStatusActive
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		tick, ok := v.Countdown()
		return ok && tick.Direction == countdown.Remaining
	}, 2*time.Second, time.Millisecond)
}

func TestView_SwitchToResetsGuard(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	fetcher := &fakeFetcher{}
	fetcher.push(fetchResponse{auction: auction(models.AuctionStatusActive, threeBids()...)})

	sink := &recordingSink{}
	v := NewView("a-1", fetcher, sink, clock, PollerConfig{})
	defer v.Close()

	_, err := v.Load(context.Background())
	require.NoError(t, err)

	ended := auction(models.AuctionStatusEnded, threeBids()...)
	fetcher.push(fetchResponse{auction: ended})
	assert.Equal(t, PollApplied, v.Poll(context.Background()))
	require.True(t, v.Guard().Fired())
	require.Len(t, sink.winners, 1)

	// Same id keeps the session and the latch.
	_, err = v.SwitchTo(context.Background(), "a-1")
	require.NoError(t, err)
	assert.True(t, v.Guard().Fired())

	other := auction(models.AuctionStatusActive, threeBids()...)
	other.ID = "a-2"
	fetcher.push(fetchResponse{auction: other})

	a, err := v.SwitchTo(context.Background(), "a-2")
	require.NoError(t, err)
	assert.Equal(t, models.ID("a-2"), a.ID)
	assert.Equal(t, models.ID("a-2"), v.ID())
	assert.False(t, v.Guard().Fired())
	assert.Equal(t, models.ID("a-2"), v.Guard().AuctionID())

	otherEnded := auction(models.AuctionStatusEnded, threeBids()...)
	otherEnded.ID = "a-2"
	fetcher.push(fetchResponse{auction: otherEnded})
	assert.Equal(t, PollApplied, v.Poll(context.Background()))

	require.Len(t, sink.winners, 2)
	assert.Equal(t, models.ID("a-2"), sink.winners[1].AuctionID)
}

func TestView_CloseStopsEverything(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	fetcher := &fakeFetcher{}
	fetcher.push(fetchResponse{auction: auction(models.AuctionStatusActive, threeBids()...)})

	v := NewView("a-1", fetcher, &recordingSink{}, clock, PollerConfig{})

	_, err := v.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, v.Start(ctx))

	// Poll ticker plus the remaining-time countdown.
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	v.Close()

	require.NoError(t, clock.BlockUntilContext(ctx, 0))
	_, ok := v.Countdown()
	assert.False(t, ok)
	assert.Equal(t, PollClosed, v.Poll(context.Background()))
}
