package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	target := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		reference time.Time
		dir       Direction
		want      string
	}{
		{name: "at_target_remaining", reference: target, dir: Remaining, want: LabelEnded},
		{name: "at_target_until_start", reference: target, dir: UntilStart, want: LabelStarted},
		{name: "past_target", reference: target.Add(time.Hour), dir: Remaining, want: LabelEnded},
		{name: "ninety_seconds", reference: target.Add(-90 * time.Second), dir: Remaining, want: "00:01:30"},
		{name: "sub_second", reference: target.Add(-500 * time.Millisecond), dir: Remaining, want: "00:00:00"},
		{name: "hours", reference: target.Add(-(5*time.Hour + 4*time.Minute + 3*time.Second)), dir: UntilStart, want: "05:04:03"},
		{name: "one_day_one_hour", reference: target.Add(-90000 * time.Second), dir: Remaining, want: "1д. 01:00:00"},
		{name: "many_days", reference: target.Add(-(12*24*time.Hour + 59*time.Second)), dir: Remaining, want: "12д. 00:00:59"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(target, tt.reference, tt.dir))
		})
	}
}

func TestEvaluate(t *testing.T) {
	target := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tick := Evaluate(target, target.Add(-90*time.Second), UntilStart)
	assert.Equal(t, UntilStart, tick.Direction)
	assert.Equal(t, 90*time.Second, tick.Left)
	assert.Equal(t, "00:01:30", tick.Label)
	assert.False(t, tick.Done)

	tick = Evaluate(target, target.Add(-500*time.Millisecond), Remaining)
	assert.Equal(t, "00:00:00", tick.Label)
	assert.False(t, tick.Done, "done only once the target is reached")

	tick = Evaluate(target, target.Add(time.Minute), Remaining)
	assert.Equal(t, time.Duration(0), tick.Left)
	assert.Equal(t, LabelEnded, tick.Label)
	assert.True(t, tick.Done)
	assert.Equal(t, target.Add(time.Minute), tick.At)
}

func TestTimer_EvaluateMatchesEvaluate(t *testing.T) {
	target := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(target.Add(-time.Hour))

	timer := NewTimer(clock, Remaining, nil)
	timer.Start(target)
	defer timer.Stop()

	assert.Equal(t, Evaluate(target, clock.Now(), Remaining), timer.Evaluate())
}

func collect() (func(Tick), <-chan Tick) {
	ch := make(chan Tick, 64)
	return func(t Tick) { ch <- t }, ch
}

func next(t *testing.T, ch <-chan Tick) Tick {
	t.Helper()
	select {
	case tick := <-ch:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return Tick{}
	}
}

func TestTimer_TicksEverySecondUntilDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	onTick, ticks := collect()
	timer := NewTimer(clock, Remaining, onTick)
	defer timer.Stop()

	timer.Start(clock.Now().Add(2 * time.Second))
	assert.Equal(t, "00:00:02", next(t, ticks).Label)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Equal(t, "00:00:01", next(t, ticks).Label)

	clock.Advance(time.Second)
	last := next(t, ticks)
	assert.Equal(t, LabelEnded, last.Label)
	assert.True(t, last.Done)
}

func TestTimer_RestartsOnlyWhenTargetChanges(t *testing.T) {
	clock := clockwork.NewFakeClock()
	onTick, ticks := collect()
	timer := NewTimer(clock, Remaining, onTick)
	defer timer.Stop()

	target := clock.Now().Add(time.Hour)
	timer.Start(target)
	assert.Equal(t, "01:00:00", next(t, ticks).Label)

	timer.Start(target)
	select {
	case tick := <-ticks:
		t.Fatalf("same target must not restart, got %q", tick.Label)
	case <-time.After(50 * time.Millisecond):
	}

	timer.Start(target.Add(time.Hour))
	assert.Equal(t, "02:00:00", next(t, ticks).Label)
	assert.True(t, timer.Target().Equal(target.Add(time.Hour)))
}

func TestTimer_StopHaltsTicks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	onTick, ticks := collect()
	timer := NewTimer(clock, UntilStart, onTick)

	timer.Start(clock.Now().Add(time.Minute))
	next(t, ticks)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	timer.Stop()
	assert.False(t, timer.Running())

	clock.Advance(5 * time.Second)
	select {
	case tick := <-ticks:
		t.Fatalf("stopped timer ticked: %q", tick.Label)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPair_OnlyOneTimerRuns(t *testing.T) {
	clock := clockwork.NewFakeClock()
	onTick, ticks := collect()
	pair := NewPair(clock, onTick)
	defer pair.Stop()

	a := &models.Auction{
		Status:    models.AuctionStatusUpcoming,
		StartDate: clock.Now().Add(90 * time.Second),
		EndDate:   clock.Now().Add(90000 * time.Second),
	}

	pair.Sync(a)
	tick := next(t, ticks)
	assert.Equal(t, UntilStart, tick.Direction)
	assert.Equal(t, "00:01:30", tick.Label)
	assert.Same(t, pair.untilStart, pair.Active())

	a.Status = models.AuctionStatusActive
	pair.Sync(a)
	tick = next(t, ticks)
	assert.Equal(t, Remaining, tick.Direction)
	assert.Equal(t, "1д. 01:00:00", tick.Label)
	assert.False(t, pair.untilStart.Running())
	assert.Same(t, pair.remaining, pair.Active())

	pair.Stop()
	assert.Nil(t, pair.Active())
}
