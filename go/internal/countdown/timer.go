package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is how often a running timer re-reads the clock.
const TickInterval = time.Second

// Tick is one evaluation of a countdown.
type Tick struct {
	Direction Direction     `json:"direction"`
	Target    time.Time     `json:"target"`
	Left      time.Duration `json:"left"`
	Label     string        `json:"label"`
	Done      bool          `json:"done"`
	At        time.Time     `json:"at"`
}

// Timer re-evaluates Format against the clock once per TickInterval and
// reports every evaluation to onTick. There is no drift compensation: each
// tick simply reads the clock again.
type Timer struct {
	clock  clockwork.Clock
	dir    Direction
	onTick func(Tick)

	mu     sync.Mutex
	target time.Time
	stop   chan struct{}
	done   chan struct{}
}

// NewTimer creates a stopped timer.
func NewTimer(clock clockwork.Clock, dir Direction, onTick func(Tick)) *Timer {
	if onTick == nil {
		onTick = func(Tick) {}
	}
	return &Timer{clock: clock, dir: dir, onTick: onTick}
}

// Start runs the countdown towards target. Calling Start again with the same
// target while running is a no-op; a different target restarts the ticker.
func (t *Timer) Start(target time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil && t.target.Equal(target) {
		return
	}
	t.stopLocked()

	t.target = target
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(target, t.stop, t.done)
}

// Stop halts the countdown and waits for the ticking goroutine to exit.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
}

// Running reports whether the timer is started.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Target returns the instant the timer counts towards.
func (t *Timer) Target() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Evaluate computes the current tick without waiting for the ticker.
func (t *Timer) Evaluate() Tick {
	return t.evaluate(t.Target())
}

func (t *Timer) evaluate(target time.Time) Tick {
	return Evaluate(target, t.clock.Now(), t.dir)
}

// Evaluate computes the tick a countdown towards target shows at now.
func Evaluate(target, now time.Time, dir Direction) Tick {
	left := target.Sub(now)
	if left < 0 {
		left = 0
	}
	return Tick{
		Direction: dir,
		Target:    target,
		Left:      left,
		Label:     Format(target, now, dir),
		Done:      left == 0,
		At:        now,
	}
}

func (t *Timer) run(target time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := t.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	tick := t.evaluate(target)
	t.onTick(tick)
	if tick.Done {
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			tick := t.evaluate(target)
			t.onTick(tick)
			// The label is final once the target has passed.
			if tick.Done {
				return
			}
		}
	}
}
