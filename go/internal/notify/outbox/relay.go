package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/rs/zerolog/log"
)

var (
	ErrRelayRunning    = errors.New("outbox relay already running")
	ErrRelayNotRunning = errors.New("outbox relay not running")
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Relay drains the outbox into a Publisher.
type Relay struct {
	queue     Queue
	publisher notify.Publisher
	metrics   MetricsCollector
	clock     clockwork.Clock
	config    Config

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	wake      chan struct{}
	wg        sync.WaitGroup
	processed uint64
	lastSent  time.Time
}

func NewRelay(queue Queue, publisher notify.Publisher, metrics MetricsCollector, clock clockwork.Clock, cfg Config) *Relay {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Relay{
		queue:     queue,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		config:    cfg,
		wake:      make(chan struct{}, 1),
	}
}

func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRelayRunning
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	log.Info().
		Dur("poll_interval", r.config.PollInterval).
		Int32("batch_size", r.config.BatchSize).
		Msg("outbox relay started")

	return nil
}

func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrRelayNotRunning
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()

	log.Info().Msg("outbox relay stopped")
	return nil
}

// Trigger asks the relay to process a batch now instead of waiting for the
// next tick. Triggers while one is pending coalesce.
func (r *Relay) Trigger() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stats returns how many envelopes the relay delivered and when it last did.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastSent
}

// Running reports whether the relay loop is active.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	r.ProcessOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.Chan():
			r.ProcessOnce(ctx)
		case <-r.wake:
			r.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce relays one batch and returns how many envelopes were delivered.
func (r *Relay) ProcessOnce(ctx context.Context) int {
	start := r.clock.Now()

	batch, err := r.queue.NextBatch(ctx, r.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent notifications")
		return 0
	}

	events := batch.Events()
	if len(events) == 0 {
		_ = batch.Rollback(ctx)
		r.metrics.RecordOutboxLag(0)
		return 0
	}

	log.Debug().Int("count", len(events)).Msg("processing outbox notifications")

	var delivered []uuid.UUID
	for _, env := range events {
		if err := r.publishWithRetry(ctx, env); err != nil {
			log.Error().
				Err(err).
				Str("notification_id", env.ID.String()).
				Str("kind", string(env.Kind)).
				Msg("failed to publish notification")
			continue
		}
		delivered = append(delivered, env.ID)
	}

	if len(delivered) > 0 {
		if err := batch.MarkSent(ctx, delivered); err != nil {
			_ = batch.Rollback(ctx)
			log.Error().Err(err).Msg("failed to mark notifications as sent")
			return 0
		}
	}

	if err := batch.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("failed to commit outbox batch")
		return 0
	}

	if len(delivered) > 0 {
		r.mu.Lock()
		r.processed += uint64(len(delivered))
		r.lastSent = r.clock.Now()
		r.mu.Unlock()
	}

	r.metrics.RecordBatchProcessed(len(events), r.clock.Since(start))
	if pending, err := r.queue.CountPending(ctx); err == nil {
		r.metrics.RecordOutboxLag(pending)
	}

	log.Info().
		Int("total", len(events)).
		Int("successful", len(delivered)).
		Msg("processed outbox notifications")

	return len(delivered)
}

func (r *Relay) publishWithRetry(ctx context.Context, env notify.Envelope) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := r.publisher.Publish(ctx, env); err != nil {
			lastErr = err
			r.metrics.RecordPublishAttempt(env.Kind, attempt+1, false)
			log.Warn().
				Err(err).
				Str("notification_id", env.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish notification, retrying")
			continue
		}

		r.metrics.RecordPublishAttempt(env.Kind, attempt+1, true)
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}
