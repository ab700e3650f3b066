package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// NotifyChannel is the channel the outbox insert trigger notifies on.
const NotifyChannel = "notification_outbox"

// Waker is woken for every outbox insert.
type Waker interface {
	Trigger()
}

type ListenerConfig struct {
	Channel    string
	RetryDelay time.Duration // Wait before re-establishing a lost LISTEN
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Channel:    NotifyChannel,
		RetryDelay: 5 * time.Second,
	}
}

// Listener holds a LISTEN connection and wakes the relay as soon as a
// notification is inserted. The relay's ticker still covers anything missed
// while the connection is down.
type Listener struct {
	pool  *pgxpool.Pool
	waker Waker
	clock clockwork.Clock
	cfg   ListenerConfig
}

func NewListener(pool *pgxpool.Pool, waker Waker, clock clockwork.Clock, cfg ListenerConfig) *Listener {
	return &Listener{
		pool:  pool,
		waker: waker,
		clock: clock,
		cfg:   cfg,
	}
}

// Run listens until ctx is done, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) {
	log.Info().
		Str("channel", l.cfg.Channel).
		Msg("outbox listener started")

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("outbox listener shutting down")
			return
		}
		log.Error().Err(err).Dur("retry_in", l.cfg.RetryDelay).Msg("outbox listener lost connection")

		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(l.cfg.RetryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	// The connection is still subscribed, so it must not go back to the pool.
	defer func() {
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.cfg.Channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen to channel: %w", err)
	}

	// Catch up on anything inserted before LISTEN took effect.
	l.waker.Trigger()

	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}

		log.Debug().
			Str("channel", note.Channel).
			Str("notification_id", note.Payload).
			Msg("outbox insert notified")
		l.waker.Trigger()
	}
}
