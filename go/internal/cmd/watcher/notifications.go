package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/config"
	"github.com/mcdev12/bazaar/go/internal/metrics"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/mcdev12/bazaar/go/internal/notify/natsink"
	"github.com/mcdev12/bazaar/go/internal/notify/outbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Notifications is the sink the auction guards hand their notifications to,
// plus whatever has to be shut down with it.
type Notifications struct {
	Sink notify.Sink
	// Health reports on the outbox relay; nil for the other backends.
	Health http.Handler

	closers []func()
}

// Close releases the transports in reverse order of creation.
func (n *Notifications) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
}

func setupNotifications(ctx context.Context, cfg *config.Config, registry prometheus.Registerer, clock clockwork.Clock) (*Notifications, error) {
	n := &Notifications{}

	switch cfg.Notify.Backend {
	case config.BackendLog:
		n.Sink = notify.LogSink{}

	case config.BackendNATS:
		publisher, err := connectJetStream(cfg.Notify.NATS)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, func() { publisher.Close() })
		n.Sink = notify.MultiSink{notify.LogSink{}, notify.NewPublishingSink(publisher, clock)}

	case config.BackendOutbox:
		pool, err := connectDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, pool.Close)

		store := outbox.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			n.Close()
			return nil, fmt.Errorf("failed to migrate outbox: %w", err)
		}

		var target notify.Publisher = notify.LogPublisher{}
		var broker outbox.ConnectionChecker
		if cfg.Notify.Outbox.RelayTo == config.BackendNATS {
			publisher, err := connectJetStream(cfg.Notify.NATS)
			if err != nil {
				n.Close()
				return nil, err
			}
			n.closers = append(n.closers, func() { publisher.Close() })
			target = publisher
			broker = publisher
		}

		outboxMetrics := outbox.NewPrometheusMetrics(registry, metrics.Namespace)
		relay := outbox.NewRelay(store, outbox.NewMetricPublisher(target, outboxMetrics, clock), outboxMetrics, clock, outbox.Config{
			PollInterval: cfg.Notify.Outbox.PollInterval,
			BatchSize:    int32(cfg.Notify.Outbox.BatchSize),
			MaxRetries:   cfg.Notify.Outbox.MaxRetries,
			RetryDelay:   outbox.DefaultConfig().RetryDelay,
		})
		if err := relay.Start(ctx); err != nil {
			n.Close()
			return nil, fmt.Errorf("failed to start outbox relay: %w", err)
		}
		n.closers = append(n.closers, func() {
			if err := relay.Stop(); err != nil {
				log.Error().Err(err).Msg("failed to stop outbox relay")
			}
		})

		listener := outbox.NewListener(pool, relay, clock, outbox.DefaultListenerConfig())
		go listener.Run(ctx)

		n.Health = outbox.NewHealthChecker(relay, store, store, broker, clock, 10*cfg.Notify.Outbox.PollInterval)
		n.Sink = notify.NewPublishingSink(store, clock)

	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Notify.Backend)
	}

	return n, nil
}

func connectJetStream(cfg config.NATSConfig) (*natsink.JetStreamPublisher, error) {
	jsCfg := natsink.DefaultJetStreamConfig()
	jsCfg.URL = cfg.URL
	if cfg.Stream != "" {
		jsCfg.StreamName = cfg.Stream
	}
	if cfg.SubjectPrefix != "" {
		jsCfg.SubjectPrefix = cfg.SubjectPrefix
	}

	publisher, err := natsink.NewJetStreamPublisher(jsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to JetStream: %w", err)
	}
	return publisher, nil
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", cfg.User).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return pool, nil
}
