package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/clients/marketplace_client"
	"github.com/mcdev12/bazaar/go/internal/config"
	"github.com/mcdev12/bazaar/go/internal/gateway"
	"github.com/mcdev12/bazaar/go/internal/livesync"
	"github.com/mcdev12/bazaar/go/internal/metrics"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/negotiation"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the watcher config file")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	registry := metrics.NewRegistry()

	// Marketplace client
	client := marketplace_client.NewMarketplaceClient(cfg.Marketplace.BaseURL, cfg.Marketplace.Token, clock)
	client.SetTimeout(cfg.Marketplace.Timeout)

	// Notifications
	notifications, err := setupNotifications(ctx, cfg, registry, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up notifications")
	}
	defer notifications.Close()

	// Gateway
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.PollInterval = cfg.Poll.Interval
	gatewayService := gateway.NewService(gatewayConfig, gateway.Dependencies{
		Auctions:    client,
		Sink:        notifications.Sink,
		Negotiation: negotiation.NewService(client, negotiation.NewMachine(clock)),
		Metrics:     livesync.NewMetrics(registry, metrics.Namespace),
		Clock:       clock,
	})

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		gatewayService.Start(ctx)
	}()

	for _, id := range cfg.Watch {
		if err := gatewayService.Watch(ctx, models.ID(id)); err != nil {
			log.Error().Err(err).Str("auction_id", id).Msg("failed to watch auction")
		}
	}

	server := setupServer(cfg.Server.Port, gatewayService, registry, notifications.Health)

	log.Info().
		Str("marketplace", cfg.Marketplace.BaseURL).
		Str("notify_backend", cfg.Notify.Backend).
		Dur("poll_interval", cfg.Poll.Interval).
		Int("watched", len(cfg.Watch)).
		Str("addr", server.Addr).
		Msg("starting auction watcher")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stops the broadcast loop and tears down every auction view.
	cancel()
	<-serviceDone

	log.Info().Msg("auction watcher shutdown complete")
}
