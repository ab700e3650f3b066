package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/bazaar/go/internal/gateway"
	"github.com/mcdev12/bazaar/go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(port string, gatewayService *gateway.Service, registry *prometheus.Registry, outboxHealth http.Handler) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register gateway routes (WebSocket and REST)
	gatewayService.RegisterRoutes(mux)

	mux.Handle("GET /metrics", metrics.Handler(registry))

	setupHealthCheck(mux)
	if outboxHealth != nil {
		mux.Handle("GET /health/outbox", outboxHealth)
	}

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		stats := gatewayService.GetStats()
		fmt.Fprintf(w, `{"service":"auction-watcher","connections":%d,"open_views":%d}`,
			stats.TotalConnections, stats.OpenViews)
	})

	// Wrap with CORS
	handler := c.Handler(mux)

	// Websocket connections are long lived, so there is no write timeout.
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
