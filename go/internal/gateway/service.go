package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/livesync"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/negotiation"
	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/rs/zerolog/log"
)

// Service is the live feed gateway: websocket subscribers, the auction views
// they drive, and the HTTP handlers for state and negotiation.
type Service struct {
	connectionManager *ConnectionManager
	views             *ViewRegistry
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	orderHandler      *OrderHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	PollInterval     time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		PollInterval:     livesync.DefaultPollInterval,
	}
}

// Dependencies are the collaborators the gateway is built from
type Dependencies struct {
	Auctions    livesync.AuctionFetcher
	Sink        notify.Sink
	Negotiation *negotiation.Service
	Metrics     *livesync.Metrics
	Clock       clockwork.Clock
}

// NewService creates a new gateway service
func NewService(config Config, deps Dependencies) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig, clock)
	views := NewViewRegistry(deps.Auctions, deps.Sink, clock, connectionManager, deps.Metrics, config.PollInterval)

	return &Service{
		connectionManager: connectionManager,
		views:             views,
		wsHandler:         NewWebSocketHandler(connectionManager, views),
		stateHandler:      NewStateHandler(views, connectionManager, deps.Auctions, clock),
		orderHandler:      NewOrderHandler(deps.Negotiation),
	}
}

// Start runs the broadcast loop until ctx is done, then tears down every view
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting auction gateway service")

	go s.connectionManager.Start(ctx)

	<-ctx.Done()

	log.Info().Msg("auction gateway service shutting down")
	s.Stop()
}

// Stop closes every auction view
func (s *Service) Stop() {
	s.views.Close()
	log.Info().Msg("auction gateway service stopped")
}

// Watch keeps an auction polled without subscribers
func (s *Service) Watch(ctx context.Context, id models.ID) error {
	return s.views.Watch(ctx, id)
}

// Views exposes the view registry
func (s *Service) Views() *ViewRegistry {
	return s.views
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	if s.orderHandler.service != nil {
		s.orderHandler.RegisterOrderRoutes(mux)
	}
	log.Info().Msg("auction gateway routes registered")
}

// Stats summarizes the gateway
type Stats struct {
	ConnectionStats
	OpenViews int    `json:"open_views"`
	Service   string `json:"service"`
	Status    string `json:"status"`
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	return Stats{
		ConnectionStats: s.connectionManager.GetConnectionStats(),
		OpenViews:       s.views.Len(),
		Service:         "auction_gateway",
		Status:          "running",
	}
}
