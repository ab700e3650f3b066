package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// HighPendingThreshold is the backlog size reported as a problem.
const HighPendingThreshold = 1000

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastSentTime      time.Time `json:"last_sent_time"`
	EventsProcessed   uint64    `json:"events_processed"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	BrokerConnected   *bool     `json:"broker_connected,omitempty"`
	RelayActive       bool      `json:"relay_active"`
	Errors            []string  `json:"errors"`
}

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionChecker reports whether the relay's transport is connected.
type ConnectionChecker interface {
	IsConnected() bool
}

type HealthChecker struct {
	relay     *Relay
	queue     Queue
	db        Pinger
	broker    ConnectionChecker
	clock     clockwork.Clock
	threshold time.Duration // How long without deliveries before unhealthy
}

// NewHealthChecker builds a checker for relay. broker may be nil when the
// relay publishes somewhere without a connection.
func NewHealthChecker(relay *Relay, queue Queue, db Pinger, broker ConnectionChecker, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		relay:     relay,
		queue:     queue,
		db:        db,
		broker:    broker,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsProcessed, status.LastSentTime = h.relay.Stats()

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.broker != nil {
		connected := h.broker.IsConnected()
		status.BrokerConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "broker disconnected")
		}
	}

	status.RelayActive = h.relay.Running()
	if !status.RelayActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay not active")
	}

	if status.DatabaseConnected {
		pending, err := h.queue.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending notifications: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > HighPendingThreshold {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending notification count: %d", pending))
			}
		}
	}

	// A backlog with no recent delivery means the relay is stuck.
	if status.PendingEvents > 0 && !status.LastSentTime.IsZero() {
		since := h.clock.Since(status.LastSentTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no notifications delivered for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode outbox health")
	}
}
