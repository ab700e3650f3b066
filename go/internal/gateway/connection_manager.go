package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections for live auctions
type ConnectionManager struct {
	// Connection pools organized by auction ID
	auctionConnections map[models.ID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID        string
	UserID    models.ID
	AuctionID models.ID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	// onClose runs once after the connection is unregistered.
	onClose   func()
	closeOnce sync.Once

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	AuctionID models.ID
	Event     *AuctionEvent
	UserID    models.ID // Optional: if set, only send to this user
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	return &ConnectionManager{
		auctionConnections: make(map[models.ID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. onClose runs
// once when the connection goes away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, auctionID models.ID, onClose func()) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		AuctionID:   auctionID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		onClose:     onClose,
		ConnectedAt: cm.clock.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Str("auction_id", auctionID.String()).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.auctionConnections[conn.AuctionID] == nil {
		cm.auctionConnections[conn.AuctionID] = make(map[*Connection]bool)
	}
	cm.auctionConnections[conn.AuctionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("auction_id", conn.AuctionID.String()).
		Int("total_connections", len(cm.auctionConnections[conn.AuctionID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if connections, exists := cm.auctionConnections[conn.AuctionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)
			removed = true

			if len(connections) == 0 {
				delete(cm.auctionConnections, conn.AuctionID)
			}
		}
	}
	cm.mu.Unlock()

	if !removed {
		return
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Str("auction_id", conn.AuctionID.String()).
		Msg("connection unregistered")

	conn.closeOnce.Do(func() {
		if conn.onClose != nil {
			conn.onClose()
		}
	})
}

// SubscriberCount returns the number of live connections on an auction.
func (cm *ConnectionManager) SubscriberCount(auctionID models.ID) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.auctionConnections[auctionID])
}

// BroadcastToAuction sends an event to all connections for a specific auction
func (cm *ConnectionManager) BroadcastToAuction(auctionID models.ID, event *AuctionEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{AuctionID: auctionID, Event: event}:
	default:
		log.Warn().Str("auction_id", auctionID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToUser sends an event to a specific user watching an auction
func (cm *ConnectionManager) BroadcastToUser(auctionID, userID models.ID, event *AuctionEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{AuctionID: auctionID, Event: event, UserID: userID}:
	default:
		log.Warn().
			Str("auction_id", auctionID.String()).
			Str("user_id", userID.String()).
			Msg("broadcast channel full, dropping user message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.auctionConnections[message.AuctionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot the targets so the lock is not held while sending
	var targetConnections []*Connection
	for conn := range connections {
		if message.UserID != "" && conn.UserID != message.UserID {
			continue
		}
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targetConnections {
		if !conn.trySend(eventData) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	if message.Event.Type != EventTypeCountdown {
		log.Debug().
			Str("event_type", string(message.Event.Type)).
			Str("auction_id", message.AuctionID.String()).
			Int("connections", len(targetConnections)).
			Msg("event broadcasted")
	}
}

// trySend queues data without blocking. It reports false when the buffer is
// full; a connection that was unregistered meanwhile counts as delivered.
func (c *Connection) trySend(data []byte) (ok bool) {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.auctionConnections[c.AuctionID][c] {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections   int               `json:"total_connections"`
	ActiveAuctions     int               `json:"active_auctions"`
	AuctionConnections map[models.ID]int `json:"auction_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveAuctions:     len(cm.auctionConnections),
		AuctionConnections: make(map[models.ID]int, len(cm.auctionConnections)),
	}
	for auctionID, connections := range cm.auctionConnections {
		stats.TotalConnections += len(connections)
		stats.AuctionConnections[auctionID] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		log.Debug().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID.String()).
			Int("bytes", len(message)).
			Msg("ignoring client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
