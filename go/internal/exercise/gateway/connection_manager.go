// Package gateway pushes exercise snapshots to browser windows over WebSocket.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/excon/go/internal/exercise/events"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SnapshotSource returns the state a newly attached window should start from. ok is
// false when the process has nothing to show yet.
type SnapshotSource func() (snap models.DashboardSnapshot, ok bool)

// ConnectionManager manages the windows attached to one ExCon process
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	source   SnapshotSource
	metrics  metrics.Collector

	broadcastCh chan events.Message
}

// Connection is one attached window
type Connection struct {
	ID      string
	Actor   string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

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
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// windows are served from other origins during drills; CORS already gates HTTP
			return true
		},
	}
}

// NewConnectionManager creates a connection manager that greets new windows with the
// snapshot from source.
func NewConnectionManager(config ConnectionConfig, source SnapshotSource, m metrics.Collector) *ConnectionManager {
	if m == nil {
		m = metrics.NoOp{}
	}
	if config.SendBufferSize < 1 {
		config.SendBufferSize = 1
	}
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		source:      source,
		metrics:     m,
		broadcastCh: make(chan events.Message, 256),
	}
}

// Start processes broadcasts until ctx is done, then closes every connection
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection and queues the current snapshot for it
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, actor string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.NewString(),
		Actor:       actor,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.attach(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("actor", actor).
		Msg("window attached")
	return nil
}

// attach registers conn and queues the current snapshot under one lock, so a broadcast
// either reaches conn or was already folded into what source returns.
func (cm *ConnectionManager) attach(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn] = true
	n := len(cm.connections)
	if snap, ok := cm.source(); ok {
		data, err := events.Encode(events.NewState("", snap, time.Now()))
		if err != nil {
			log.Error().Err(err).Msg("failed to encode initial snapshot")
		} else {
			select {
			case conn.Send <- data:
			default:
				log.Warn().Str("connection_id", conn.ID).Msg("no room for initial snapshot")
			}
		}
	}
	cm.mu.Unlock()

	cm.metrics.SetConnectedWindows(n)
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", n).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)
	n := len(cm.connections)
	cm.mu.Unlock()

	cm.metrics.SetConnectedWindows(n)
	log.Info().
		Str("connection_id", conn.ID).
		Str("actor", conn.Actor).
		Msg("window detached")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// Broadcast queues msg for every attached window. A full queue drops the message; windows
// catch up on the next one since every message carries the full state.
func (cm *ConnectionManager) Broadcast(msg events.Message) {
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message events.Message) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := events.Encode(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.trySend(data) {
			// slow window, drop it rather than block the others
			log.Warn().
				Str("connection_id", conn.ID).
				Str("actor", conn.Actor).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			_ = conn.Conn.Close()
		}
	}

	log.Debug().
		Int("current_seconds", message.Payload.CurrentSeconds).
		Int("connections", len(targets)).
		Msg("snapshot pushed to windows")
}

// ConnectionStats summarizes attached windows
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByActor          map[string]int `json:"by_actor"`
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{ByActor: make(map[string]int)}
	for conn := range cm.connections {
		stats.TotalConnections++
		stats.ByActor[conn.Actor]++
	}
	return stats
}

// trySend queues data unless the buffer is full or the connection is already gone.
func (c *Connection) trySend(data []byte) (ok bool) {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.connections[c] {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump only keeps the read deadline fresh; windows are read-only consumers.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
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
			return
		}
		log.Debug().
			Str("connection_id", c.ID).
			Int("bytes", len(message)).
			Msg("ignoring client message")
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
