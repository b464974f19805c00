package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/mcdev12/excon/go/internal/exercise/events"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Service bundles the connection manager and its HTTP handler
type Service struct {
	connectionManager *ConnectionManager
	handler           *Handler
}

// NewService creates a gateway that greets windows with source and pushes whatever is
// passed to Push.
func NewService(config ConnectionConfig, source SnapshotSource, m metrics.Collector) *Service {
	cm := NewConnectionManager(config, source, m)
	return &Service{
		connectionManager: cm,
		handler:           NewHandler(cm),
	}
}

// Start runs the broadcast loop until ctx is done
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting window gateway")
	s.connectionManager.Start(ctx)
}

// Push sends snap to every attached window
func (s *Service) Push(snap models.DashboardSnapshot) {
	s.connectionManager.Broadcast(events.NewState("", snap, time.Now()))
}

// RegisterRoutes registers the WebSocket and state routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// Stats returns statistics about attached windows
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}
