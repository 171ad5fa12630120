package services

import (
	"context"
	"strings"

	"github.com/portr-admin/portr-admin/internal/auth"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/telemetry"
)

// ConnectionService drives the reserved/active/closed connection lifecycle.
type ConnectionService struct {
	connections *repositories.ConnectionRepository
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(connections *repositories.ConnectionRepository) *ConnectionService {
	return &ConnectionService{connections: connections}
}

// Create reserves a new connection for the membership. HTTP connections
// require a free subdomain; TCP connections ignore any supplied subdomain.
func (s *ConnectionService) Create(ctx context.Context, connType models.ConnectionType, subdomain *string, port *int, member *models.TeamUserContext) (*models.Connection, error) {
	if !connType.Valid() {
		return nil, NewError("Invalid connection type")
	}

	if connType == models.ConnectionTypeHTTP {
		if subdomain == nil || strings.TrimSpace(*subdomain) == "" {
			return nil, NewError("subdomain is required for http connections")
		}
		taken, err := s.connections.HasActiveSubdomain(ctx, *subdomain)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, NewError("Subdomain already in use")
		}
	} else {
		subdomain = nil
	}

	conn, err := s.connections.CreateReserved(ctx, auth.GenerateConnectionID(), connType, subdomain, port, member.TeamID, member.ID)
	if err != nil {
		return nil, err
	}
	telemetry.ConnectionsCreatedTotal.WithLabelValues(string(connType)).Inc()
	return conn, nil
}

// Activate transitions a reserved connection to active. Losing the race for
// an http subdomain surfaces as the same domain error as the create-time
// check, via the partial unique index on active subdomains.
func (s *ConnectionService) Activate(ctx context.Context, id string) error {
	ok, err := s.connections.Activate(ctx, id)
	if repositories.IsUniqueViolation(err) {
		return NewError("Subdomain already in use")
	}
	if err != nil {
		return err
	}
	if !ok {
		return NewError("Connection not found")
	}
	telemetry.ConnectionsActiveGauge.Inc()
	return nil
}

// Close transitions an active connection to closed. Reserved connections
// never become closed, they are reclaimed instead, so the active gauge only
// moves on real transitions.
func (s *ConnectionService) Close(ctx context.Context, id string) error {
	ok, err := s.connections.Close(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NewError("Connection not found")
	}
	telemetry.ConnectionsActiveGauge.Dec()
	return nil
}

// List returns one page of the team's connections plus the total count.
// filter "active" restricts to active connections; anything else means
// "recent" (all statuses, newest first). Page numbers below one clamp to one.
func (s *ConnectionService) List(ctx context.Context, teamID, filter string, page, pageSize int) ([]*models.ConnectionWithCreator, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	return s.connections.List(ctx, teamID, filter == "active", pageSize, offset)
}
