// reclaimer.go implements the Reclaimer background job, which periodically deletes
// expired browser sessions and abandoned tunnel connection reservations. A connection
// is abandoned when the client reserved it but never reported back to activate it,
// typically because the tunnel process died between reservation and handshake. Both
// sweeps are idempotent, so the job is always safe to start regardless of deployment
// environment.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/telemetry"
)

const (
	// DefaultSessionSweepInterval controls how often expired sessions are purged.
	DefaultSessionSweepInterval = time.Hour

	// DefaultConnectionSweepInterval controls how often abandoned reservations
	// are purged.
	DefaultConnectionSweepInterval = 10 * time.Second

	// DefaultReservationTimeout is how long a reserved connection may stay
	// unactivated before it is considered abandoned.
	DefaultReservationTimeout = 10 * time.Second
)

// Reclaimer periodically deletes expired sessions and abandoned connection
// reservations.
type Reclaimer struct {
	sessions    *repositories.SessionRepository
	connections *repositories.ConnectionRepository

	sessionInterval    time.Duration
	connectionInterval time.Duration
	reservationTimeout time.Duration

	stopChan chan struct{}
}

// NewReclaimer creates a Reclaimer with the default sweep intervals.
func NewReclaimer(sessions *repositories.SessionRepository, connections *repositories.ConnectionRepository) *Reclaimer {
	return &Reclaimer{
		sessions:           sessions,
		connections:        connections,
		sessionInterval:    DefaultSessionSweepInterval,
		connectionInterval: DefaultConnectionSweepInterval,
		reservationTimeout: DefaultReservationTimeout,
		stopChan:           make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs both sweeps immediately,
// then repeats each on its own interval. The loop exits when ctx is cancelled
// or Stop() is called.
func (r *Reclaimer) Start(ctx context.Context) {
	sessionTicker := time.NewTicker(r.sessionInterval)
	defer sessionTicker.Stop()
	connectionTicker := time.NewTicker(r.connectionInterval)
	defer connectionTicker.Stop()

	slog.Info("reclaimer started",
		"session_sweep_interval", r.sessionInterval,
		"connection_sweep_interval", r.connectionInterval,
		"reservation_timeout", r.reservationTimeout)

	// Run once immediately on startup
	r.sweepSessions(ctx)
	r.sweepConnections(ctx)

	for {
		select {
		case <-sessionTicker.C:
			r.sweepSessions(ctx)
		case <-connectionTicker.C:
			r.sweepConnections(ctx)
		case <-r.stopChan:
			slog.Info("reclaimer stopped")
			return
		case <-ctx.Done():
			slog.Info("reclaimer context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (r *Reclaimer) Stop() {
	close(r.stopChan)
}

func (r *Reclaimer) sweepSessions(ctx context.Context) {
	deleted, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		slog.Error("failed to delete expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		telemetry.SessionsReclaimedTotal.Add(float64(deleted))
		slog.Info("deleted expired sessions", "count", deleted)
	}
}

func (r *Reclaimer) sweepConnections(ctx context.Context) {
	deleted, err := r.connections.DeleteAbandonedReserved(ctx, r.reservationTimeout)
	if err != nil {
		slog.Error("failed to delete abandoned connection reservations", "error", err)
		return
	}
	if deleted > 0 {
		telemetry.ConnectionsReclaimedTotal.Add(float64(deleted))
		slog.Debug("deleted abandoned connection reservations", "count", deleted)
	}
}
