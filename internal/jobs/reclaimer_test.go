package jobs

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newSessionRepoForReclaimer(t *testing.T) (*repositories.SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New (session): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewSessionRepository(db), mock
}

func newConnectionRepoForReclaimer(t *testing.T) (*repositories.ConnectionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New (connection): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewConnectionRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// NewReclaimer
// ---------------------------------------------------------------------------

func TestNewReclaimer_Defaults(t *testing.T) {
	r := NewReclaimer(nil, nil)
	if r.sessionInterval != DefaultSessionSweepInterval {
		t.Errorf("expected session interval %v, got %v", DefaultSessionSweepInterval, r.sessionInterval)
	}
	if r.connectionInterval != DefaultConnectionSweepInterval {
		t.Errorf("expected connection interval %v, got %v", DefaultConnectionSweepInterval, r.connectionInterval)
	}
	if r.reservationTimeout != DefaultReservationTimeout {
		t.Errorf("expected reservation timeout %v, got %v", DefaultReservationTimeout, r.reservationTimeout)
	}
}

// ---------------------------------------------------------------------------
// sweepSessions / sweepConnections
// ---------------------------------------------------------------------------

func TestSweepSessions_DeletesExpired(t *testing.T) {
	sessions, mock := newSessionRepoForReclaimer(t)
	r := NewReclaimer(sessions, nil)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= NOW\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	r.sweepSessions(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestSweepSessions_DBErrorDoesNotPanic(t *testing.T) {
	sessions, mock := newSessionRepoForReclaimer(t)
	r := NewReclaimer(sessions, nil)

	mock.ExpectExec(`DELETE FROM sessions`).WillReturnError(context.DeadlineExceeded)

	r.sweepSessions(context.Background())
}

func TestSweepConnections_DeletesAbandoned(t *testing.T) {
	connections, mock := newConnectionRepoForReclaimer(t)
	r := NewReclaimer(nil, connections)

	mock.ExpectExec(`DELETE FROM connections WHERE status = \$1 AND created_at < \$2`).
		WithArgs("reserved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	r.sweepConnections(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Start / Stop lifecycle
// ---------------------------------------------------------------------------

func TestReclaimer_StopExitsLoop(t *testing.T) {
	sessions, sessionMock := newSessionRepoForReclaimer(t)
	connections, connectionMock := newConnectionRepoForReclaimer(t)

	// The loop runs both sweeps once on startup.
	sessionMock.ExpectExec(`DELETE FROM sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	connectionMock.ExpectExec(`DELETE FROM connections`).
		WithArgs("reserved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewReclaimer(sessions, connections)
	r.sessionInterval = time.Hour
	r.connectionInterval = time.Hour

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reclaimer did not stop within 1s")
	}
}

func TestReclaimer_ContextCancelExitsLoop(t *testing.T) {
	sessions, sessionMock := newSessionRepoForReclaimer(t)
	connections, connectionMock := newConnectionRepoForReclaimer(t)

	sessionMock.ExpectExec(`DELETE FROM sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	connectionMock.ExpectExec(`DELETE FROM connections`).
		WithArgs("reserved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewReclaimer(sessions, connections)
	r.sessionInterval = time.Hour
	r.connectionInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reclaimer did not stop on context cancellation within 1s")
	}
}
