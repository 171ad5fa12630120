package services

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/telemetry"
)

func newConnectionService(t *testing.T) (*ConnectionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConnectionService(repositories.NewConnectionRepository(sqlx.NewDb(db, "sqlmock"))), mock
}

func memberFixture() *models.TeamUserContext {
	m := &models.TeamUserContext{}
	m.ID = "tu-1"
	m.UserID = "user-1"
	m.TeamID = "team-1"
	m.Role = models.RoleMember
	m.Team = models.Team{ID: "team-1", Name: "Portr", Slug: "portr"}
	return m
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateConnection_HTTPNeedsSubdomain(t *testing.T) {
	svc, _ := newConnectionService(t)

	for _, sub := range []*string{nil, strPtr(""), strPtr("   ")} {
		_, err := svc.Create(context.Background(), models.ConnectionTypeHTTP, sub, nil, memberFixture())
		var domainErr *Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "subdomain is required for http connections", domainErr.Message)
	}
}

func TestCreateConnection_SubdomainTaken(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("myapp", "active").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.Create(context.Background(), models.ConnectionTypeHTTP, strPtr("myapp"), nil, memberFixture())
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Subdomain already in use", domainErr.Message)
}

func TestCreateConnection_HTTPSuccess(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("myapp", "active").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO connections").
		WillReturnResult(sqlmock.NewResult(1, 1))

	conn, err := svc.Create(context.Background(), models.ConnectionTypeHTTP, strPtr("myapp"), nil, memberFixture())
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusReserved, conn.Status)
	assert.Len(t, conn.ID, 26)
}

func TestCreateConnection_TCPIgnoresSubdomain(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectExec("INSERT INTO connections").
		WillReturnResult(sqlmock.NewResult(1, 1))

	conn, err := svc.Create(context.Background(), models.ConnectionTypeTCP, strPtr("ignored"), nil, memberFixture())
	require.NoError(t, err)
	assert.Nil(t, conn.Subdomain)
}

func TestCreateConnection_InvalidType(t *testing.T) {
	svc, _ := newConnectionService(t)
	_, err := svc.Create(context.Background(), models.ConnectionType("udp"), nil, nil, memberFixture())
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
}

// ---------------------------------------------------------------------------
// Activate / Close
// ---------------------------------------------------------------------------

func TestActivate_LostSubdomainRace(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectExec("UPDATE connections SET status").
		WillReturnError(&pq.Error{Code: "23505"})

	err := svc.Activate(context.Background(), "01HXA5Y7Q2M4N8P0R1S2T3V4W5")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Subdomain already in use", domainErr.Message)
}

func TestActivate_UnknownConnection(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectExec("UPDATE connections SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Activate(context.Background(), "missing")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Connection not found", domainErr.Message)
}

func TestActivate_ClosedConnectionStaysClosed(t *testing.T) {
	svc, mock := newConnectionService(t)
	// The repository's status guard matches no row for a closed connection.
	mock.ExpectExec("UPDATE connections SET status").
		WithArgs("01HXA5Y7Q2M4N8P0R1S2T3V4W5", "active", sqlmock.AnyArg(), "reserved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	before := testutil.ToFloat64(telemetry.ConnectionsActiveGauge)
	err := svc.Activate(context.Background(), "01HXA5Y7Q2M4N8P0R1S2T3V4W5")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Connection not found", domainErr.Message)
	assert.Equal(t, before, testutil.ToFloat64(telemetry.ConnectionsActiveGauge))
}

func TestClose_Success(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectExec("UPDATE connections SET status").
		WithArgs("01HXA5Y7Q2M4N8P0R1S2T3V4W5", "closed", sqlmock.AnyArg(), "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Close(context.Background(), "01HXA5Y7Q2M4N8P0R1S2T3V4W5"))
}

func TestClose_ReservedConnectionLeavesGaugeAlone(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectExec("UPDATE connections SET status").
		WithArgs("01HXA5Y7Q2M4N8P0R1S2T3V4W5", "closed", sqlmock.AnyArg(), "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	before := testutil.ToFloat64(telemetry.ConnectionsActiveGauge)
	err := svc.Close(context.Background(), "01HXA5Y7Q2M4N8P0R1S2T3V4W5")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Connection not found", domainErr.Message)
	assert.Equal(t, before, testutil.ToFloat64(telemetry.ConnectionsActiveGauge))
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListConnections_ClampsPage(t *testing.T) {
	svc, mock := newConnectionService(t)
	mock.ExpectQuery("SELECT COUNT.*FROM connections c").
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT.*FROM connections c").
		WithArgs("team-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "type", "subdomain", "port", "status", "team_id", "created_by",
			"created_at", "started_at", "closed_at", "creator_email",
		}))

	// page 0 must behave exactly like page 1
	_, _, err := svc.List(context.Background(), "team-1", "recent", 0, 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
