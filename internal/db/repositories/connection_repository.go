package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/portr-admin/portr-admin/internal/db/models"
)

// ConnectionRepository handles tunnel connection database operations
type ConnectionRepository struct {
	db *sqlx.DB
}

// NewConnectionRepository creates a new ConnectionRepository
func NewConnectionRepository(db *sqlx.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// CreateReserved inserts a connection in reserved status
func (r *ConnectionRepository) CreateReserved(ctx context.Context, id string, connType models.ConnectionType, subdomain *string, port *int, teamID, createdBy string) (*models.Connection, error) {
	now := time.Now()
	conn := &models.Connection{
		ID:        id,
		Type:      connType,
		Subdomain: subdomain,
		Port:      port,
		Status:    models.ConnectionStatusReserved,
		TeamID:    teamID,
		CreatedBy: createdBy,
		CreatedAt: now,
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO connections (id, type, subdomain, port, status, team_id, created_by, created_at)
		VALUES (:id, :type, :subdomain, :port, :status, :team_id, :created_by, :created_at)
	`, conn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// GetByID retrieves a connection by its id
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	conn := &models.Connection{}
	err := r.db.GetContext(ctx, conn, `
		SELECT id, type, subdomain, port, status, team_id, created_by, created_at, started_at, closed_at
		FROM connections WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// HasActiveSubdomain reports whether an active http connection already holds
// the subdomain.
func (r *ConnectionRepository) HasActiveSubdomain(ctx context.Context, subdomain string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM connections WHERE subdomain = $1 AND status = $2)
	`, subdomain, models.ConnectionStatusActive)
	return exists, err
}

// Activate marks a reserved connection active and stamps started_at. The
// partial unique index on active subdomains makes concurrent activations of
// the same subdomain fail with a unique violation. Returns false when no
// reserved connection with the id exists, so a closed or already active
// connection cannot be re-activated.
func (r *ConnectionRepository) Activate(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE connections SET status = $2, started_at = $3 WHERE id = $1 AND status = $4
	`, id, models.ConnectionStatusActive, time.Now(), models.ConnectionStatusReserved)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// Close marks an active connection closed and stamps closed_at. Returns false
// when no active connection with the id exists, which keeps the active gauge
// honest: only a real active to closed transition counts.
func (r *ConnectionRepository) Close(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE connections SET status = $2, closed_at = $3 WHERE id = $1 AND status = $4
	`, id, models.ConnectionStatusClosed, time.Now(), models.ConnectionStatusActive)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// List retrieves a page of the team's connections joined with the creator's
// email, newest first, plus the total count for the same filter. When
// activeOnly is set only active connections are returned.
func (r *ConnectionRepository) List(ctx context.Context, teamID string, activeOnly bool, limit, offset int) ([]*models.ConnectionWithCreator, int, error) {
	where := `WHERE c.team_id = $1`
	args := []interface{}{teamID}
	if activeOnly {
		where += ` AND c.status = $2`
		args = append(args, models.ConnectionStatusActive)
	}

	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM connections c `+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.type, c.subdomain, c.port, c.status, c.team_id, c.created_by,
		       c.created_at, c.started_at, c.closed_at, u.email AS creator_email
		FROM connections c
		JOIN team_users tu ON tu.id = c.created_by
		JOIN users u ON u.id = tu.user_id
		` + where + `
		ORDER BY c.created_at DESC`

	pagedArgs := args
	if activeOnly {
		query += ` LIMIT $3 OFFSET $4`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}
	pagedArgs = append(pagedArgs, limit, offset)

	conns := make([]*models.ConnectionWithCreator, 0)
	if err := r.db.SelectContext(ctx, &conns, query, pagedArgs...); err != nil {
		return nil, 0, err
	}
	return conns, total, nil
}

// DeleteAbandonedReserved removes reserved connections older than the cutoff
// and returns how many were deleted. These are reservations whose client
// never completed the tunnel handshake.
func (r *ConnectionRepository) DeleteAbandonedReserved(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM connections WHERE status = $1 AND created_at < $2
	`, models.ConnectionStatusReserved, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
