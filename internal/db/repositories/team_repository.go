// team_repository.go implements TeamRepository, providing database queries for
// teams and team memberships. Multi-step mutations (team creation, member add,
// member removal, first-user bootstrap) run inside a single transaction so
// partial state is never observable.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/portr-admin/portr-admin/internal/db/models"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation. Services map this to the matching domain error instead of letting
// it surface as an opaque 500.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// TeamRepository handles team and membership database operations
type TeamRepository struct {
	db *sql.DB
}

// NewTeamRepository creates a new TeamRepository
func NewTeamRepository(db *sql.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

const teamColumns = `id, name, slug, created_at, updated_at`

func scanTeam(row interface{ Scan(...interface{}) error }) (*models.Team, error) {
	team := &models.Team{}
	err := row.Scan(&team.ID, &team.Name, &team.Slug, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// GetTeamBySlug retrieves a team by its slug
func (r *TeamRepository) GetTeamBySlug(ctx context.Context, slug string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE slug = $1`
	return scanTeam(r.db.QueryRowContext(ctx, query, slug))
}

// ListTeamsForUser retrieves all teams the user is a member of
func (r *TeamRepository) ListTeamsForUser(ctx context.Context, userID string) ([]*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM teams t
		JOIN team_users tu ON tu.team_id = t.id
		WHERE tu.user_id = $1
		ORDER BY t.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		team := &models.Team{}
		if err := rows.Scan(&team.ID, &team.Name, &team.Slug, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}

	return teams, rows.Err()
}

// CreateTeamWithAdmin creates a team, its settings row and an admin
// membership for the creator in one transaction.
func (r *TeamRepository) CreateTeamWithAdmin(ctx context.Context, name, slug, creatorUserID, secretKey string) (*models.Team, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	team, err := createTeamWithAdminTx(ctx, tx, name, slug, creatorUserID, secretKey)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return team, nil
}

// createTeamWithAdminTx performs the team, settings and admin membership
// inserts on an existing transaction so callers can compose it with other
// steps.
func createTeamWithAdminTx(ctx context.Context, tx *sql.Tx, name, slug, creatorUserID, secretKey string) (*models.Team, error) {
	now := time.Now()
	team := &models.Team{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, slug, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		team.ID, team.Name, team.Slug, team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_users (id, user_id, team_id, role, secret_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), creatorUserID, team.ID, models.RoleAdmin, secretKey, now, now,
	)
	if err != nil {
		return nil, err
	}

	// Every team carries a settings row from birth.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_settings (id, team_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), team.ID, now, now,
	)
	if err != nil {
		return nil, err
	}

	return team, nil
}

// BootstrapFirstUser creates the very first user as a superuser together with
// the default team and its admin membership, all in one transaction.
func (r *TeamRepository) BootstrapFirstUser(ctx context.Context, email string, passwordHash *string, teamName, teamSlug, secretKey string) (*models.User, *models.Team, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		IsSuperuser:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, is_superuser, created_at, updated_at)
		 VALUES ($1, $2, $3, TRUE, $4, $5)`,
		user.ID, user.Email, passwordHash, now, now,
	)
	if err != nil {
		return nil, nil, err
	}

	team, err := createTeamWithAdminTx(ctx, tx, teamName, teamSlug, user.ID, secretKey)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, team, nil
}

const teamUserContextColumns = `
	tu.id, tu.user_id, tu.team_id, tu.role, tu.secret_key, tu.created_at, tu.updated_at,
	t.id, t.name, t.slug, t.created_at, t.updated_at
`

func scanTeamUserContext(row interface{ Scan(...interface{}) error }) (*models.TeamUserContext, error) {
	tuc := &models.TeamUserContext{}
	err := row.Scan(
		&tuc.ID, &tuc.UserID, &tuc.TeamID, &tuc.Role, &tuc.SecretKey, &tuc.CreatedAt, &tuc.UpdatedAt,
		&tuc.Team.ID, &tuc.Team.Name, &tuc.Team.Slug, &tuc.Team.CreatedAt, &tuc.Team.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tuc, nil
}

// GetTeamUser retrieves the membership of a user in the team identified by
// slug, joined with the team row.
func (r *TeamRepository) GetTeamUser(ctx context.Context, userID, teamSlug string) (*models.TeamUserContext, error) {
	query := `
		SELECT ` + teamUserContextColumns + `
		FROM team_users tu
		JOIN teams t ON t.id = tu.team_id
		WHERE tu.user_id = $1 AND t.slug = $2
	`
	return scanTeamUserContext(r.db.QueryRowContext(ctx, query, userID, teamSlug))
}

// GetTeamUserBySecretKey retrieves a membership by exact secret key match,
// joined with the team row.
func (r *TeamRepository) GetTeamUserBySecretKey(ctx context.Context, secretKey string) (*models.TeamUserContext, error) {
	query := `
		SELECT ` + teamUserContextColumns + `
		FROM team_users tu
		JOIN teams t ON t.id = tu.team_id
		WHERE tu.secret_key = $1
	`
	return scanTeamUserContext(r.db.QueryRowContext(ctx, query, secretKey))
}

// GetMemberByID retrieves a membership of the given team by its id, joined
// with user details for permission checks and display.
func (r *TeamRepository) GetMemberByID(ctx context.Context, teamUserID, teamID string) (*models.TeamUserWithUser, error) {
	query := `
		SELECT tu.id, tu.user_id, tu.team_id, tu.role, tu.created_at, tu.updated_at,
		       u.email, u.first_name, u.last_name, u.is_superuser,
		       gh.avatar_url
		FROM team_users tu
		JOIN users u ON u.id = tu.user_id
		LEFT JOIN github_users gh ON gh.user_id = u.id
		WHERE tu.id = $1 AND tu.team_id = $2
	`

	m := &models.TeamUserWithUser{}
	err := r.db.QueryRowContext(ctx, query, teamUserID, teamID).Scan(
		&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
		&m.UserEmail, &m.UserFirstName, &m.UserLastName, &m.UserIsSuperuser,
		&m.GithubAvatarURL,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMembers retrieves a page of team memberships joined with user details,
// plus the total member count.
func (r *TeamRepository) ListMembers(ctx context.Context, teamID string, limit, offset int) ([]*models.TeamUserWithUser, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_users WHERE team_id = $1`, teamID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT tu.id, tu.user_id, tu.team_id, tu.role, tu.created_at, tu.updated_at,
		       u.email, u.first_name, u.last_name, u.is_superuser,
		       gh.avatar_url
		FROM team_users tu
		JOIN users u ON u.id = tu.user_id
		LEFT JOIN github_users gh ON gh.user_id = u.id
		WHERE tu.team_id = $1
		ORDER BY tu.created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, teamID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	members := make([]*models.TeamUserWithUser, 0)
	for rows.Next() {
		m := &models.TeamUserWithUser{}
		err := rows.Scan(
			&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
			&m.UserEmail, &m.UserFirstName, &m.UserLastName, &m.UserIsSuperuser,
			&m.GithubAvatarURL,
		)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, m)
	}

	return members, total, rows.Err()
}

// MembershipExistsByEmail reports whether the email already belongs to a
// member of the team.
func (r *TeamRepository) MembershipExistsByEmail(ctx context.Context, teamID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM team_users tu
			JOIN users u ON u.id = tu.user_id
			WHERE tu.team_id = $1 AND u.email = $2
		)`, teamID, email,
	).Scan(&exists)
	return exists, err
}

// AddMember adds a user to a team in one transaction: the user row is looked
// up or created (newUserPasswordHash is stored only when the user is created),
// then the membership is inserted. Returns the created membership and whether
// a new user row was provisioned.
func (r *TeamRepository) AddMember(ctx context.Context, teamID, email string, role models.Role, setSuperuser bool, newUserPasswordHash, secretKey string) (*models.TeamUser, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	createdUser := false
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	switch {
	case err == sql.ErrNoRows:
		userID = uuid.New().String()
		now := time.Now()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, is_superuser, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, email, newUserPasswordHash, setSuperuser, now, now,
		)
		if err != nil {
			return nil, false, err
		}
		createdUser = true
	case err != nil:
		return nil, false, err
	}

	now := time.Now()
	member := &models.TeamUser{
		ID:        uuid.New().String(),
		UserID:    userID,
		TeamID:    teamID,
		Role:      role,
		SecretKey: secretKey,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_users (id, user_id, team_id, role, secret_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		member.ID, member.UserID, member.TeamID, member.Role, member.SecretKey, member.CreatedAt, member.UpdatedAt,
	)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return member, createdUser, nil
}

// RemoveMember deletes a membership and, when it was the user's last
// membership and the user is not a superuser, the user row as well, all in
// one transaction.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamUserID, userID string, userIsSuperuser bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_users WHERE id = $1`, teamUserID); err != nil {
		return err
	}

	if !userIsSuperuser {
		var remaining int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM team_users WHERE user_id = $1`, userID,
		).Scan(&remaining)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// RotateSecretKey replaces a membership's secret key. The previous key stops
// resolving the moment this commits.
func (r *TeamRepository) RotateSecretKey(ctx context.Context, teamUserID, newSecretKey string) error {
	query := `UPDATE team_users SET secret_key = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, teamUserID, newSecretKey, time.Now())
	return err
}
