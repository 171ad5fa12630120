// Package repositories implements the data access layer (repository pattern)
// for the Portr admin. Each repository type encapsulates all database queries
// for a domain entity. Handlers and services never issue SQL directly; all
// database access goes through this layer, which keeps query logic testable in
// isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/portr-admin/portr-admin/internal/crypto"
	"github.com/portr-admin/portr-admin/internal/db/models"
)

// UserRepository handles user and GitHub identity database operations. The
// cipher encrypts GitHub access tokens before they reach the database.
type UserRepository struct {
	db     *sql.DB
	cipher *crypto.FieldCipher
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB, cipher *crypto.FieldCipher) *UserRepository {
	return &UserRepository{db: db, cipher: cipher}
}

const userColumns = `id, email, first_name, last_name, password_hash, is_superuser, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsSuperuser,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// HasAnyUsers reports whether at least one user exists. Used to detect the
// first-signup bootstrap case.
func (r *UserRepository) HasAnyUsers(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users)`).Scan(&exists)
	return exists, err
}

// UpdateProfile updates the mutable profile fields of a user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.FirstName, user.LastName, user.UpdatedAt)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, passwordHash, time.Now())
	return err
}

// IsActive reports the active predicate for a user: superusers are always
// active, everyone else needs at least one team membership.
func (r *UserRepository) IsActive(ctx context.Context, user *models.User) (bool, error) {
	if user.IsSuperuser {
		return true, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_users WHERE user_id = $1)`, user.ID,
	).Scan(&exists)
	return exists, err
}

// UpsertGithubUser creates or refreshes the GitHub identity linked to a user.
// The access token is encrypted before storage. Idempotent across logins.
func (r *UserRepository) UpsertGithubUser(ctx context.Context, gh *models.GithubUser) error {
	sealed, err := r.cipher.Encrypt(gh.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	query := `
		INSERT INTO github_users (id, github_id, access_token, avatar_url, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET github_id = EXCLUDED.github_id,
		    access_token = EXCLUDED.access_token,
		    avatar_url = EXCLUDED.avatar_url
	`

	if gh.ID == "" {
		gh.ID = uuid.New().String()
	}
	_, err = r.db.ExecContext(ctx, query, gh.ID, gh.GithubID, sealed, gh.AvatarURL, gh.UserID)
	return err
}

// GetGithubUserByUserID retrieves the GitHub identity for a user, decrypting
// the stored access token.
func (r *UserRepository) GetGithubUserByUserID(ctx context.Context, userID string) (*models.GithubUser, error) {
	query := `
		SELECT id, github_id, access_token, avatar_url, user_id
		FROM github_users
		WHERE user_id = $1
	`

	gh := &models.GithubUser{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&gh.ID,
		&gh.GithubID,
		&gh.AccessToken,
		&gh.AvatarURL,
		&gh.UserID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token, err := r.cipher.Decrypt(gh.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	gh.AccessToken = token

	return gh, nil
}
