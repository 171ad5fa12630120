package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/portr-admin/portr-admin/internal/crypto"
	"github.com/portr-admin/portr-admin/internal/db/models"
)

// SettingsRepository handles the singleton instance settings row and the
// per-team settings rows. Secret fields (the SMTP password, team webhook
// secrets and PATs) are encrypted before they are written and decrypted
// after they are read, so plaintext never touches the database.
type SettingsRepository struct {
	db     *sqlx.DB
	cipher *crypto.FieldCipher
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *sqlx.DB, cipher *crypto.FieldCipher) *SettingsRepository {
	return &SettingsRepository{db: db, cipher: cipher}
}

const settingsColumns = `id, smtp_enabled, smtp_host, smtp_port, smtp_username, smtp_password,
	from_address, add_user_email_subject, add_user_email_body, updated_by, created_at, updated_at`

// GetOrCreate retrieves the settings row, creating it with defaults when it
// does not exist yet.
func (r *SettingsRepository) GetOrCreate(ctx context.Context) (*models.InstanceSettings, error) {
	settings := &models.InstanceSettings{}
	err := r.db.GetContext(ctx, settings,
		`SELECT `+settingsColumns+` FROM instance_settings LIMIT 1`)
	if err == sql.ErrNoRows {
		return r.createDefaults(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := r.decryptPassword(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *SettingsRepository) createDefaults(ctx context.Context) (*models.InstanceSettings, error) {
	now := time.Now()
	subject := models.DefaultAddUserEmailSubject
	body := models.DefaultAddUserEmailBody
	settings := &models.InstanceSettings{
		ID:                  uuid.New().String(),
		SMTPEnabled:         false,
		AddUserEmailSubject: &subject,
		AddUserEmailBody:    &body,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO instance_settings (id, smtp_enabled, add_user_email_subject, add_user_email_body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, settings.ID, settings.SMTPEnabled, subject, body, now, now)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Update writes the full settings row and records who changed it. The caller
// merges incoming fields into the current row first.
func (r *SettingsRepository) Update(ctx context.Context, settings *models.InstanceSettings, updatedBy string) error {
	stored := *settings
	if stored.SMTPPassword != nil {
		encrypted, err := r.cipher.Encrypt(*stored.SMTPPassword)
		if err != nil {
			return fmt.Errorf("failed to encrypt smtp password: %w", err)
		}
		stored.SMTPPassword = &encrypted
	}
	stored.UpdatedBy = &updatedBy
	stored.UpdatedAt = time.Now()

	_, err := r.db.NamedExecContext(ctx, `
		UPDATE instance_settings SET
			smtp_enabled = :smtp_enabled,
			smtp_host = :smtp_host,
			smtp_port = :smtp_port,
			smtp_username = :smtp_username,
			smtp_password = :smtp_password,
			from_address = :from_address,
			add_user_email_subject = :add_user_email_subject,
			add_user_email_body = :add_user_email_body,
			updated_by = :updated_by,
			updated_at = :updated_at
		WHERE id = :id
	`, &stored)
	if err != nil {
		return err
	}

	settings.UpdatedBy = stored.UpdatedBy
	settings.UpdatedAt = stored.UpdatedAt
	return nil
}

const teamSettingsColumns = `id, team_id, github_org_webhook_secret, github_org_pat,
	auto_invite_github_org_members, updated_by, created_at, updated_at`

// GetOrCreateTeamSettings retrieves the team's settings row, creating an
// empty one when it is missing. Teams created through the repository always
// have one; this covers rows lost to manual surgery.
func (r *SettingsRepository) GetOrCreateTeamSettings(ctx context.Context, teamID string) (*models.TeamSettings, error) {
	settings := &models.TeamSettings{}
	err := r.db.GetContext(ctx, settings,
		`SELECT `+teamSettingsColumns+` FROM team_settings WHERE team_id = $1`, teamID)
	if err == sql.ErrNoRows {
		now := time.Now()
		settings = &models.TeamSettings{
			ID:        uuid.New().String(),
			TeamID:    teamID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO team_settings (id, team_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
		`, settings.ID, settings.TeamID, now, now)
		if err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err != nil {
		return nil, err
	}

	if settings.GithubOrgWebhookSecret, err = r.decryptField(settings.GithubOrgWebhookSecret); err != nil {
		return nil, fmt.Errorf("failed to decrypt webhook secret: %w", err)
	}
	if settings.GithubOrgPAT, err = r.decryptField(settings.GithubOrgPAT); err != nil {
		return nil, fmt.Errorf("failed to decrypt org pat: %w", err)
	}
	return settings, nil
}

// UpdateTeamSettings writes the full team settings row and records which
// membership changed it. Secrets are sealed before the write; the caller's
// copy keeps the plaintext.
func (r *SettingsRepository) UpdateTeamSettings(ctx context.Context, settings *models.TeamSettings, updatedByTeamUserID string) error {
	stored := *settings
	var err error
	if stored.GithubOrgWebhookSecret, err = r.encryptField(stored.GithubOrgWebhookSecret); err != nil {
		return fmt.Errorf("failed to encrypt webhook secret: %w", err)
	}
	if stored.GithubOrgPAT, err = r.encryptField(stored.GithubOrgPAT); err != nil {
		return fmt.Errorf("failed to encrypt org pat: %w", err)
	}
	stored.UpdatedBy = &updatedByTeamUserID
	stored.UpdatedAt = time.Now()

	_, err = r.db.NamedExecContext(ctx, `
		UPDATE team_settings SET
			github_org_webhook_secret = :github_org_webhook_secret,
			github_org_pat = :github_org_pat,
			auto_invite_github_org_members = :auto_invite_github_org_members,
			updated_by = :updated_by,
			updated_at = :updated_at
		WHERE id = :id
	`, &stored)
	if err != nil {
		return err
	}

	settings.UpdatedBy = stored.UpdatedBy
	settings.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *SettingsRepository) encryptField(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	sealed, err := r.cipher.Encrypt(*value)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (r *SettingsRepository) decryptField(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	plaintext, err := r.cipher.Decrypt(*value)
	if err != nil {
		return nil, err
	}
	return &plaintext, nil
}

func (r *SettingsRepository) decryptPassword(settings *models.InstanceSettings) error {
	if settings.SMTPPassword == nil {
		return nil
	}
	plaintext, err := r.cipher.Decrypt(*settings.SMTPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt smtp password: %w", err)
	}
	settings.SMTPPassword = &plaintext
	return nil
}
