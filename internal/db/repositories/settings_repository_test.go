package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/portr-admin/portr-admin/internal/db/models"
)

var settingsCols = []string{
	"id", "smtp_enabled", "smtp_host", "smtp_port", "smtp_username", "smtp_password",
	"from_address", "add_user_email_subject", "add_user_email_body", "updated_by", "created_at", "updated_at",
}

func newSettingsRepo(t *testing.T) (*SettingsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSettingsRepository(sqlx.NewDb(db, "sqlmock"), testCipher(t)), mock
}

func TestGetOrCreate_ExistingRow(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	subject := models.DefaultAddUserEmailSubject
	mock.ExpectQuery("SELECT.*FROM instance_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols).
			AddRow("set-1", true, "smtp.example.com", 587, "mailer", nil,
				"portr@example.com", subject, models.DefaultAddUserEmailBody, nil, time.Now(), time.Now()))

	settings, err := repo.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settings.SMTPEnabled {
		t.Error("SMTPEnabled = false, want true")
	}
	if settings.SMTPHost == nil || *settings.SMTPHost != "smtp.example.com" {
		t.Errorf("SMTPHost = %v", settings.SMTPHost)
	}
}

func TestGetOrCreate_CreatesDefaults(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	mock.ExpectQuery("SELECT.*FROM instance_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols))
	mock.ExpectExec("INSERT INTO instance_settings").
		WillReturnResult(sqlmock.NewResult(1, 1))

	settings, err := repo.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.SMTPEnabled {
		t.Error("defaults must have SMTP disabled")
	}
	if settings.AddUserEmailSubject == nil || *settings.AddUserEmailSubject != models.DefaultAddUserEmailSubject {
		t.Errorf("AddUserEmailSubject = %v", settings.AddUserEmailSubject)
	}
	if settings.AddUserEmailBody == nil || *settings.AddUserEmailBody != models.DefaultAddUserEmailBody {
		t.Errorf("AddUserEmailBody = %v", settings.AddUserEmailBody)
	}
}

func TestGetOrCreate_DecryptsPassword(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	sealed, err := repo.cipher.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	mock.ExpectQuery("SELECT.*FROM instance_settings").
		WillReturnRows(sqlmock.NewRows(settingsCols).
			AddRow("set-1", true, "smtp.example.com", 587, "mailer", sealed,
				"portr@example.com", "subject", "body", nil, time.Now(), time.Now()))

	settings, err := repo.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.SMTPPassword == nil || *settings.SMTPPassword != "hunter2" {
		t.Errorf("SMTPPassword = %v, want hunter2", settings.SMTPPassword)
	}
}

func TestUpdate_EncryptsPasswordAndStampsUpdater(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	mock.ExpectExec("UPDATE instance_settings SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	password := "hunter2"
	settings := &models.InstanceSettings{ID: "set-1", SMTPEnabled: true, SMTPPassword: &password}
	if err := repo.Update(context.Background(), settings, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The caller's copy keeps the plaintext; only the stored row is sealed.
	if *settings.SMTPPassword != "hunter2" {
		t.Errorf("SMTPPassword mutated to %s", *settings.SMTPPassword)
	}
	if settings.UpdatedBy == nil || *settings.UpdatedBy != "user-1" {
		t.Errorf("UpdatedBy = %v, want user-1", settings.UpdatedBy)
	}
}

// ---------------------------------------------------------------------------
// Team settings
// ---------------------------------------------------------------------------

var teamSettingsCols = []string{
	"id", "team_id", "github_org_webhook_secret", "github_org_pat",
	"auto_invite_github_org_members", "updated_by", "created_at", "updated_at",
}

func TestGetOrCreateTeamSettings_DecryptsSecrets(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	sealedSecret, err := repo.cipher.Encrypt("whsec_123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealedPAT, err := repo.cipher.Encrypt("ghp_abc")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	mock.ExpectQuery("SELECT.*FROM team_settings WHERE team_id").
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows(teamSettingsCols).
			AddRow("ts-1", "team-1", sealedSecret, sealedPAT, true, nil, time.Now(), time.Now()))

	settings, err := repo.GetOrCreateTeamSettings(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.GithubOrgWebhookSecret == nil || *settings.GithubOrgWebhookSecret != "whsec_123" {
		t.Errorf("GithubOrgWebhookSecret = %v, want whsec_123", settings.GithubOrgWebhookSecret)
	}
	if settings.GithubOrgPAT == nil || *settings.GithubOrgPAT != "ghp_abc" {
		t.Errorf("GithubOrgPAT = %v, want ghp_abc", settings.GithubOrgPAT)
	}
	if !settings.AutoInviteGithubOrgMembers {
		t.Error("AutoInviteGithubOrgMembers = false, want true")
	}
}

func TestGetOrCreateTeamSettings_CreatesWhenMissing(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	mock.ExpectQuery("SELECT.*FROM team_settings WHERE team_id").
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows(teamSettingsCols))
	mock.ExpectExec("INSERT INTO team_settings").
		WithArgs(sqlmock.AnyArg(), "team-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	settings, err := repo.GetOrCreateTeamSettings(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.TeamID != "team-1" {
		t.Errorf("TeamID = %s, want team-1", settings.TeamID)
	}
	if settings.GithubOrgWebhookSecret != nil || settings.GithubOrgPAT != nil {
		t.Error("fresh settings must carry no secrets")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestUpdateTeamSettings_SealsSecretsAndStampsUpdater(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	mock.ExpectExec("UPDATE team_settings SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	secret := "whsec_123"
	settings := &models.TeamSettings{ID: "ts-1", TeamID: "team-1", GithubOrgWebhookSecret: &secret}
	if err := repo.UpdateTeamSettings(context.Background(), settings, "tu-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The caller's copy keeps the plaintext; only the stored row is sealed.
	if *settings.GithubOrgWebhookSecret != "whsec_123" {
		t.Errorf("GithubOrgWebhookSecret mutated to %s", *settings.GithubOrgWebhookSecret)
	}
	if settings.UpdatedBy == nil || *settings.UpdatedBy != "tu-1" {
		t.Errorf("UpdatedBy = %v, want tu-1", settings.UpdatedBy)
	}
}

func TestUpdate_DBError(t *testing.T) {
	repo, mock := newSettingsRepo(t)
	mock.ExpectExec("UPDATE instance_settings SET").
		WillReturnError(errDB)

	settings := &models.InstanceSettings{ID: "set-1"}
	if err := repo.Update(context.Background(), settings, "user-1"); err == nil {
		t.Error("expected error, got nil")
	}
}
