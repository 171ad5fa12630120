package services

import (
	"context"

	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
)

// SettingsService manages the instance settings singleton.
type SettingsService struct {
	settings *repositories.SettingsRepository
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(settings *repositories.SettingsRepository) *SettingsService {
	return &SettingsService{settings: settings}
}

// SettingsPatch carries a partial settings update. Nil fields leave the
// stored value untouched, so a PATCH only touches what it names.
type SettingsPatch struct {
	SMTPEnabled         *bool   `json:"smtp_enabled"`
	SMTPHost            *string `json:"smtp_host"`
	SMTPPort            *int    `json:"smtp_port"`
	SMTPUsername        *string `json:"smtp_username"`
	SMTPPassword        *string `json:"smtp_password"`
	FromAddress         *string `json:"from_address"`
	AddUserEmailSubject *string `json:"add_user_email_subject"`
	AddUserEmailBody    *string `json:"add_user_email_body"`
}

// Get returns the settings singleton, creating it with defaults on first
// access.
func (s *SettingsService) Get(ctx context.Context) (*models.InstanceSettings, error) {
	return s.settings.GetOrCreate(ctx)
}

// Update merges patch into the stored settings and records the updater.
func (s *SettingsService) Update(ctx context.Context, patch *SettingsPatch, updatedByUserID string) (*models.InstanceSettings, error) {
	settings, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	if patch.SMTPEnabled != nil {
		settings.SMTPEnabled = *patch.SMTPEnabled
	}
	if patch.SMTPHost != nil {
		settings.SMTPHost = patch.SMTPHost
	}
	if patch.SMTPPort != nil {
		settings.SMTPPort = patch.SMTPPort
	}
	if patch.SMTPUsername != nil {
		settings.SMTPUsername = patch.SMTPUsername
	}
	if patch.SMTPPassword != nil {
		settings.SMTPPassword = patch.SMTPPassword
	}
	if patch.FromAddress != nil {
		settings.FromAddress = patch.FromAddress
	}
	if patch.AddUserEmailSubject != nil {
		settings.AddUserEmailSubject = patch.AddUserEmailSubject
	}
	if patch.AddUserEmailBody != nil {
		settings.AddUserEmailBody = patch.AddUserEmailBody
	}

	if err := s.settings.Update(ctx, settings, updatedByUserID); err != nil {
		return nil, err
	}
	return settings, nil
}
