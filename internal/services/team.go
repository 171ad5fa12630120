package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/portr-admin/portr-admin/internal/auth"
	"github.com/portr-admin/portr-admin/internal/config"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/mailer"
	"github.com/portr-admin/portr-admin/internal/safego"
	"github.com/portr-admin/portr-admin/internal/telemetry"
)

// TeamService implements team creation and membership onboarding, including
// the invite email side channel.
type TeamService struct {
	teams    *repositories.TeamRepository
	settings *repositories.SettingsRepository
	mailer   *mailer.Mailer
	cfg      *config.Config
}

// NewTeamService creates a new TeamService
func NewTeamService(teams *repositories.TeamRepository, settings *repositories.SettingsRepository, m *mailer.Mailer, cfg *config.Config) *TeamService {
	return &TeamService{teams: teams, settings: settings, mailer: m, cfg: cfg}
}

// CreateTeam creates a team named name with creator as its admin member.
func (s *TeamService) CreateTeam(ctx context.Context, name, creatorUserID string) (*models.Team, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, NewError("Team name is invalid")
	}

	secretKey, err := auth.GenerateSecretKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}

	team, err := s.teams.CreateTeamWithAdmin(ctx, name, slug, creatorUserID, secretKey)
	if repositories.IsUniqueViolation(err) {
		return nil, NewError("Team with this name already exists")
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// AddUserResult is the outcome of AddUser. GeneratedPassword is set only when
// a new user was provisioned and no invite email was dispatched, so the caller
// can relay the credentials.
type AddUserResult struct {
	Member            *models.TeamUserWithUser
	GeneratedPassword string
	EmailSent         bool
}

// AddUser adds email to team with the given role. When the email has no user
// yet, one is provisioned with a random password inside the same transaction
// as the membership insert. The invite email, when SMTP is enabled, is
// dispatched in the background; membership commits regardless of delivery.
// Only superusers may grant set_superuser.
func (s *TeamService) AddUser(ctx context.Context, team *models.Team, email string, role models.Role, setSuperuser bool, actingUser *models.User) (*AddUserResult, error) {
	if !role.Valid() {
		return nil, NewError("Invalid role")
	}
	if setSuperuser && !actingUser.IsSuperuser {
		return nil, NewPermissionError("Only superuser can perform this action")
	}

	exists, err := s.teams.MembershipExistsByEmail(ctx, team.ID, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewError("User is already part of the team")
	}

	password, err := auth.GenerateRandomPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	secretKey, err := auth.GenerateSecretKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}

	member, createdUser, err := s.teams.AddMember(ctx, team.ID, email, role, setSuperuser, passwordHash, secretKey)
	if repositories.IsUniqueViolation(err) {
		return nil, NewError("User is already part of the team")
	}
	if err != nil {
		return nil, err
	}

	// Re-read the joined row so the response carries the user profile and
	// never the membership's secret key.
	joined, err := s.teams.GetMemberByID(ctx, member.ID, team.ID)
	if err != nil {
		return nil, err
	}

	result := &AddUserResult{Member: joined}
	if !createdUser {
		return result, nil
	}

	settings, err := s.settings.GetOrCreate(ctx)
	if err != nil || !settings.SMTPEnabled {
		if err != nil {
			slog.Error("failed to load instance settings for invite email", "error", err)
		}
		result.GeneratedPassword = password
		return result, nil
	}

	result.EmailSent = true
	safego.Go(func() {
		s.sendInviteEmail(settings, team, email)
	})
	return result, nil
}

func (s *TeamService) sendInviteEmail(settings *models.InstanceSettings, team *models.Team, email string) {
	vars := map[string]string{
		"teamName":     team.Name,
		"email":        email,
		"appUrl":       s.cfg.Server.DomainAddress(),
		"dashboardUrl": fmt.Sprintf("%s/%s/overview", s.cfg.Server.DomainAddress(), team.Slug),
	}

	subject := models.DefaultAddUserEmailSubject
	if settings.AddUserEmailSubject != nil {
		subject = *settings.AddUserEmailSubject
	}
	body := models.DefaultAddUserEmailBody
	if settings.AddUserEmailBody != nil {
		body = *settings.AddUserEmailBody
	}

	start := time.Now()
	err := s.mailer.Send(settings, email, mailer.RenderTemplate(subject, vars), mailer.RenderTemplate(body, vars))
	if err != nil {
		telemetry.InviteEmailsTotal.WithLabelValues("failure").Inc()
		slog.Error("failed to send invite email", "email", email, "team", team.Slug, "error", err)
		return
	}
	telemetry.InviteEmailsTotal.WithLabelValues("success").Inc()
	slog.Info("invite email sent", "email", email, "team", team.Slug, "duration", time.Since(start))
}

// RemoveUser removes a membership from the team. Removing a superuser's
// membership requires a superuser actor. When the removed membership was the
// user's last and the user is not a superuser, the user row is deleted too.
func (s *TeamService) RemoveUser(ctx context.Context, team *models.Team, teamUserID string, actingUser *models.User) error {
	target, err := s.teams.GetMemberByID(ctx, teamUserID, team.ID)
	if err != nil {
		return err
	}
	if target == nil {
		return NewError("User not found")
	}
	if target.UserIsSuperuser && !actingUser.IsSuperuser {
		return NewPermissionError("Only superuser can remove superuser from team")
	}

	return s.teams.RemoveMember(ctx, target.ID, target.UserID, target.UserIsSuperuser)
}

// TeamSettingsPatch carries a partial team settings update. Nil fields leave
// the stored value untouched.
type TeamSettingsPatch struct {
	GithubOrgWebhookSecret     *string `json:"github_org_webhook_secret"`
	GithubOrgPAT               *string `json:"github_org_pat"`
	AutoInviteGithubOrgMembers *bool   `json:"auto_invite_github_org_members"`
}

// GetSettings returns the team's GitHub org integration settings.
func (s *TeamService) GetSettings(ctx context.Context, teamID string) (*models.TeamSettings, error) {
	return s.settings.GetOrCreateTeamSettings(ctx, teamID)
}

// UpdateSettings merges patch into the team's settings and records the
// membership that changed them.
func (s *TeamService) UpdateSettings(ctx context.Context, teamID string, patch *TeamSettingsPatch, updatedByTeamUserID string) (*models.TeamSettings, error) {
	settings, err := s.settings.GetOrCreateTeamSettings(ctx, teamID)
	if err != nil {
		return nil, err
	}

	if patch.GithubOrgWebhookSecret != nil {
		settings.GithubOrgWebhookSecret = patch.GithubOrgWebhookSecret
	}
	if patch.GithubOrgPAT != nil {
		settings.GithubOrgPAT = patch.GithubOrgPAT
	}
	if patch.AutoInviteGithubOrgMembers != nil {
		settings.AutoInviteGithubOrgMembers = *patch.AutoInviteGithubOrgMembers
	}

	if err := s.settings.UpdateTeamSettings(ctx, settings, updatedByTeamUserID); err != nil {
		return nil, err
	}
	return settings, nil
}

// RotateSecretKey replaces the membership's secret key and returns the new
// one. The old key stops working immediately.
func (s *TeamService) RotateSecretKey(ctx context.Context, teamUserID string) (string, error) {
	newKey, err := auth.GenerateSecretKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	if err := s.teams.RotateSecretKey(ctx, teamUserID, newKey); err != nil {
		return "", err
	}
	return newKey, nil
}
