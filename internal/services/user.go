package services

import (
	"context"
	"fmt"

	"github.com/portr-admin/portr-admin/internal/auth"
	"github.com/portr-admin/portr-admin/internal/auth/github"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/telemetry"
)

// DefaultTeamName is the team created alongside the very first user.
const DefaultTeamName = "Portr"

// UserService implements login, first-user bootstrap and self-service profile
// operations.
type UserService struct {
	users *repositories.UserRepository
	teams *repositories.TeamRepository
}

// NewUserService creates a new UserService
func NewUserService(users *repositories.UserRepository, teams *repositories.TeamRepository) *UserService {
	return &UserService{users: users, teams: teams}
}

// Login authenticates an email/password pair. The very first login bootstraps
// the instance: the user becomes a superuser and the default team is created
// with an admin membership for them, all in one transaction.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	hasUsers, err := s.users.HasAnyUsers(ctx)
	if err != nil {
		return nil, err
	}

	if !hasUsers {
		if password == "" {
			return nil, NewFieldError("password", "Password is required for the first user")
		}
		user, err := s.bootstrap(ctx, email, password)
		if err != nil {
			return nil, err
		}
		telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
		return user, nil
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, NewFieldError("email", "User does not exist")
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, NewFieldError("password", "Password is incorrect")
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}

func (s *UserService) bootstrap(ctx context.Context, email, password string) (*models.User, error) {
	var passwordHash *string
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = &hash
	}

	secretKey, err := auth.GenerateSecretKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}

	user, _, err := s.teams.BootstrapFirstUser(ctx, email, passwordHash, DefaultTeamName, Slugify(DefaultTeamName), secretKey)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LoginWithGithub resolves a GitHub identity to a local user, creating the
// user when needed and upserting the linked GitHub record. A first-ever login
// through GitHub bootstraps the instance the same way a password login does,
// minus the password.
func (s *UserService) LoginWithGithub(ctx context.Context, ghUser *github.User, emails []github.Email, accessToken string) (*models.User, error) {
	email, err := resolveGithubEmail(ghUser, emails)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	hasUsers, err := s.users.HasAnyUsers(ctx)
	if err != nil {
		return nil, err
	}

	var user *models.User
	if !hasUsers {
		user, err = s.bootstrap(ctx, email, "")
		if err != nil {
			return nil, err
		}
	} else {
		user, err = s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			// Users join by invitation only, so a GitHub identity whose
			// email was never added to a team cannot sign in.
			telemetry.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			return nil, ErrUserNotFound
		}
	}

	gh := &models.GithubUser{
		GithubID:    ghUser.ID,
		AccessToken: accessToken,
		AvatarURL:   ghUser.AvatarURL,
		UserID:      user.ID,
	}
	if err := s.users.UpsertGithubUser(ctx, gh); err != nil {
		return nil, err
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// resolveGithubEmail picks the login email for a GitHub identity: the public
// profile email when present, otherwise the primary verified address from the
// emails endpoint, otherwise any verified address.
func resolveGithubEmail(ghUser *github.User, emails []github.Email) (string, error) {
	if ghUser.Email != "" {
		return ghUser.Email, nil
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", NewError("No verified email found")
}

// GetOrCreateByEmail resolves a proxy-asserted email to a user, creating the
// row on first sight. Used only when trusted-proxy header auth is configured.
func (s *UserService) GetOrCreateByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user = &models.User{Email: email}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile merges the provided fields into the user's profile. Nil
// pointers leave the current value untouched.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, firstName, lastName *string) error {
	if firstName != nil {
		user.FirstName = firstName
	}
	if lastName != nil {
		user.LastName = lastName
	}
	return s.users.UpdateProfile(ctx, user)
}

// ChangePassword replaces the user's password.
func (s *UserService) ChangePassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return NewError("Password cannot be empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}
