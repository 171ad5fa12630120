package services

import (
	"context"
	"fmt"

	"github.com/portr-admin/portr-admin/internal/auth"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
)

// SessionService issues, resolves and invalidates browser sessions.
type SessionService struct {
	sessions *repositories.SessionRepository
}

// NewSessionService creates a new SessionService
func NewSessionService(sessions *repositories.SessionRepository) *SessionService {
	return &SessionService{sessions: sessions}
}

// Create issues a new session token for the user.
func (s *SessionService) Create(ctx context.Context, user *models.User) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	if _, err := s.sessions.CreateSession(ctx, user.ID, token); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}
	return token, nil
}

// Resolve returns the user owning a session token. Unknown and expired tokens
// both fail with ErrNotAuthenticated.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.sessions.GetUserByValidToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// Invalidate deletes a session. Unknown tokens are not an error, so logout is
// idempotent.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	return s.sessions.DeleteByToken(ctx, token)
}
