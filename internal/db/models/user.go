// Package models defines the database model types for the Portr admin.
// Each type corresponds to a database table. Models are pure data types;
// business logic belongs in the services layer, query logic in the
// repositories layer.
package models

import "time"

// User represents an account in the system. PasswordHash is nil for
// OAuth-only accounts.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    *string    `json:"first_name"`
	LastName     *string    `json:"last_name"`
	PasswordHash *string    `json:"-"`
	IsSuperuser  bool       `json:"is_superuser"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GithubUser links a User to a GitHub identity. AccessToken is stored
// encrypted at rest; repositories handle the transform.
type GithubUser struct {
	ID          string `json:"id"`
	GithubID    int64  `json:"github_id"`
	AccessToken string `json:"-"`
	AvatarURL   string `json:"github_avatar_url"`
	UserID      string `json:"user_id"`
}
