// team.go defines the Team model and the TeamUser membership join entity
// binding a User to a Team with a role and a bearer secret key.
package models

import "time"

// Role is a team-scoped permission level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Team is a tenant namespace. Slug is derived deterministically from Name and
// is what appears in URLs and the X-Team-Slug header.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamUser is a membership record. SecretKey is the opaque bearer credential
// used by non-browser clients (the portr CLI) in place of a session cookie.
type TeamUser struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TeamID    string    `json:"team_id"`
	Role      Role      `json:"role"`
	SecretKey string    `json:"secret_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamUserWithUser is a membership joined with its user and optional GitHub
// identity, as rendered in team member listings. It deliberately carries no
// secret key: the key is visible only to its owner through TeamUserContext.
type TeamUserWithUser struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TeamID          string    `json:"team_id"`
	Role            Role      `json:"role"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	UserEmail       string    `json:"email"`
	UserFirstName   *string   `json:"first_name"`
	UserLastName    *string   `json:"last_name"`
	UserIsSuperuser bool      `json:"is_superuser"`
	GithubAvatarURL *string   `json:"github_avatar_url"`
}

// TeamUserContext is a membership joined with its team, resolved once per
// request by the authorization middleware.
type TeamUserContext struct {
	TeamUser
	Team Team `json:"team"`
}
