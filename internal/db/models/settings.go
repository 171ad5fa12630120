package models

import "time"

// InstanceSettings is the singleton row holding instance-wide SMTP and invite
// email configuration. SMTPPassword is encrypted at rest; the repository
// decrypts it on read. Exactly one row exists, created with defaults on first
// access.
// Defaults used when the settings row is first created. Superusers can edit
// both afterwards; {{placeholders}} are substituted when the invite is sent.
const (
	DefaultAddUserEmailSubject = "You've been added to team {{teamName}} on Portr!"
	DefaultAddUserEmailBody    = "Hello {{email}}\n\n" +
		"You've been added to team \"{{teamName}}\" on Portr.\n\n" +
		"Get started by signing in with your github account at {{dashboardUrl}}"
)

// TeamSettings holds a team's GitHub organization integration: the webhook
// secret guarding org event deliveries and the PAT used to look up org
// membership. Both are encrypted at rest; the repository decrypts them on
// read. One row exists per team, created together with the team.
type TeamSettings struct {
	ID                         string    `db:"id" json:"id"`
	TeamID                     string    `db:"team_id" json:"team_id"`
	GithubOrgWebhookSecret     *string   `db:"github_org_webhook_secret" json:"github_org_webhook_secret"`
	GithubOrgPAT               *string   `db:"github_org_pat" json:"github_org_pat"`
	AutoInviteGithubOrgMembers bool      `db:"auto_invite_github_org_members" json:"auto_invite_github_org_members"`
	UpdatedBy                  *string   `db:"updated_by" json:"updated_by"`
	CreatedAt                  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time `db:"updated_at" json:"updated_at"`
}

type InstanceSettings struct {
	ID                  string    `db:"id" json:"id"`
	SMTPEnabled         bool      `db:"smtp_enabled" json:"smtp_enabled"`
	SMTPHost            *string   `db:"smtp_host" json:"smtp_host"`
	SMTPPort            *int      `db:"smtp_port" json:"smtp_port"`
	SMTPUsername        *string   `db:"smtp_username" json:"smtp_username"`
	SMTPPassword        *string   `db:"smtp_password" json:"smtp_password,omitempty"`
	FromAddress         *string   `db:"from_address" json:"from_address"`
	AddUserEmailSubject *string   `db:"add_user_email_subject" json:"add_user_email_subject"`
	AddUserEmailBody    *string   `db:"add_user_email_body" json:"add_user_email_body"`
	UpdatedBy           *string   `db:"updated_by" json:"updated_by"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
