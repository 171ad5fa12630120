// Package github implements GitHub OAuth authentication for the Portr admin.
// GitHub is plain OAuth2 (no OIDC discovery, no id_token), so identity is
// established by exchanging the authorization code for an access token and
// then reading the user and email endpoints of the REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/portr-admin/portr-admin/internal/config"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	userEndpoint   = "https://api.github.com/user"
	emailsEndpoint = "https://api.github.com/user/emails"
)

// User is the subset of the GitHub user payload the admin needs.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Email is one entry of the user's email list, used as a fallback when the
// profile email is private.
type Email struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}

// Client performs the GitHub OAuth handshake and identity lookups.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewClient builds a Client from the configured OAuth app credentials.
func NewClient(cfg *config.GitHubConfig, redirectURL string) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("github auth is not configured")
	}
	return &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"user:email"},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// AuthURL returns the GitHub authorization URL for the given state.
func (c *Client) AuthURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// ExchangeCode exchanges the authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return token.AccessToken, nil
}

// FetchUser reads the authenticated user's profile.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.getJSON(ctx, userEndpoint, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchEmails reads the authenticated user's email list. Needed when the
// profile email is private; callers pick the first verified primary entry.
func (c *Client) FetchEmails(ctx context.Context, accessToken string) ([]Email, error) {
	var emails []Email
	if err := c.getJSON(ctx, emailsEndpoint, accessToken, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (c *Client) getJSON(ctx context.Context, url, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github api returned %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
