package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
server:
  domain: portr.example.com
database:
  host: db.internal
  name: portr
  user: portr
crypto:
  encryption_key: test-encryption-key-for-config
tunnel:
  server_url: portr.example.com:8001
  ssh_url: portr.example.com:2222
`

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Domain != "portr.example.com" {
		t.Errorf("domain = %s", cfg.Server.Domain)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PORTR_SERVER_PORT", "9999")
	cfg, err := Load(writeConfigFile(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want env override 9999", cfg.Server.Port)
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	yaml := `
server:
  domain: portr.example.com
database:
  host: db.internal
`
	if _, err := Load(writeConfigFile(t, yaml)); err == nil {
		t.Fatal("expected error for missing encryption key")
	}
}

func TestLoad_GitHubSecretRequiredWithClientID(t *testing.T) {
	yaml := validYAML + `
auth:
  github:
    client_id: iv1.abc
`
	if _, err := Load(writeConfigFile(t, yaml)); err == nil {
		t.Fatal("expected error when github client_secret is missing")
	}
}

func TestDomainAddress(t *testing.T) {
	cases := []struct {
		domain string
		want   string
	}{
		{"localhost:8000", "http://localhost:8000"},
		{"portr.example.com", "https://portr.example.com"},
	}
	for _, tc := range cases {
		s := ServerConfig{Domain: tc.domain}
		if got := s.DomainAddress(); got != tc.want {
			t.Errorf("DomainAddress(%s) = %s, want %s", tc.domain, got, tc.want)
		}
	}
}

func TestStateSigningSecretFallback(t *testing.T) {
	cfg := &Config{Crypto: CryptoConfig{EncryptionKey: "enc-key"}}
	if got := cfg.StateSigningSecret(); got != "enc-key" {
		t.Errorf("fallback secret = %s", got)
	}
	cfg.Auth.StateSecret = "state-key"
	if got := cfg.StateSigningSecret(); got != "state-key" {
		t.Errorf("explicit secret = %s", got)
	}
}
