package auth

import (
	"strings"
	"testing"
)

func TestGenerateSecretKey_Format(t *testing.T) {
	key, err := GenerateSecretKey()
	if err != nil {
		t.Fatalf("GenerateSecretKey: %v", err)
	}
	if !strings.HasPrefix(key, "portr_") {
		t.Errorf("key %q missing portr_ prefix", key)
	}
	if len(key) != len("portr_")+36 {
		t.Errorf("key length = %d, want %d", len(key), len("portr_")+36)
	}
	for _, r := range key[len("portr_"):] {
		if !strings.ContainsRune(alnumAlphabet, r) {
			t.Errorf("key contains non-alphanumeric character %q", r)
		}
	}
}

func TestGenerateSecretKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateSecretKey()
		if err != nil {
			t.Fatalf("GenerateSecretKey: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}

func TestGenerateSessionToken_Length(t *testing.T) {
	token, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	if len(token) != 32 {
		t.Errorf("token length = %d, want 32", len(token))
	}
}

func TestGenerateRandomPassword_Length(t *testing.T) {
	pw, err := GenerateRandomPassword()
	if err != nil {
		t.Fatalf("GenerateRandomPassword: %v", err)
	}
	if len(pw) != 16 {
		t.Errorf("password length = %d, want 16", len(pw))
	}
}

func TestGenerateConnectionID_SortableLength(t *testing.T) {
	a := GenerateConnectionID()
	b := GenerateConnectionID()
	if len(a) != 26 || len(b) != 26 {
		t.Errorf("id lengths = %d, %d, want 26", len(a), len(b))
	}
	if a == b {
		t.Error("consecutive ids are identical")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("p1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("p1", &hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", &hash) {
		t.Error("wrong password accepted")
	}
	if CheckPassword("p1", nil) {
		t.Error("nil hash accepted")
	}
}

func TestStateTokenRoundTrip(t *testing.T) {
	token, err := GenerateStateToken("state-secret")
	if err != nil {
		t.Fatalf("GenerateStateToken: %v", err)
	}
	if err := ValidateStateToken(token, "state-secret"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := ValidateStateToken(token, "other-secret"); err == nil {
		t.Error("token accepted with wrong secret")
	}
	if err := ValidateStateToken("garbage", "state-secret"); err == nil {
		t.Error("garbage token accepted")
	}
}
