// Package auth provides authentication primitives for the Portr admin: opaque
// credential generation (secret keys, session tokens, provisioned passwords),
// bcrypt password hashing, and signed OAuth state tokens.
// See internal/middleware/auth.go for the request-time resolution logic that
// uses these primitives.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/oklog/ulid/v2"
)

const (
	// SecretKeyPrefix identifies Portr secret keys in logs and config files.
	SecretKeyPrefix = "portr"

	// secretKeyLength is the random part of a team member secret key.
	secretKeyLength = 36

	// sessionTokenLength is the length of a session cookie token.
	sessionTokenLength = 32

	// randomPasswordLength is the length of passwords provisioned for invited users.
	randomPasswordLength = 16
)

const alnumAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomString returns n characters drawn uniformly from alphabet using
// crypto/rand. It fails only if the operating system's entropy source is
// unavailable.
func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateSecretKey creates a new team member secret key of the form
// portr_<36 random alphanumeric characters>. The key is stored as-is: unlike a
// password it is itself high-entropy, and the CLI presents it on every request,
// so an exact-match indexed lookup is required.
func GenerateSecretKey() (string, error) {
	random, err := randomString(alnumAlphabet, secretKeyLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", SecretKeyPrefix, random), nil
}

// GenerateSessionToken creates an opaque session cookie token.
func GenerateSessionToken() (string, error) {
	return randomString(alnumAlphabet, sessionTokenLength)
}

// GenerateRandomPassword creates the initial password for a user provisioned
// through a team invite. The caller must relay it to the invitee; only its
// bcrypt hash is stored.
func GenerateRandomPassword() (string, error) {
	return randomString(alnumAlphabet, randomPasswordLength)
}

// GenerateConnectionID creates a 26-character ULID. ULIDs sort
// lexicographically by creation time, which keeps connection listings in
// insertion order without a separate sequence.
func GenerateConnectionID() string {
	return ulid.Make().String()
}
