// Package crypto provides AES-256-GCM authenticated encryption for sensitive
// values that must be stored at rest in the database: the instance SMTP password
// and GitHub OAuth access tokens. Both grant access to systems outside Portr
// (the mail account, the user's GitHub account), so a database dump must not
// expose them in the clear. AES-256-GCM is used because it provides both
// confidentiality and authenticated integrity, ensuring stored values cannot be
// silently tampered with even if the database is partially compromised.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrKeyLengthInvalid is returned when a key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext fails base64 decoding or is too short to contain a valid nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when AES-GCM authentication or decryption fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
)

// keyDerivationSalt fixes the PBKDF2 salt so every instance sharing the same
// configured encryption key derives the same cipher key. The salt does not need
// to be secret, only distinct per application.
var keyDerivationSalt = []byte("portr-admin/encrypted-field/v1")

const keyDerivationIterations = 100000

// FieldCipher encrypts and decrypts database field values.
type FieldCipher struct {
	key []byte
}

// NewFieldCipher creates a cipher with a raw 32-byte key.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, 32)
	copy(keyCopy, key)
	return &FieldCipher{key: keyCopy}, nil
}

// NewFieldCipherFromPassphrase derives the cipher key from the configured
// encryption key via PBKDF2-SHA256. All server instances configured with the
// same encryption key can read each other's ciphertexts.
func NewFieldCipherFromPassphrase(passphrase string) (*FieldCipher, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: encryption passphrase is empty")
	}
	derived := pbkdf2.Key([]byte(passphrase), keyDerivationSalt, keyDerivationIterations, 32, sha256.New)
	return NewFieldCipher(derived)
}

// Encrypt seals plaintext and returns a base64-encoded ciphertext. Empty input
// passes through unchanged so nullable columns stay null.
func (fc *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(fc.key)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64-encoded ciphertext and returns the plaintext. Empty
// input passes through unchanged.
func (fc *FieldCipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}

	block, err := aes.NewCipher(fc.key)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceLen := aead.NonceSize()
	if len(ciphertext) < nonceLen {
		return "", ErrCiphertextCorrupted
	}

	nonce := ciphertext[:nonceLen]
	plaintext, err := aead.Open(nil, nonce, ciphertext[nonceLen:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
