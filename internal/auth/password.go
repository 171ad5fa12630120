package auth

import "golang.org/x/crypto/bcrypt"

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 12

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// hash. A nil stored hash (OAuth-only account) never matches.
func CheckPassword(password string, storedHash *string) bool {
	if storedHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*storedHash), []byte(password)) == nil
}
