package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// stateTTL bounds the OAuth redirect hop. It matches the max-age of the
// oauth_state cookie.
const stateTTL = 10 * time.Minute

// stateClaims is the payload of a signed OAuth state token.
type stateClaims struct {
	jwt.RegisteredClaims
}

// GenerateStateToken creates a short-lived signed token used as the OAuth
// state parameter. The token is self-validating: the callback verifies the
// signature and expiry without any server-side state, and additionally
// compares it against the oauth_state cookie to bind it to the browser that
// started the flow.
func GenerateStateToken(secret string) (string, error) {
	claims := &stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(stateTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "portr-admin",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateStateToken checks the signature and expiry of an OAuth state token.
func ValidateStateToken(tokenString, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid state token")
	}
	return nil
}
