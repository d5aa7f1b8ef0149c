package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail validation.
var ErrInvalidToken = errors.New("invalid token")

// TokenValidator checks HS256-signed request tokens.
type TokenValidator struct {
	secret []byte
	now    func() time.Time
}

// NewTokenValidator returns a validator for secret. An empty secret yields a
// validator that is disabled and accepts every request.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether tokens are checked at all.
func (v *TokenValidator) Enabled() bool {
	return len(v.secret) > 0
}

// ValidateToken parses token and returns its subject claim. Expiry is
// enforced when the token carries one.
func (v *TokenValidator) ValidateToken(token string) (string, error) {
	if !v.Enabled() {
		return "", nil
	}
	if token == "" {
		return "", fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

// GenerateToken signs a token for subject that expires after ttl. Used by
// the CLI to mint tokens for API callers.
func (v *TokenValidator) GenerateToken(subject string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("GenerateToken: no secret configured")
	}
	now := v.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
