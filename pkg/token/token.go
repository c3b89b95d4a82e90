package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims defines the session token payload. The session ID keys the
// per-session credential and endpoint overrides.
type Claims struct {
	SessionID string `json:"session_id"`
	jwtlib.RegisteredClaims
}

// Generate issues a signed session token with the provided secret and ttl.
func Generate(sessionID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "testbench",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// Parse validates and extracts claims from a session token.
func Parse(raw string, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}
