package emerald

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is the bearer credential returned by sign-in.
type Token struct {
	Value string

	// ExpiresAt is read from the JWT exp claim without verifying the
	// signature. Zero when the token is not a JWT or carries no exp.
	ExpiresAt time.Time
}

// parseToken wraps a raw token, extracting its expiry when it is a JWT.
// Opaque tokens are accepted unchanged.
func parseToken(raw string) Token {
	tok := Token{Value: raw}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return tok
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time
	}
	return tok
}

// Expired reports whether the token has a known expiry at or before now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// IsZero reports whether no token has been issued.
func (t Token) IsZero() bool {
	return t.Value == ""
}
