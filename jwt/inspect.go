package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect when the access token is opaque.
var ErrNotJWT = errors.New("access token is not a jwt")

// Claims is the subset of access-token claims the client cares about.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Inspect decodes the claims of a compact JWT without verifying it.
func Inspect(token string) (Claims, error) {
	if strings.Count(token, ".") != 2 {
		return Claims{}, ErrNotJWT
	}

	var claims AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, ErrNotJWT
	}

	out := Claims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// ExpiresWithin reports whether token carries an exp claim that falls before now+skew.
// Opaque tokens and tokens without exp never report expiry.
func ExpiresWithin(token string, skew time.Duration, now time.Time) bool {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return !claims.ExpiresAt.After(now.Add(skew))
}
