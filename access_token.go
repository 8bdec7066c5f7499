package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying its signature. The client only uses it to drop stale tokens,
// never to decide what a user may access.
func AccessTokenExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AccessTokenExpired reports whether raw carries an exp claim before now.
// Opaque or unparseable tokens are not considered expired.
func AccessTokenExpired(raw string, now time.Time, leeway time.Duration) bool {
	exp, ok := AccessTokenExpiry(raw)
	if !ok {
		return false
	}
	return !now.Before(exp.Add(leeway))
}
