package tokensource

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of JWT claims shown to users.
type Claims struct {
	Subject   string    `json:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// ParseClaims decodes the claims of a JWT access token without verifying its
// signature. The client never makes trust decisions from these claims; they
// only fill in expiry and display information. Opaque tokens return false.
func ParseClaims(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}

	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return Claims{}, false
	}

	claims := Claims{
		Subject: rc.Subject,
		Issuer:  rc.Issuer,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}
	return claims, true
}

// ExpiryFromJWT returns the exp claim of a JWT access token.
func ExpiryFromJWT(token string) (time.Time, bool) {
	claims, ok := ParseClaims(token)
	if !ok || claims.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}
