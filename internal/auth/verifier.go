// Package auth verifies the bearer credentials presented during the
// WebSocket handshake. Tokens are HS256 JWTs carrying the subject
// identity id in a "uid" claim.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthenticationFailed is returned for every verification failure:
// bad signature, malformed payload, expiry, wrong signing method, or a
// missing subject. Callers must not be able to tell these apart; the
// handshake closes the transport identically in every case.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Verifier validates a raw credential and returns the subject identity id.
type Verifier interface {
	Verify(credential string) (identityID string, err error)
}

// Claims is the token payload. The identity id travels in "uid".
type Claims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"`
}

// JWTVerifier verifies and issues HS256 tokens.
type JWTVerifier struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewJWTVerifier creates a verifier with the given signing secret.
func NewJWTVerifier(secret, issuer string, expiration time.Duration) *JWTVerifier {
	return &JWTVerifier{
		secret:     []byte(secret),
		issuer:     issuer,
		expiration: expiration,
	}
}

// Verify parses and validates a credential, returning the identity id it
// names. Any failure collapses into ErrAuthenticationFailed.
func (v *JWTVerifier) Verify(credential string) (string, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAuthenticationFailed
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return "", ErrAuthenticationFailed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return "", ErrAuthenticationFailed
	}
	return claims.UID, nil
}

// Issue mints a signed token for the given identity id.
func (v *JWTVerifier) Issue(identityID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   identityID,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UID: identityID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
