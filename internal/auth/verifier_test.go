package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tesloshop/relay/internal/auth"
)

func newVerifier() *auth.JWTVerifier {
	return auth.NewJWTVerifier("test-secret", "test-issuer", time.Hour)
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newVerifier()

	token, err := v.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	uid, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "user-123" {
		t.Errorf("Verify returned uid %q, want user-123", uid)
	}
}

func TestVerifyFailures(t *testing.T) {
	v := newVerifier()

	expired := auth.NewJWTVerifier("test-secret", "test-issuer", -time.Minute)
	expiredToken, err := expired.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue expired: %v", err)
	}

	foreign := auth.NewJWTVerifier("other-secret", "test-issuer", time.Hour)
	foreignToken, err := foreign.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue foreign: %v", err)
	}

	wrongIssuer := auth.NewJWTVerifier("test-secret", "someone-else", time.Hour)
	wrongIssuerToken, err := wrongIssuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue wrong issuer: %v", err)
	}

	// Token with no uid claim at all.
	noUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "test-issuer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign no-uid token: %v", err)
	}

	// Token signed with "none" must never pass.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UID: "user-123",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	cases := []struct {
		name       string
		credential string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", expiredToken},
		{"foreign signature", foreignToken},
		{"wrong issuer", wrongIssuerToken},
		{"missing uid", noUID},
		{"none algorithm", unsigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.credential)
			if !errors.Is(err, auth.ErrAuthenticationFailed) {
				t.Errorf("Verify(%s) = %v, want ErrAuthenticationFailed", tc.name, err)
			}
		})
	}
}
