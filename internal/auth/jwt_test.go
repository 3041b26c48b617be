package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, issuer string, ttl time.Duration, claims Claims) string {
	t.Helper()
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestParseTokenRoundTrip(t *testing.T) {
	token := signToken(t, "test-secret", "test-issuer", time.Hour, Claims{UserID: "user-1", UserType: "teacher"})
	claims, err := ParseToken("test-secret", "test-issuer", token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "user-1" || claims.UserType != "teacher" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejections(t *testing.T) {
	token := signToken(t, "test-secret", "test-issuer", time.Hour, Claims{UserID: "user-1", UserType: "student"})
	if _, err := ParseToken("other-secret", "test-issuer", token); err == nil {
		t.Fatalf("expected wrong secret to be rejected")
	}
	if _, err := ParseToken("test-secret", "other-issuer", token); err == nil {
		t.Fatalf("expected wrong issuer to be rejected")
	}

	expired := signToken(t, "test-secret", "test-issuer", -time.Minute, Claims{UserID: "user-1", UserType: "student"})
	if _, err := ParseToken("test-secret", "test-issuer", expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
