package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", " A@Example.com ", "ADMIN", time.Hour)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if time.Until(tok.Exp) < 59*time.Minute {
		t.Fatalf("exp = %v, too early", tok.Exp)
	}

	claims, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "a@example.com" || claims.Role != "ADMIN" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, err := NewAccessToken("s3cret", "a@example.com", "USER", time.Hour)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	expired, err := NewAccessToken("s3cret", "a@example.com", "USER", -time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@example.com"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("none token: %v", err)
	}
	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("token without email: %v", err)
	}

	cases := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", good.Token},
		"expired":      {"s3cret", expired.Token},
		"alg none":     {"s3cret", none},
		"no email":     {"s3cret", noEmail},
		"garbage":      {"s3cret", "not.a.jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccessToken(tc.secret, tc.raw); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
