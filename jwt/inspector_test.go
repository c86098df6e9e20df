package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return s
}

func TestInspectUnverified(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	tok := signHS(t, accessClaims{
		Phone: "84987654321",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	var in Inspector
	claims, err := in.Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Phone != "84987654321" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expected exp %v, got %v", exp, claims.ExpiresAt)
	}
	if claims.Verified {
		t.Fatal("unverified parse must not report Verified")
	}
}

func TestInspectExpiredTokenStillReadable(t *testing.T) {
	tok := signHS(t, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	var in Inspector
	if _, err := in.Inspect(tok); err != nil {
		t.Fatalf("expired token should still be inspectable: %v", err)
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	var in Inspector
	if _, err := in.Inspect("opaque-access-token"); !errors.Is(err, ErrNotJWT) {
		t.Fatalf("expected ErrNotJWT, got %v", err)
	}
	if in.ExpiresWithin("opaque-access-token", time.Hour, time.Now()) {
		t.Fatal("opaque token must never be reported as expiring")
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	tok := signHS(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(20 * time.Second))})

	var in Inspector
	if !in.ExpiresWithin(tok, 30*time.Second, now) {
		t.Fatal("expected token to be within 30s leeway")
	}
	if in.ExpiresWithin(tok, 5*time.Second, now) {
		t.Fatal("token should not be within 5s leeway")
	}
}

func TestInspectVerifiedEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject: "u1",
		Issuer:  "wallet",
	}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	in, err := NewInspector(Config{VerifyKey: pub, Issuer: "wallet"})
	if err != nil {
		t.Fatalf("NewInspector failed: %v", err)
	}
	claims, err := in.Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !claims.Verified || claims.Subject != "u1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	otherPub, _, _ := ed25519.GenerateKey(rand.Reader)
	other, _ := NewInspector(Config{VerifyKey: otherPub})
	if _, err := other.Inspect(tok); err == nil {
		t.Fatal("expected verification failure with wrong key")
	}
}

func TestNewInspectorRejectsBadKey(t *testing.T) {
	if _, err := NewInspector(Config{VerifyKey: []byte("nope")}); err == nil {
		t.Fatal("expected error for invalid key")
	}
}
