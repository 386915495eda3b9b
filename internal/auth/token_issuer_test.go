package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesAccessTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "suraksha-auth",
		Audience:      "suraksha-api",
		TokenTTL:      time.Hour,
	})

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), "user-123", "student")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected one hour expiry, got %d seconds", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &AccessClaims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Demographic != "student" {
		t.Fatalf("unexpected demographic %s", claims.Demographic)
	}
	if claims.Issuer != "suraksha-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "suraksha-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerRejectsMissingSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		Issuer:   "suraksha-auth",
		Audience: "suraksha-api",
	})
	if _, _, err := issuer.IssueToken(context.Background(), "user-1", ""); err == nil {
		t.Fatalf("expected issuance error for missing secret")
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("another-secret"),
		Issuer:        "suraksha-auth",
		Audience:      "suraksha-api",
		TokenTTL:      15 * time.Minute,
	})

	tokenString, _, err := issuer.IssueToken(context.Background(), "user-321", "senior")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	identity, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if identity.UserID != "user-321" {
		t.Fatalf("unexpected user id %s", identity.UserID)
	}
	if identity.Demographic != "senior" {
		t.Fatalf("unexpected demographic %s", identity.Demographic)
	}

	if _, err := issuer.ValidateToken("invalid.token"); err == nil {
		t.Fatalf("expected validation to fail for malformed token")
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0).UTC()
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "suraksha-auth",
		Audience:      "suraksha-api",
		TokenTTL:      time.Hour,
		Clock:         func() time.Time { return issuedAt },
	})

	tokenString, _, err := issuer.IssueToken(context.Background(), "user-9", "")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	late := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "suraksha-auth",
		Audience:      "suraksha-api",
		TokenTTL:      time.Hour,
		Clock:         func() time.Time { return issuedAt.Add(2 * time.Hour) },
	})
	if _, err := late.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
