package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-testing-32b"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := NewJWTService(Config{Secret: testSecret})

	token, err := svc.GenerateAccessToken("user_123")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected 3 JWT segments, got %d", len(parts))
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID() != "user_123" {
		t.Errorf("UserID() = %q, want user_123", claims.UserID())
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeAccess)
	}

	exp := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if exp != AccessTokenExpiry {
		t.Errorf("access token lifetime = %v, want %v", exp, AccessTokenExpiry)
	}
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	svc := NewJWTService(Config{Secret: testSecret})

	token, err := svc.GenerateRefreshToken("user_123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("refresh token should validate generically: %v", err)
	}
	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestEmptyUserID(t *testing.T) {
	svc := NewJWTService(Config{Secret: testSecret})
	if _, err := svc.GenerateAccessToken(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
	if _, err := svc.GenerateRefreshToken(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	svc := NewJWTService(Config{Secret: testSecret, Leeway: time.Second})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateAccessToken("user_123")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestLeeway(t *testing.T) {
	svc := NewJWTService(Config{Secret: testSecret, Leeway: time.Minute})
	issued := time.Now().Add(-AccessTokenExpiry - 30*time.Second)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken("user_123")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateAccessToken(token); err != nil {
		t.Errorf("token expired 30s ago should pass with 1m leeway: %v", err)
	}
}

func TestInvalidTokens(t *testing.T) {
	svc := NewJWTService(Config{Secret: testSecret})
	other := NewJWTService(Config{Secret: "a-completely-different-secret-value"})

	valid, _ := svc.GenerateAccessToken("user_123")
	foreign, _ := other.GenerateAccessToken("user_123")

	// Tamper with the payload segment.
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x" + "." + parts[2]

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_123"},
		Type:             TokenTypeAccess,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered payload", tampered},
		{"wrong secret", foreign},
		{"alg none", noneToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateAccessToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestIssuerEnforced(t *testing.T) {
	issuer := NewJWTService(Config{Secret: testSecret, Issuer: "socialgraph"})
	anon := NewJWTService(Config{Secret: testSecret})

	token, _ := anon.GenerateAccessToken("user_123")
	if _, err := issuer.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token without issuer should be rejected, got %v", err)
	}

	token, _ = issuer.GenerateAccessToken("user_123")
	claims, err := issuer.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("token with issuer should validate: %v", err)
	}
	if claims.Issuer != "socialgraph" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestKeyRotation(t *testing.T) {
	oldSvc := NewJWTService(Config{Secret: "old-secret-old-secret-old-secret"})
	rotated := NewJWTService(Config{
		Secret:         "new-secret-new-secret-new-secret",
		PreviousSecret: "old-secret-old-secret-old-secret",
	})
	retired := NewJWTService(Config{Secret: "new-secret-new-secret-new-secret"})

	oldToken, _ := oldSvc.GenerateAccessToken("user_123")
	newToken, _ := rotated.GenerateAccessToken("user_123")

	if _, err := rotated.ValidateAccessToken(oldToken); err != nil {
		t.Errorf("old token should validate during rotation: %v", err)
	}
	if _, err := rotated.ValidateAccessToken(newToken); err != nil {
		t.Errorf("new token should validate: %v", err)
	}
	if _, err := oldSvc.ValidateAccessToken(newToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("new token must not validate with only the old key, got %v", err)
	}
	if _, err := retired.ValidateAccessToken(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("old token must fail once the previous key is retired, got %v", err)
	}
}
