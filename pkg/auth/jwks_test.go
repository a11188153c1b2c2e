package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// createTestToken creates a JWT token for testing (unsigned, for dev mode).
func createTestToken(claims *Claims) string {
	headerJSON, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	claimsJSON, _ := json.Marshal(claims)
	return base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON) + "."
}

func signHS256(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func userClaims(sub string, ttl time.Duration) *Claims {
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}}
}

func TestJWKSClient_DevModeParsesWithoutVerification(t *testing.T) {
	client, err := NewJWKSClient(context.Background(), &JWKSConfig{EnableVerification: false})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}
	defer client.Close()

	// Expired and unsigned tokens are accepted in dev mode.
	claims, err := client.ValidateToken(createTestToken(userClaims("dev-user", -time.Hour)))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "dev-user" {
		t.Errorf("expected subject dev-user, got %s", claims.Subject)
	}
}

func TestJWKSClient_DevModeRejectsGarbage(t *testing.T) {
	client, _ := NewJWKSClient(context.Background(), &JWKSConfig{EnableVerification: false})

	if _, err := client.ValidateToken("not-a-jwt"); err == nil {
		t.Error("expected parse error")
	}
}

func TestNewJWKSClient_VerificationNeedsKeys(t *testing.T) {
	_, err := NewJWKSClient(context.Background(), &JWKSConfig{EnableVerification: true})
	if err == nil {
		t.Fatal("expected error without secret or endpoints")
	}
}

func TestJWKSClient_HS256(t *testing.T) {
	client, err := NewJWKSClient(context.Background(), &JWKSConfig{
		EnableVerification: true,
		HMACSecret:         "top-secret",
	})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", signHS256(t, userClaims("user-1", time.Hour), "top-secret"), false},
		{"wrong secret", signHS256(t, userClaims("user-1", time.Hour), "other"), true},
		{"expired", signHS256(t, userClaims("user-1", -time.Hour), "top-secret"), true},
		{"unsigned", createTestToken(userClaims("user-1", time.Hour)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := client.ValidateToken(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Subject != "user-1" {
				t.Errorf("expected subject user-1, got %s", claims.Subject)
			}
		})
	}
}

func TestJWKSClient_RS256UnknownIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	claims := userClaims("user-1", time.Hour)
	claims.Issuer = "https://unknown.example"
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	client, _ := NewJWKSClient(context.Background(), &JWKSConfig{
		EnableVerification: true,
		HMACSecret:         "top-secret",
	})

	_, err = client.ValidateToken(token)
	if err == nil || !strings.Contains(err.Error(), "unauthorized issuer") {
		t.Errorf("expected unauthorized issuer error, got %v", err)
	}
}
