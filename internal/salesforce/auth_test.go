package salesforce

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// writeTestKey generates an RSA key, writes it as PEM, and returns the file
// path plus the public half for assertion verification.
func writeTestKey(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "sf.key")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}
	return path, &key.PublicKey
}

func newTestProvider(t *testing.T, doer Doer) (*JWTTokenProvider, *rsa.PublicKey) {
	t.Helper()
	keyPath, pubKey := writeTestKey(t)
	p := NewJWTTokenProvider(
		doer,
		"https://login.salesforce.com",
		"client-id-1",
		"integration@example.com",
		keyPath,
		"https://login.salesforce.com",
		2*time.Hour,
	)
	return p, pubKey
}

func tokenResponse(token string, expiresIn string) string {
	if expiresIn == "" {
		return `{"access_token":"` + token + `"}`
	}
	return `{"access_token":"` + token + `","expires_in":` + expiresIn + `}`
}

func TestAccessTokenExchange(t *testing.T) {
	doer := &fakeDoer{}
	doer.queue(http.StatusOK, tokenResponse("tok-abc", "3600"))
	provider, pubKey := newTestProvider(t, doer)

	token, err := provider.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if token != "tok-abc" {
		t.Errorf("Token mismatch: got %q", token)
	}

	if len(doer.requests) != 1 {
		t.Fatalf("Expected 1 token request, got %d", len(doer.requests))
	}
	req := doer.requests[0]
	if req.Method != http.MethodPost {
		t.Errorf("Method mismatch: got %s", req.Method)
	}
	if req.URL != "https://login.salesforce.com/services/oauth2/token" {
		t.Errorf("Token endpoint mismatch: got %s", req.URL)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type mismatch: got %q", got)
	}

	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("Request body is not a form: %v", err)
	}
	if got := form.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
		t.Errorf("grant_type mismatch: got %q", got)
	}

	// Verify the assertion is a valid RS256 JWT carrying the app claims.
	assertion := form.Get("assertion")
	parsed, err := jwt.Parse(assertion, func(tok *jwt.Token) (interface{}, error) {
		return pubKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("Assertion does not verify: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("Unexpected claims type %T", parsed.Claims)
	}
	if claims["iss"] != "client-id-1" {
		t.Errorf("iss mismatch: got %v", claims["iss"])
	}
	if claims["sub"] != "integration@example.com" {
		t.Errorf("sub mismatch: got %v", claims["sub"])
	}
	if claims["aud"] != "https://login.salesforce.com" {
		t.Errorf("aud mismatch: got %v", claims["aud"])
	}
	if _, ok := claims["exp"]; !ok {
		t.Error("Assertion missing exp claim")
	}
}

func TestAccessTokenCaching(t *testing.T) {
	doer := &fakeDoer{}
	doer.queue(http.StatusOK, tokenResponse("tok-1", "3600"))
	doer.queue(http.StatusOK, tokenResponse("tok-2", "3600"))
	provider, _ := newTestProvider(t, doer)

	clock := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return clock }

	first, err := provider.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Well inside the token lifetime: the cached token is reused.
	clock = clock.Add(30 * time.Minute)
	second, err := provider.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first != second || second != "tok-1" {
		t.Errorf("Expected cached token tok-1, got %q then %q", first, second)
	}
	if len(doer.requests) != 1 {
		t.Errorf("Expected 1 token request after cache hit, got %d", len(doer.requests))
	}

	// Inside the refresh margin of expiry: a new token is fetched.
	clock = clock.Add(29*time.Minute + 30*time.Second)
	third, err := provider.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if third != "tok-2" {
		t.Errorf("Expected refreshed token tok-2, got %q", third)
	}
	if len(doer.requests) != 2 {
		t.Errorf("Expected 2 token requests after margin refresh, got %d", len(doer.requests))
	}
}

func TestAccessTokenDefaultTTL(t *testing.T) {
	doer := &fakeDoer{}
	doer.queue(http.StatusOK, tokenResponse("tok-1", ""))
	doer.queue(http.StatusOK, tokenResponse("tok-2", ""))
	provider, _ := newTestProvider(t, doer)

	clock := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return clock }

	if _, err := provider.AccessToken(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// With no expires_in the configured default (2h) applies; one hour in,
	// the token is still cached.
	clock = clock.Add(time.Hour)
	token, err := provider.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if token != "tok-1" || len(doer.requests) != 1 {
		t.Errorf("Expected cached tok-1 within default TTL, got %q after %d requests", token, len(doer.requests))
	}
}

func TestRefreshDiscardsCache(t *testing.T) {
	doer := &fakeDoer{}
	doer.queue(http.StatusOK, tokenResponse("tok-1", "3600"))
	doer.queue(http.StatusOK, tokenResponse("tok-2", "3600"))
	provider, _ := newTestProvider(t, doer)

	if _, err := provider.AccessToken(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	token, err := provider.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if token != "tok-2" {
		t.Errorf("Expected forced refresh to return tok-2, got %q", token)
	}
}

func TestAccessTokenFailures(t *testing.T) {
	t.Run("Rejected grant", func(t *testing.T) {
		doer := &fakeDoer{}
		doer.queue(http.StatusBadRequest, `{"error":"invalid_grant"}`)
		provider, _ := newTestProvider(t, doer)

		if _, err := provider.AccessToken(context.Background()); err == nil {
			t.Error("Expected error for rejected grant, got nil")
		}
	})

	t.Run("Missing access_token in response", func(t *testing.T) {
		doer := &fakeDoer{}
		doer.queue(http.StatusOK, `{"token_type":"Bearer"}`)
		provider, _ := newTestProvider(t, doer)

		if _, err := provider.AccessToken(context.Background()); err == nil {
			t.Error("Expected error for missing access_token, got nil")
		}
	})

	t.Run("Unreadable private key file", func(t *testing.T) {
		doer := &fakeDoer{}
		provider := NewJWTTokenProvider(doer, "https://login.salesforce.com", "cid", "user", filepath.Join(t.TempDir(), "missing.key"), "https://login.salesforce.com", time.Hour)

		if _, err := provider.AccessToken(context.Background()); err == nil {
			t.Error("Expected error for missing key file, got nil")
		}
		if len(doer.requests) != 0 {
			t.Errorf("No token request should be sent without an assertion, got %d", len(doer.requests))
		}
	})
}
