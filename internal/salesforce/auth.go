package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"sales-import/internal/logging"
	"sales-import/internal/util"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// assertionLifetime bounds the validity of the signed JWT assertion.
	assertionLifetime = 5 * time.Minute
	// refreshMargin renews tokens slightly before their reported expiry so
	// in-flight requests never carry a token about to lapse.
	refreshMargin = 60 * time.Second
)

// JWTTokenProvider implements TokenProvider using the OAuth2 JWT bearer
// grant: a short-lived RS256 assertion signed with the Connected App's
// private key is exchanged for an access token, which is cached until close
// to expiry. Refresh is serialized: concurrent callers block on the mutex
// and reuse the token the first caller fetched.
type JWTTokenProvider struct {
	httpClient     Doer
	instanceURL    string
	clientID       string
	username       string
	privateKeyFile string
	audienceURL    string
	defaultTTL     time.Duration

	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewJWTTokenProvider creates a provider for the given Connected App
// credentials. defaultTTL is assumed when the token endpoint omits
// expires_in.
func NewJWTTokenProvider(httpClient Doer, instanceURL, clientID, username, privateKeyFile, audienceURL string, defaultTTL time.Duration) *JWTTokenProvider {
	return &JWTTokenProvider{
		httpClient:     httpClient,
		instanceURL:    strings.TrimRight(instanceURL, "/"),
		clientID:       clientID,
		username:       username,
		privateKeyFile: privateKeyFile,
		audienceURL:    audienceURL,
		defaultTTL:     defaultTTL,
		now:            time.Now,
	}
}

// AccessToken returns a valid bearer token, fetching a new one when the
// cached token is absent or within the refresh margin of expiry.
func (p *JWTTokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiresAt.Add(-refreshMargin)) {
		return p.token, nil
	}
	if err := p.acquireLocked(ctx); err != nil {
		return "", err
	}
	return p.token, nil
}

// Refresh discards the cached token and fetches a new one.
func (p *JWTTokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.acquireLocked(ctx); err != nil {
		return "", err
	}
	return p.token, nil
}

// acquireLocked exchanges a fresh assertion for an access token. Caller
// holds p.mu.
func (p *JWTTokenProvider) acquireLocked(ctx context.Context) error {
	start := p.now()
	logging.Logf(logging.Info, "Salesforce JWT authentication started")

	assertion, err := p.createAssertion()
	if err != nil {
		return fmt.Errorf("failed to authenticate with Salesforce: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.instanceURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to authenticate with Salesforce: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to authenticate with Salesforce: %w", &APIError{StatusCode: resp.StatusCode, Body: util.Snippet(body)})
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("token response contained no access_token")
	}

	// Salesforce does not always return expires_in; fall back to the
	// configured default session lifetime.
	ttl := p.defaultTTL
	if tokenResp.ExpiresIn > 0 {
		ttl = time.Duration(tokenResp.ExpiresIn) * time.Second
	}

	p.token = tokenResp.AccessToken
	p.expiresAt = p.now().Add(ttl)

	logging.Logf(logging.Info, "Salesforce JWT authentication successful (token=%s expires_in=%s duration=%s)",
		util.MaskToken(p.token), ttl, roundSeconds(p.now().Sub(start)))
	return nil
}

// createAssertion builds and signs the RS256 JWT assertion for the bearer
// grant.
func (p *JWTTokenProvider) createAssertion() (string, error) {
	keyBytes, err := os.ReadFile(p.privateKeyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read private key file '%s': %w", p.privateKeyFile, err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key file '%s': %w", p.privateKeyFile, err)
	}

	now := p.now()
	claims := jwt.MapClaims{
		"iss": p.clientID,
		"sub": p.username,
		"aud": p.audienceURL,
		"exp": now.Add(assertionLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT assertion: %w", err)
	}
	return signed, nil
}
