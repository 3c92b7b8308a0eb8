package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// tokenSlack renews tokens slightly before their stated expiry so an almost
// expired token is never sent upstream.
const tokenSlack = time.Minute

// TokenProviderConfig holds the endpoints and credentials of a
// client-credentials token flow (Monta partner API style: POST credentials
// for an access/refresh token pair, POST the refresh token to renew).
type TokenProviderConfig struct {
	TokenURL     string
	RefreshURL   string
	ClientID     string
	ClientSecret string
}

// TokenProvider obtains and caches upstream bearer tokens, refreshing them
// before expiry. Safe for concurrent use.
type TokenProvider struct {
	cfg    TokenProviderConfig
	client *http.Client
	log    *zap.Logger

	mu             sync.Mutex
	accessToken    string
	refreshToken   string
	accessExpires  time.Time
	refreshExpires time.Time
}

// NewTokenProvider returns a provider using the given HTTP client (a default
// one with a 30s timeout when nil).
func NewTokenProvider(cfg TokenProviderConfig, client *http.Client, log *zap.Logger) *TokenProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenProvider{cfg: cfg, client: client, log: log}
}

// AccessToken returns a valid access token, authenticating or refreshing as
// needed.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(tokenSlack)
	switch {
	case p.refreshToken == "" || !p.refreshExpires.After(deadline):
		return p.authenticate(ctx)
	case !p.accessExpires.After(deadline):
		token, err := p.refresh(ctx)
		if err == nil {
			return token, nil
		}
		p.log.Warn("token refresh failed, re-authenticating", zap.Error(err))
		return p.authenticate(ctx)
	}
	return p.accessToken, nil
}

type tokenResponse struct {
	AccessToken                string `json:"accessToken"`
	RefreshToken               string `json:"refreshToken"`
	AccessTokenExpirationDate  string `json:"accessTokenExpirationDate"`
	RefreshTokenExpirationDate string `json:"refreshTokenExpirationDate"`
}

func (p *TokenProvider) authenticate(ctx context.Context) (string, error) {
	resp, err := p.post(ctx, p.cfg.TokenURL, map[string]string{
		"clientId":     p.cfg.ClientID,
		"clientSecret": p.cfg.ClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	p.apply(resp)
	return p.accessToken, nil
}

func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	resp, err := p.post(ctx, p.cfg.RefreshURL, map[string]string{
		"refreshToken": p.refreshToken,
	})
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	p.apply(resp)
	return p.accessToken, nil
}

func (p *TokenProvider) post(ctx context.Context, url string, payload map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response without access token")
	}
	return &tokens, nil
}

func (p *TokenProvider) apply(resp *tokenResponse) {
	p.accessToken = resp.AccessToken
	p.refreshToken = resp.RefreshToken
	p.accessExpires = tokenExpiry(resp.AccessTokenExpirationDate, resp.AccessToken, 5*time.Minute)
	p.refreshExpires = tokenExpiry(resp.RefreshTokenExpirationDate, resp.RefreshToken, 24*time.Hour)
}

// tokenExpiry determines when a token expires: from the explicit expiration
// date when the API sends one, from the JWT exp claim otherwise, or after a
// conservative fallback lifetime when neither is available.
func tokenExpiry(expirationDate, token string, fallback time.Duration) time.Time {
	if expirationDate != "" {
		if at, err := time.Parse(time.RFC3339, expirationDate); err == nil {
			return at
		}
	}
	if at, ok := jwtExpiry(token); ok {
		return at
	}
	return time.Now().Add(fallback)
}

func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	// Expiry only; verifying the signature is the issuer's concern, we are
	// the party the token was issued to.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
