// Package verify fetches bot-verification tokens from the verification
// collaborator. A token must be available before any checkout submission;
// "not initialized" and "verification failed" are distinct, user-facing
// conditions.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotInitialized indicates the provider was never configured with an
	// endpoint. Submissions must not be attempted in this state.
	ErrNotInitialized = errors.New("verification provider not initialized")

	// ErrVerificationFailed indicates the provider was reachable but did not
	// issue a token.
	ErrVerificationFailed = errors.New("verification failed")
)

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Provider fetches and caches short-lived action tokens. Safe for concurrent
// use.
type Provider struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedToken
	now   func() time.Time
}

// NewProvider creates a provider for the given endpoint. An empty endpoint
// yields a provider that reports ErrNotInitialized on every request, so the
// caller can surface the distinct "not initialized" condition.
func NewProvider(endpoint string, timeout time.Duration, logger *slog.Logger) *Provider {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "verify_provider")),
		cache:      make(map[string]cachedToken),
		now:        time.Now,
	}
}

// Token returns a verification token for the action, reusing a cached one
// while it is still fresh.
func (p *Provider) Token(ctx context.Context, action string) (string, error) {
	if p == nil || p.endpoint == "" {
		return "", ErrNotInitialized
	}

	p.mu.Lock()
	if cached, ok := p.cache[action]; ok && p.now().Before(cached.expiresAt) {
		p.mu.Unlock()
		return cached.token, nil
	}
	p.mu.Unlock()

	token, ttl, err := p.fetch(ctx, action)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cache[action] = cachedToken{token: token, expiresAt: p.now().Add(ttl)}
	p.mu.Unlock()
	return token, nil
}

// Invalidate drops the cached token for an action, e.g. after the backend
// rejected it.
func (p *Provider) Invalidate(action string) {
	p.mu.Lock()
	delete(p.cache, action)
	p.mu.Unlock()
}

func (p *Provider) fetch(ctx context.Context, action string) (string, time.Duration, error) {
	body := strings.NewReader(fmt.Sprintf(`{"action":%q}`, action))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/tokens", body)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.WarnContext(ctx, "token fetch failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return "", 0, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: provider returned status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if tr.Token == "" {
		return "", 0, fmt.Errorf("%w: empty token", ErrVerificationFailed)
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	// Refresh slightly early so a token is never presented right at expiry.
	if ttl > 10*time.Second {
		ttl -= 5 * time.Second
	}
	return tr.Token, ttl, nil
}
