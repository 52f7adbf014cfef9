// Package session holds the bearer credential used by the document client and
// refreshes it against the auth service.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"neoflow/internal/domain"
	"neoflow/internal/port"
)

// DefaultRefreshLeeway is how long before expiry the access token is
// refreshed proactively.
const DefaultRefreshLeeway = 30 * time.Second

// RefreshTimeout bounds one token exchange. The exchange outlives the caller
// that started it so concurrent waiters are not failed by its cancellation.
const RefreshTimeout = 30 * time.Second

// Config configures a TokenSession.
type Config struct {
	AuthURL      string
	APIKey       string
	AccessToken  string
	RefreshToken string
	// RefreshLeeway defaults to DefaultRefreshLeeway. Negative disables
	// proactive refresh.
	RefreshLeeway time.Duration
	HTTPClient    *http.Client
	// OnSignedOut fires when a signed-in session is torn down.
	OnSignedOut func()
}

// TokenSession implements port.SessionManager for a token pair issued by the
// auth service.
type TokenSession struct {
	mu      sync.RWMutex
	access  string
	refresh string

	authURL     string
	apiKey      string
	leeway      time.Duration
	http        *http.Client
	onSignedOut func()
	now         func() time.Time
	group       singleflight.Group
}

var _ port.SessionManager = (*TokenSession)(nil)

// New creates a TokenSession.
func New(cfg Config) *TokenSession {
	leeway := cfg.RefreshLeeway
	if leeway == 0 {
		leeway = DefaultRefreshLeeway
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenSession{
		access:      cfg.AccessToken,
		refresh:     cfg.RefreshToken,
		authURL:     strings.TrimRight(cfg.AuthURL, "/"),
		apiKey:      cfg.APIKey,
		leeway:      leeway,
		http:        client,
		onSignedOut: cfg.OnSignedOut,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *TokenSession) SetClock(now func() time.Time) {
	s.now = now
}

// SignedIn reports whether the session holds any credential.
func (s *TokenSession) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != "" || s.refresh != ""
}

// Tokens returns the current token pair.
func (s *TokenSession) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

// AccessToken returns the current access token, refreshing it first when it
// expires within the leeway. A failed proactive refresh is logged and the
// current token returned; the request path handles the rejection.
func (s *TokenSession) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	access, refresh := s.access, s.refresh
	s.mu.RUnlock()

	if access == "" || refresh == "" || s.leeway < 0 {
		return access, nil
	}
	exp, ok := ExpiresAt(access)
	if !ok || s.now().Add(s.leeway).Before(exp) {
		return access, nil
	}
	if err := s.Refresh(ctx); err != nil {
		log.Printf("session.AccessToken: proactive refresh failed: %v", err)
		return access, nil
	}
	access, _ = s.Tokens()
	return access, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh exchanges the refresh token for a new pair. Concurrent calls share
// one request. A caller whose ctx ends stops waiting and gets ctx.Err(); the
// shared exchange keeps running for the others.
func (s *TokenSession) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.refresh
	s.mu.RUnlock()
	if refresh == "" {
		return fmt.Errorf("refreshing session: %w", domain.ErrSessionExpired)
	}

	ch := s.group.DoChan("refresh", func() (any, error) {
		xctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		pair, err := s.exchange(xctx, refresh)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.access = pair.AccessToken
		if pair.RefreshToken != "" {
			s.refresh = pair.RefreshToken
		}
		s.mu.Unlock()
		log.Printf("session.Refresh: access token renewed (expires in %ds)", pair.ExpiresIn)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TokenSession) exchange(ctx context.Context, refresh string) (*tokenResponse, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refresh})
	if err != nil {
		return nil, fmt.Errorf("marshaling refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL+"/token?grant_type=refresh_token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling auth service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("refresh rejected (status %d): %s", resp.StatusCode, authErrorMessage(respBody))
	}

	var pair tokenResponse
	if err := json.Unmarshal(respBody, &pair); err != nil {
		return nil, fmt.Errorf("unmarshaling refresh response: %w", err)
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("refresh response carried no access token")
	}
	return &pair, nil
}

func authErrorMessage(body []byte) string {
	var e struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.ErrorDescription != "":
			return e.ErrorDescription
		case e.Msg != "":
			return e.Msg
		case e.Error != "":
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// SignOut clears both tokens and fires the signed-out hook once.
func (s *TokenSession) SignOut(_ context.Context) error {
	s.mu.Lock()
	wasSignedIn := s.access != "" || s.refresh != ""
	s.access, s.refresh = "", ""
	s.mu.Unlock()

	if wasSignedIn {
		log.Printf("session.SignOut: session cleared")
		if s.onSignedOut != nil {
			s.onSignedOut()
		}
	}
	return nil
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature. The
// server is the only party that verifies tokens.
func ExpiresAt(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
