// Package auth acquires and refreshes pod-scoped credentials.
//
// A pod session is established in two steps: the home service issues a
// short-lived assertion for the pod, and the pod exchanges that assertion
// for an access/refresh token pair plus a gateway URL and ticket. Pod
// credentials are carried as *oauth2.Token with the gateway URL and ticket
// stored as token extras.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/rickgao/podsync/internal/api"
)

// Token extra keys.
const (
	ExtraWSURL    = "ws_url"
	ExtraWSTicket = "ws_ticket"
)

// ErrNoToken is returned by a Holder that has not been given a token yet.
var ErrNoToken = errors.New("auth: no token")

// AssertionIssuer issues cross-service assertions. Satisfied by *api.HomeClient.
type AssertionIssuer interface {
	RequestAssertion(ctx context.Context, podID string) (*api.Assertion, error)
}

// PodAuthenticator exchanges credentials with a pod. Satisfied by *api.Client.
type PodAuthenticator interface {
	Login(ctx context.Context, assertion string) (*api.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
}

// Exchanger runs the assertion exchange and pod login.
type Exchanger struct {
	issuer AssertionIssuer
	now    func() time.Time
}

// NewExchanger creates an Exchanger backed by the home service.
func NewExchanger(issuer AssertionIssuer) *Exchanger {
	return &Exchanger{issuer: issuer, now: time.Now}
}

// Acquire obtains fresh pod credentials.
func (e *Exchanger) Acquire(ctx context.Context, podID string, pod PodAuthenticator) (*oauth2.Token, error) {
	assertion, err := e.issuer.RequestAssertion(ctx, podID)
	if err != nil {
		return nil, fmt.Errorf("assertion for %s: %w", podID, err)
	}

	resp, err := pod.Login(ctx, assertion.Assertion)
	if err != nil {
		return nil, fmt.Errorf("pod login %s: %w", podID, err)
	}

	return TokenFromResponse(resp, e.now()), nil
}

// Refresh trades tok's refresh token for new credentials.
func (e *Exchanger) Refresh(ctx context.Context, pod PodAuthenticator, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	resp, err := pod.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		return nil, err
	}

	return TokenFromResponse(resp, e.now()), nil
}

// TokenFromResponse converts a pod token response to an oauth2.Token.
func TokenFromResponse(resp *api.TokenResponse, now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
	}
	if resp.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(map[string]any{
		ExtraWSURL:    resp.WSURL,
		ExtraWSTicket: resp.WSTicket,
	})
}

// WSURL returns the gateway URL carried by tok.
func WSURL(tok *oauth2.Token) string {
	return extraString(tok, ExtraWSURL)
}

// WSTicket returns the gateway ticket carried by tok.
func WSTicket(tok *oauth2.Token) string {
	return extraString(tok, ExtraWSTicket)
}

func extraString(tok *oauth2.Token, key string) string {
	if tok == nil {
		return ""
	}
	s, _ := tok.Extra(key).(string)
	return s
}

// Holder is a mutable oauth2.TokenSource. The session orchestrator swaps
// the token on refresh while REST clients keep reading from it.
type Holder struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

// Token implements oauth2.TokenSource.
func (h *Holder) Token() (*oauth2.Token, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.tok == nil {
		return nil, ErrNoToken
	}
	return h.tok, nil
}

// Set replaces the current token.
func (h *Holder) Set(tok *oauth2.Token) {
	h.mu.Lock()
	h.tok = tok
	h.mu.Unlock()
}

// Current returns the current token or nil.
func (h *Holder) Current() *oauth2.Token {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tok
}

// RefreshAt returns when a token should be refreshed: lead before expiry,
// or now if that moment has passed. The zero time means no refresh.
func RefreshAt(tok *oauth2.Token, lead time.Duration, now time.Time) time.Time {
	if tok == nil || tok.Expiry.IsZero() {
		return time.Time{}
	}
	at := tok.Expiry.Add(-lead)
	if at.Before(now) {
		return now
	}
	return at
}
