package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Login exchanges a home-service assertion for pod-scoped tokens.
func (c *Client) Login(ctx context.Context, assertion string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", loginRequest{Assertion: assertion}, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &resp, nil
}

// Refresh trades a refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return &resp, nil
}

func (r *TokenResponse) validate() error {
	if r.AccessToken == "" {
		return errors.New("response missing access_token")
	}
	if r.WSURL == "" || r.WSTicket == "" {
		return errors.New("response missing ws_url or ws_ticket")
	}
	return nil
}

// HomeClient talks to the home service that issues cross-service assertions.
type HomeClient struct {
	c *Client
}

// NewHomeClient creates a home service client authenticated with a static bearer token.
func NewHomeClient(baseURL, token string, opts ...ClientOption) *HomeClient {
	var ts oauth2.TokenSource
	if token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	}
	return &HomeClient{c: NewClient(baseURL, ts, opts...)}
}

// RequestAssertion asks the home service for an assertion scoped to podID.
func (h *HomeClient) RequestAssertion(ctx context.Context, podID string) (*Assertion, error) {
	var resp Assertion
	if err := h.c.send(ctx, http.MethodPost, "/federation/assertion", assertionRequest{PodID: podID}, &resp); err != nil {
		return nil, fmt.Errorf("request assertion: %w", err)
	}
	if resp.Assertion == "" {
		return nil, errors.New("request assertion: empty assertion")
	}
	return &resp, nil
}
