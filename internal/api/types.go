package api

import "github.com/rickgao/podsync/internal/model"

// ListMessagesParams selects a page of channel history. At most one of
// Before and After should be set.
type ListMessagesParams struct {
	Before string
	After  string
	Limit  int
}

// MessagePage is one page of channel history.
type MessagePage struct {
	Messages []model.Message `json:"messages"`
	HasMore  bool            `json:"has_more"`
}

// CreateMessageRequest is the body of POST /channels/{id}/messages.
type CreateMessageRequest struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type pinsResponse struct {
	Pins []model.Message `json:"pins"`
}

type communitiesResponse struct {
	Communities []model.Community `json:"communities"`
}

type channelsResponse struct {
	Channels []model.Channel `json:"channels"`
}

type membersResponse struct {
	Members []model.Member `json:"members"`
}

// CreateChannelRequest is the body of POST /communities/{id}/channels.
type CreateChannelRequest struct {
	Name string            `json:"name"`
	Type model.ChannelType `json:"type"`
}

// TokenResponse is returned by pod login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	WSURL        string `json:"ws_url"`
	WSTicket     string `json:"ws_ticket"`
}

type loginRequest struct {
	Assertion string `json:"assertion"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Assertion is a short-lived cross-service credential issued by the home service.
type Assertion struct {
	Assertion string `json:"assertion"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

type assertionRequest struct {
	PodID string `json:"pod_id"`
}
