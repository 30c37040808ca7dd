package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/podsync/internal/model"
)

// ListCommunities returns the communities the current user has joined.
func (c *Client) ListCommunities(ctx context.Context) ([]model.Community, error) {
	var resp communitiesResponse
	if err := c.get(ctx, "/communities", nil, &resp); err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return resp.Communities, nil
}

// ListChannels returns a community's channels.
func (c *Client) ListChannels(ctx context.Context, communityID string) ([]model.Channel, error) {
	var resp channelsResponse
	if err := c.get(ctx, "/communities/"+url.PathEscape(communityID)+"/channels", nil, &resp); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return resp.Channels, nil
}

// CreateChannel creates a channel in a community.
func (c *Client) CreateChannel(ctx context.Context, communityID string, req CreateChannelRequest) (*model.Channel, error) {
	var ch model.Channel
	if err := c.send(ctx, http.MethodPost, "/communities/"+url.PathEscape(communityID)+"/channels", req, &ch); err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return &ch, nil
}

// ListMembers returns a community's members.
func (c *Client) ListMembers(ctx context.Context, communityID string) ([]model.Member, error) {
	var resp membersResponse
	if err := c.get(ctx, "/communities/"+url.PathEscape(communityID)+"/members", nil, &resp); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return resp.Members, nil
}
