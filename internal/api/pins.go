package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/podsync/internal/model"
)

func pinsPath(channelID string) string {
	return "/channels/" + url.PathEscape(channelID) + "/pins"
}

// ListPins returns the pinned messages of a channel.
func (c *Client) ListPins(ctx context.Context, channelID string) ([]model.Message, error) {
	var resp pinsResponse
	if err := c.get(ctx, pinsPath(channelID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	return resp.Pins, nil
}

// PinMessage pins a message.
func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.send(ctx, http.MethodPut, pinsPath(channelID)+"/"+url.PathEscape(messageID), nil, nil); err != nil {
		return fmt.Errorf("pin message: %w", err)
	}
	return nil
}

// UnpinMessage unpins a message.
func (c *Client) UnpinMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.send(ctx, http.MethodDelete, pinsPath(channelID)+"/"+url.PathEscape(messageID), nil, nil); err != nil {
		return fmt.Errorf("unpin message: %w", err)
	}
	return nil
}
