package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rickgao/podsync/internal/model"
)

func messagesPath(channelID string) string {
	return "/channels/" + url.PathEscape(channelID) + "/messages"
}

func messagePath(channelID, messageID string) string {
	return messagesPath(channelID) + "/" + url.PathEscape(messageID)
}

// ListMessages fetches one page of channel history.
func (c *Client) ListMessages(ctx context.Context, channelID string, params ListMessagesParams) (*MessagePage, error) {
	query := url.Values{}
	if params.Before != "" {
		query.Set("before", params.Before)
	}
	if params.After != "" {
		query.Set("after", params.After)
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var page MessagePage
	if err := c.get(ctx, messagesPath(channelID), query, &page); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &page, nil
}

// CreateMessage posts a new message.
func (c *Client) CreateMessage(ctx context.Context, channelID string, req CreateMessageRequest) (*model.Message, error) {
	var msg model.Message
	if err := c.send(ctx, http.MethodPost, messagesPath(channelID), req, &msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &msg, nil
}

// EditMessage replaces a message's content.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) (*model.Message, error) {
	var msg model.Message
	if err := c.send(ctx, http.MethodPatch, messagePath(channelID, messageID), editMessageRequest{Content: content}, &msg); err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	return &msg, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.send(ctx, http.MethodDelete, messagePath(channelID, messageID), nil, nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func reactionPath(channelID, messageID, emoji string) string {
	return messagePath(channelID, messageID) + "/reactions/" + url.PathEscape(emoji) + "/@me"
}

// AddReaction reacts to a message as the current user.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := c.send(ctx, http.MethodPut, reactionPath(channelID, messageID, emoji), nil, nil); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// RemoveReaction removes the current user's reaction.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := c.send(ctx, http.MethodDelete, reactionPath(channelID, messageID, emoji), nil, nil); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}
