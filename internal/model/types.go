package model

import "time"

// -----------------------------------------------------------------------------
// Users & Presence
// -----------------------------------------------------------------------------

// User is a chat account as seen by one pod.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// PresenceStatus is a user's availability. Offline is never stored.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceIdle    PresenceStatus = "idle"
	PresenceDND     PresenceStatus = "dnd"
	PresenceOffline PresenceStatus = "offline"
)

// Presence pairs a user with a status.
type Presence struct {
	UserID string         `json:"user_id"`
	Status PresenceStatus `json:"status"`
}

// -----------------------------------------------------------------------------
// Communities, Channels, Roles, Members
// -----------------------------------------------------------------------------

// Community is a group of channels hosted on a pod.
type Community struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	MemberCount int    `json:"member_count"`
}

// CommunityPatch carries a partial community update. Nil fields are left untouched.
type CommunityPatch struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IconURL     *string `json:"icon_url,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	MemberCount *int    `json:"member_count,omitempty"`
}

// Apply merges the non-nil fields of p onto c.
func (p CommunityPatch) Apply(c *Community) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.IconURL != nil {
		c.IconURL = *p.IconURL
	}
	if p.OwnerID != nil {
		c.OwnerID = *p.OwnerID
	}
	if p.MemberCount != nil {
		c.MemberCount = max(*p.MemberCount, 0)
	}
}

// ChannelType distinguishes text from voice/category channels.
type ChannelType string

const (
	ChannelText     ChannelType = "text"
	ChannelVoice    ChannelType = "voice"
	ChannelCategory ChannelType = "category"
)

// Channel belongs to exactly one community.
type Channel struct {
	ID          string      `json:"id"`
	CommunityID string      `json:"community_id"`
	Name        string      `json:"name"`
	Type        ChannelType `json:"type"`
	Topic       string      `json:"topic,omitempty"`
	Position    int         `json:"position"`
	ParentID    string      `json:"parent_id,omitempty"`
}

// Role is a named permission set inside a community.
type Role struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	Name        string `json:"name"`
	Color       int    `json:"color,omitempty"`
	Position    int    `json:"position"`
	Permissions int64  `json:"permissions,string,omitempty"`
}

// Member is a user's membership in a community.
type Member struct {
	CommunityID string    `json:"community_id"`
	User        User      `json:"user"`
	Nickname    string    `json:"nickname,omitempty"`
	RoleIDs     []string  `json:"roles,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// -----------------------------------------------------------------------------
// Messages & Reactions
// -----------------------------------------------------------------------------

// Message is a server-confirmed chat message.
type Message struct {
	ID        string            `json:"id"`
	ChannelID string            `json:"channel_id"`
	Author    User              `json:"author"`
	Content   string            `json:"content"`
	Nonce     string            `json:"nonce,omitempty"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	EditedAt  *time.Time        `json:"edited_at,omitempty"`
	Pinned    bool              `json:"pinned,omitempty"`
	Reactions []ReactionSummary `json:"reactions,omitempty"`
}

// ReactionSummary is the per-emoji reaction state embedded in fetched messages.
type ReactionSummary struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Me    bool   `json:"me"`
}

// Reaction is one entry of a message's reaction aggregate.
type Reaction struct {
	Count int
	Me    bool
}

// PendingMessage is an optimistic local send awaiting server confirmation.
type PendingMessage struct {
	Nonce     string
	PodID     string
	ChannelID string
	AuthorID  string
	Content   string
	ReplyTo   string
	CreatedAt time.Time
}
