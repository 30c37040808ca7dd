package model

import "encoding/json"

// Gateway dispatch event names.
const (
	EventReady                 = "READY"
	EventMessageCreate         = "MESSAGE_CREATE"
	EventMessageUpdate         = "MESSAGE_UPDATE"
	EventMessageDelete         = "MESSAGE_DELETE"
	EventMessageReactionAdd    = "MESSAGE_REACTION_ADD"
	EventMessageReactionRemove = "MESSAGE_REACTION_REMOVE"
	EventChannelCreate         = "CHANNEL_CREATE"
	EventChannelUpdate         = "CHANNEL_UPDATE"
	EventChannelDelete         = "CHANNEL_DELETE"
	EventCommunityUpdate       = "COMMUNITY_UPDATE"
	EventMemberJoin            = "MEMBER_JOIN"
	EventMemberLeave           = "MEMBER_LEAVE"
	EventMemberUpdate          = "MEMBER_UPDATE"
	EventTypingStart           = "TYPING_START"
	EventChannelPinsUpdate     = "CHANNEL_PINS_UPDATE"
	EventPresenceUpdate        = "PRESENCE_UPDATE"
)

// Dispatch is one inbound DISPATCH frame.
type Dispatch struct {
	Event string
	Seq   int64
	Data  json.RawMessage
}

// Ready is the READY snapshot delivered after IDENTIFY.
type Ready struct {
	SessionID         string           `json:"session_id"`
	User              User             `json:"user"`
	Communities       []ReadyCommunity `json:"communities"`
	Presences         []Presence       `json:"presences,omitempty"`
	HeartbeatInterval int64            `json:"heartbeat_interval"` // milliseconds
}

// ReadyCommunity is a community with its channels and roles embedded.
type ReadyCommunity struct {
	Community
	Channels []Channel `json:"channels"`
	Roles    []Role    `json:"roles"`
}

// MessageDeleteEvent is the MESSAGE_DELETE payload.
type MessageDeleteEvent struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// ReactionEvent is the MESSAGE_REACTION_ADD / MESSAGE_REACTION_REMOVE payload.
type ReactionEvent struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// ChannelDeleteEvent is the CHANNEL_DELETE payload.
type ChannelDeleteEvent struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
}

// MemberLeaveEvent is the MEMBER_LEAVE payload.
type MemberLeaveEvent struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
}

// TypingStartEvent is the TYPING_START payload.
type TypingStartEvent struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds, informational
}

// ChannelPinsUpdateEvent is the CHANNEL_PINS_UPDATE payload.
type ChannelPinsUpdateEvent struct {
	ChannelID string `json:"channel_id"`
}
