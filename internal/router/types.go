package router

import (
	"time"

	"github.com/rickgao/podsync/internal/model"
)

// Config holds configuration for the dispatch router.
type Config struct {
	Archive           bool // copy message events to the archive queue
	ArchiveQueueSize  int  // initial capacity. Default: 1000
	ArchiveQueueLimit int  // capacity at which the oldest events are dropped. Default: 16x size
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ArchiveQueueSize:  1000,
		ArchiveQueueLimit: 16000,
	}
}

// MessageStore receives message and reaction events.
type MessageStore interface {
	GatewayMessageCreate(pod string, msg model.Message)
	GatewayMessageUpdate(pod string, msg model.Message)
	GatewayMessageDelete(pod string, ev model.MessageDeleteEvent)
	GatewayReactionAdd(pod string, ev model.ReactionEvent)
	GatewayReactionRemove(pod string, ev model.ReactionEvent)
}

// CommunityStore receives READY snapshots and community, channel and
// member events.
type CommunityStore interface {
	Hydrate(pod string, snapshot []model.ReadyCommunity)
	GatewayChannelCreate(pod string, ch model.Channel)
	GatewayChannelUpdate(pod string, ch model.Channel)
	GatewayChannelDelete(pod string, ev model.ChannelDeleteEvent)
	GatewayCommunityUpdate(pod string, patch model.CommunityPatch)
	GatewayMemberJoin(pod string, m model.Member)
	GatewayMemberLeave(pod string, ev model.MemberLeaveEvent)
	GatewayMemberUpdate(pod string, m model.Member)
}

// TypingStore receives typing events.
type TypingStore interface {
	GatewayTypingStart(pod string, ev model.TypingStartEvent)
}

// PinStore receives pin invalidations.
type PinStore interface {
	GatewayChannelPinsUpdate(pod string, ev model.ChannelPinsUpdateEvent)
}

// PresenceStore receives READY presences and presence events.
type PresenceStore interface {
	Seed(pod string, presences []model.Presence)
	GatewayPresenceUpdate(pod string, p model.Presence)
}

// Stores are the routing targets. Every field is required.
type Stores struct {
	Messages    MessageStore
	Communities CommunityStore
	Typing      TypingStore
	Pins        PinStore
	Presence    PresenceStore
}

// ArchiveKind is the kind of an archived message event.
type ArchiveKind string

const (
	ArchiveCreate ArchiveKind = "create"
	ArchiveUpdate ArchiveKind = "update"
	ArchiveDelete ArchiveKind = "delete"
)

// ArchiveEvent is a confirmed message event copied for the archive writer.
// Message is set for create and update; MessageID and ChannelID always.
type ArchiveEvent struct {
	Kind       ArchiveKind
	Pod        string
	MessageID  string
	ChannelID  string
	Message    *model.Message
	ReceivedAt time.Time
}

// Stats contains runtime statistics.
type Stats struct {
	Received    int64
	Routed      int64
	ParseErrors int64
	Unknown     int64
	Archive     QueueStats
}
