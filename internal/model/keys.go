package model

// Key scopes an entity id to the pod that owns it. Every store map is keyed
// by Key so that evicting a pod is a single field comparison and ids from
// different pods can never collide.
type Key struct {
	Pod string
	ID  string
}

// ChannelKey keys per-channel state (message windows, pins, typing).
func ChannelKey(pod, channelID string) Key { return Key{Pod: pod, ID: "channel:" + channelID} }

// MessageKey keys per-message state (reaction aggregates).
func MessageKey(pod, messageID string) Key { return Key{Pod: pod, ID: "message:" + messageID} }

// UserKey keys per-user state (presence).
func UserKey(pod, userID string) Key { return Key{Pod: pod, ID: "user:" + userID} }

// CommunityKey keys per-community state (metadata, channels, roles, members).
func CommunityKey(pod, communityID string) Key { return Key{Pod: pod, ID: "community:" + communityID} }

// BelongsTo reports whether k is owned by pod.
func (k Key) BelongsTo(pod string) bool { return k.Pod == pod }

func (k Key) String() string { return k.Pod + "/" + k.ID }
