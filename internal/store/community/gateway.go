package community

import (
	"slices"

	"github.com/rickgao/podsync/internal/model"
)

// GatewayChannelCreate applies a CHANNEL_CREATE. A channel already in the
// list is replaced.
func (s *Store) GatewayChannelCreate(pod string, ch model.Channel) {
	s.putChannel(pod, ch)
}

// GatewayChannelUpdate applies a CHANNEL_UPDATE.
func (s *Store) GatewayChannelUpdate(pod string, ch model.Channel) {
	s.putChannel(pod, ch)
}

func (s *Store) putChannel(pod string, ch model.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, ch.CommunityID)
	if c == nil {
		s.logger.Debug("channel for unknown community", "pod", pod, "community", ch.CommunityID, "channel", ch.ID)
		return
	}
	c.channels = upsertChannel(c.channels, ch)
	s.notify(Change{Pod: pod, CommunityID: ch.CommunityID, Kind: ChangeChannels})
}

// upsertChannel replaces or appends ch and re-sorts the list.
func upsertChannel(chs []model.Channel, ch model.Channel) []model.Channel {
	if i := slices.IndexFunc(chs, func(c model.Channel) bool { return c.ID == ch.ID }); i >= 0 {
		chs[i] = ch
	} else {
		chs = append(chs, ch)
	}
	model.SortChannels(chs)
	return chs
}

// GatewayChannelDelete applies a CHANNEL_DELETE.
func (s *Store) GatewayChannelDelete(pod string, ev model.ChannelDeleteEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, ev.CommunityID)
	if c == nil {
		return
	}
	n := len(c.channels)
	c.channels = slices.DeleteFunc(c.channels, func(ch model.Channel) bool { return ch.ID == ev.ID })
	if len(c.channels) != n {
		s.notify(Change{Pod: pod, CommunityID: ev.CommunityID, Kind: ChangeChannels})
	}
}

// GatewayCommunityUpdate merges a COMMUNITY_UPDATE onto a known community.
// Updates for unknown communities are ignored.
func (s *Store) GatewayCommunityUpdate(pod string, patch model.CommunityPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, patch.ID)
	if c == nil {
		return
	}
	patch.Apply(&c.info)
	s.notify(Change{Pod: pod, CommunityID: patch.ID, Kind: ChangeCommunity})
}

// GatewayMemberJoin applies a MEMBER_JOIN. A join for a member already
// known is treated as an update.
func (s *Store) GatewayMemberJoin(pod string, m model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, m.CommunityID)
	if c == nil || m.User.ID == "" {
		return
	}
	if _, known := c.members[m.User.ID]; !known {
		c.info.MemberCount++
	}
	c.members[m.User.ID] = m
	s.notify(Change{Pod: pod, CommunityID: m.CommunityID, Kind: ChangeMembers})
}

// GatewayMemberLeave applies a MEMBER_LEAVE. When the roster is loaded,
// a leave for an unknown member is ignored; otherwise the count is
// decremented and floors at zero.
func (s *Store) GatewayMemberLeave(pod string, ev model.MemberLeaveEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, ev.CommunityID)
	if c == nil {
		return
	}
	_, known := c.members[ev.UserID]
	if !known && c.membersLoaded {
		return
	}
	delete(c.members, ev.UserID)
	c.info.MemberCount = max(c.info.MemberCount-1, 0)
	s.notify(Change{Pod: pod, CommunityID: ev.CommunityID, Kind: ChangeMembers})
}

// GatewayMemberUpdate applies a MEMBER_UPDATE to a known member.
func (s *Store) GatewayMemberUpdate(pod string, m model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, m.CommunityID)
	if c == nil {
		return
	}
	if _, known := c.members[m.User.ID]; !known {
		return
	}
	c.members[m.User.ID] = m
	s.notify(Change{Pod: pod, CommunityID: m.CommunityID, Kind: ChangeMembers})
}
