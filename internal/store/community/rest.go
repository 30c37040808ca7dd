package community

import (
	"context"
	"fmt"
	"slices"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/model"
)

// FetchCommunities loads the pod's communities. Fields of known
// communities are replaced; their channels, roles and members are kept.
func (s *Store) FetchCommunities(ctx context.Context, pod string) ([]model.Community, error) {
	client, err := s.deps.Client(pod)
	if err != nil {
		return nil, err
	}
	list, err := client.ListCommunities(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, info := range list {
		s.upsertLocked(pod, info)
		s.notify(Change{Pod: pod, CommunityID: info.ID, Kind: ChangeCommunity})
	}
	return list, nil
}

// FetchChannels replaces a known community's channel list.
func (s *Store) FetchChannels(ctx context.Context, pod, communityID string) ([]model.Channel, error) {
	client, err := s.deps.Client(pod)
	if err != nil {
		return nil, err
	}
	chs, err := client.ListChannels(ctx, communityID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookupLocked(pod, communityID)
	if c == nil {
		return nil, fmt.Errorf("fetch channels %s: %w", communityID, ErrUnknownCommunity)
	}
	c.channels = sortedChannels(chs)
	s.notify(Change{Pod: pod, CommunityID: communityID, Kind: ChangeChannels})
	return slices.Clone(c.channels), nil
}

// CreateChannel creates a channel and adds it to the list. The gateway
// echo of the same channel replaces it in place.
func (s *Store) CreateChannel(ctx context.Context, pod, communityID, name string, typ model.ChannelType) (*model.Channel, error) {
	client, err := s.deps.Client(pod)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		typ = model.ChannelText
	}
	ch, err := client.CreateChannel(ctx, communityID, api.CreateChannelRequest{Name: name, Type: typ})
	if err != nil {
		return nil, err
	}
	if ch.CommunityID == "" {
		ch.CommunityID = communityID
	}
	s.putChannel(pod, *ch)
	return ch, nil
}

// FetchMembers replaces a known community's roster.
func (s *Store) FetchMembers(ctx context.Context, pod, communityID string) ([]model.Member, error) {
	client, err := s.deps.Client(pod)
	if err != nil {
		return nil, err
	}
	list, err := client.ListMembers(ctx, communityID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	c := s.lookupLocked(pod, communityID)
	if c == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("fetch members %s: %w", communityID, ErrUnknownCommunity)
	}
	c.members = make(map[string]model.Member, len(list))
	for _, m := range list {
		if m.CommunityID == "" {
			m.CommunityID = communityID
		}
		c.members[m.User.ID] = m
	}
	c.membersLoaded = true
	s.notify(Change{Pod: pod, CommunityID: communityID, Kind: ChangeMembers})
	s.mu.Unlock()

	members, _ := s.Members(pod, communityID)
	return members, nil
}
