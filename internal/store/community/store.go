package community

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/model"
)

// ErrUnknownCommunity is returned when a community is not in the store.
var ErrUnknownCommunity = errors.New("unknown community")

// API is the subset of the pod REST client the store uses.
type API interface {
	ListCommunities(ctx context.Context) ([]model.Community, error)
	ListChannels(ctx context.Context, communityID string) ([]model.Channel, error)
	CreateChannel(ctx context.Context, communityID string, req api.CreateChannelRequest) (*model.Channel, error)
	ListMembers(ctx context.Context, communityID string) ([]model.Member, error)
}

// Deps are the per-pod accessors the store needs.
type Deps struct {
	Client func(pod string) (API, error)
}

// ChangeKind identifies what part of a community changed.
type ChangeKind string

const (
	ChangeCommunity ChangeKind = "community"
	ChangeChannels  ChangeKind = "channels"
	ChangeRoles     ChangeKind = "roles"
	ChangeMembers   ChangeKind = "members"
)

// Change is published after every mutation.
type Change struct {
	Pod         string
	CommunityID string
	Kind        ChangeKind
}

type community struct {
	info          model.Community
	channels      []model.Channel
	roles         []model.Role
	members       map[string]model.Member // user id -> member
	membersLoaded bool
}

// Store is the community store. All methods are safe for concurrent use.
type Store struct {
	deps   Deps
	logger *slog.Logger

	mu          sync.RWMutex
	communities map[model.Key]*community
	changes     chan Change
}

// New creates a community store.
func New(deps Deps, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		deps:        deps,
		logger:      logger,
		communities: make(map[model.Key]*community),
		changes:     make(chan Change, 256),
	}
}

// Changes returns the change feed. The channel is never closed.
func (s *Store) Changes() <-chan Change {
	return s.changes
}

// notify publishes a change without blocking.
func (s *Store) notify(c Change) {
	select {
	case s.changes <- c:
	default:
		s.logger.Debug("change feed full, dropping", "pod", c.Pod, "community", c.CommunityID, "kind", c.Kind)
	}
}

// Hydrate applies the communities of a READY snapshot. Snapshot fields win
// over local state; channel and role lists are replaced. Known members are
// kept.
func (s *Store) Hydrate(pod string, snapshot []model.ReadyCommunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rc := range snapshot {
		c := s.upsertLocked(pod, rc.Community)
		c.channels = sortedChannels(rc.Channels)
		c.roles = sortedRoles(rc.Roles)
		s.notify(Change{Pod: pod, CommunityID: rc.ID, Kind: ChangeCommunity})
	}
}

// upsertLocked replaces the community fields, creating the entry if needed.
func (s *Store) upsertLocked(pod string, info model.Community) *community {
	key := model.CommunityKey(pod, info.ID)
	c := s.communities[key]
	if c == nil {
		c = &community{members: make(map[string]model.Member)}
		s.communities[key] = c
	}
	info.MemberCount = max(info.MemberCount, 0)
	c.info = info
	return c
}

func (s *Store) lookupLocked(pod, communityID string) *community {
	return s.communities[model.CommunityKey(pod, communityID)]
}

// Communities returns the communities of pod, sorted by id.
func (s *Store) Communities(pod string) []model.Community {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Community
	for key, c := range s.communities {
		if key.BelongsTo(pod) {
			out = append(out, c.info)
		}
	}
	slices.SortFunc(out, func(a, b model.Community) int { return model.CompareIDs(a.ID, b.ID) })
	return out
}

// Community returns one community.
func (s *Store) Community(pod, communityID string) (model.Community, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.lookupLocked(pod, communityID)
	if c == nil {
		return model.Community{}, false
	}
	return c.info, true
}

// Channels returns a community's channels in display order.
func (s *Store) Channels(pod, communityID string) []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.lookupLocked(pod, communityID); c != nil {
		return slices.Clone(c.channels)
	}
	return nil
}

// TextChannels returns every text channel on pod across communities.
func (s *Store) TextChannels(pod string) []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Channel
	for key, c := range s.communities {
		if !key.BelongsTo(pod) {
			continue
		}
		for _, ch := range c.channels {
			if ch.Type == model.ChannelText || ch.Type == "" {
				out = append(out, ch)
			}
		}
	}
	slices.SortFunc(out, func(a, b model.Channel) int { return model.CompareIDs(a.ID, b.ID) })
	return out
}

// Roles returns a community's roles in display order.
func (s *Store) Roles(pod, communityID string) []model.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.lookupLocked(pod, communityID); c != nil {
		return slices.Clone(c.roles)
	}
	return nil
}

// Members returns the known members of a community sorted by user id. The
// second result reports whether the full roster has been fetched.
func (s *Store) Members(pod, communityID string) ([]model.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.lookupLocked(pod, communityID)
	if c == nil {
		return nil, false
	}
	out := make([]model.Member, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b model.Member) int { return model.CompareIDs(a.User.ID, b.User.ID) })
	return out, c.membersLoaded
}

// EvictPod drops every community of pod.
func (s *Store) EvictPod(pod string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.communities {
		if key.BelongsTo(pod) {
			delete(s.communities, key)
		}
	}
}

func sortedChannels(chs []model.Channel) []model.Channel {
	out := slices.Clone(chs)
	model.SortChannels(out)
	return out
}

func sortedRoles(roles []model.Role) []model.Role {
	out := slices.Clone(roles)
	model.SortRoles(out)
	return out
}
