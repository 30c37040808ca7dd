// Package presence tracks user availability per pod. Offline users are
// not stored: absence means offline.
package presence

import (
	"slices"
	"sync"

	"github.com/rickgao/podsync/internal/model"
)

// Store is the presence store. All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	statuses map[model.Key]model.PresenceStatus
	users    map[model.Key]string // key -> user id, for listing
}

// New creates an empty presence store.
func New() *Store {
	return &Store{
		statuses: make(map[model.Key]model.PresenceStatus),
		users:    make(map[model.Key]string),
	}
}

// Seed replaces the pod's presence with a READY snapshot.
func (s *Store) Seed(pod string, presences []model.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked(pod)
	for _, p := range presences {
		s.setLocked(pod, p)
	}
}

// GatewayPresenceUpdate applies a PRESENCE_UPDATE.
func (s *Store) GatewayPresenceUpdate(pod string, p model.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(pod, p)
}

func (s *Store) setLocked(pod string, p model.Presence) {
	if p.UserID == "" {
		return
	}
	key := model.UserKey(pod, p.UserID)
	if p.Status == "" || p.Status == model.PresenceOffline {
		delete(s.statuses, key)
		delete(s.users, key)
		return
	}
	s.statuses[key] = p.Status
	s.users[key] = p.UserID
}

// Status returns a user's status, PresenceOffline if unknown.
func (s *Store) Status(pod, userID string) model.PresenceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.statuses[model.UserKey(pod, userID)]; ok {
		return st
	}
	return model.PresenceOffline
}

// Online returns every user on pod that is not offline, sorted by user id.
func (s *Store) Online(pod string) []model.Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Presence
	for key, st := range s.statuses {
		if key.BelongsTo(pod) {
			out = append(out, model.Presence{UserID: s.users[key], Status: st})
		}
	}
	slices.SortFunc(out, func(a, b model.Presence) int { return model.CompareIDs(a.UserID, b.UserID) })
	return out
}

// EvictPod drops every presence entry of pod.
func (s *Store) EvictPod(pod string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(pod)
}

func (s *Store) evictLocked(pod string) {
	for key := range s.statuses {
		if key.BelongsTo(pod) {
			delete(s.statuses, key)
			delete(s.users, key)
		}
	}
}
