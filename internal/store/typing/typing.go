// Package typing tracks who is typing in each channel.
//
// Entries expire after a fixed TTL unless refreshed by another
// TYPING_START from the same user. The current user is never tracked.
package typing

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rickgao/podsync/internal/model"
)

// Config holds typing store configuration.
type Config struct {
	TTL           time.Duration
	PruneInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:           8 * time.Second,
		PruneInterval: time.Second,
	}
}

// Entry is one user typing in a channel.
type Entry struct {
	UserID    string
	ExpiresAt time.Time
}

// Deps are the per-pod accessors the store needs.
type Deps struct {
	CurrentUser func(pod string) string
}

// Store is the typing store. All methods are safe for concurrent use.
type Store struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	channels map[model.Key]map[string]time.Time // user id -> expiry
	now      func() time.Time
}

// New creates a typing store.
func New(cfg Config, deps Deps, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = def.PruneInterval
	}

	return &Store{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		channels: make(map[model.Key]map[string]time.Time),
		now:      time.Now,
	}
}

// GatewayTypingStart applies a TYPING_START.
func (s *Store) GatewayTypingStart(pod string, ev model.TypingStartEvent) {
	if ev.UserID == "" {
		return
	}
	if s.deps.CurrentUser != nil && ev.UserID == s.deps.CurrentUser(pod) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.ChannelKey(pod, ev.ChannelID)
	users := s.channels[key]
	if users == nil {
		users = make(map[string]time.Time)
		s.channels[key] = users
	}
	users[ev.UserID] = s.now().Add(s.cfg.TTL)
}

// PruneExpired removes every entry whose expiry is not after now.
func (s *Store) PruneExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, users := range s.channels {
		for user, exp := range users {
			if !exp.After(now) {
				delete(users, user)
				removed++
			}
		}
		if len(users) == 0 {
			delete(s.channels, key)
		}
	}
	return removed
}

// Typing returns the users typing in a channel, soonest to expire first.
func (s *Store) Typing(pod, channelID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.channels[model.ChannelKey(pod, channelID)]
	out := make([]Entry, 0, len(users))
	for user, exp := range users {
		out = append(out, Entry{UserID: user, ExpiresAt: exp})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return model.CompareIDs(a.UserID, b.UserID)
	})
	return out
}

// Run prunes expired entries every PruneInterval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneExpired(s.now()); n > 0 {
				s.logger.Debug("pruned typing entries", "count", n)
			}
		}
	}
}

// EvictPod drops every typing entry of pod.
func (s *Store) EvictPod(pod string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.channels {
		if key.BelongsTo(pod) {
			delete(s.channels, key)
		}
	}
}
