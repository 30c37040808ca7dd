// Package pins caches the pinned messages of each channel.
//
// The cache is explicit: a channel's list is loaded with FetchPins and
// dropped whenever the gateway signals CHANNEL_PINS_UPDATE. Pin and unpin
// are applied optimistically and undone when the request fails.
package pins

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/podsync/internal/model"
)

// API is the subset of the pod REST client the store uses.
type API interface {
	ListPins(ctx context.Context, channelID string) ([]model.Message, error)
	PinMessage(ctx context.Context, channelID, messageID string) error
	UnpinMessage(ctx context.Context, channelID, messageID string) error
}

// Deps are the per-pod accessors the store needs.
type Deps struct {
	Client func(pod string) (API, error)
}

type entry struct {
	msgs    []model.Message
	loading bool
	loaded  bool
}

// Store is the pin cache. All methods are safe for concurrent use.
type Store struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	entries map[model.Key]*entry
	flights singleflight.Group
}

// New creates a pin store.
func New(deps Deps, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		deps:    deps,
		logger:  logger,
		entries: make(map[model.Key]*entry),
	}
}

// Pins returns the cached pins of a channel, most recently pinned first.
// The second result is false when nothing is cached.
func (s *Store) Pins(pod, channelID string) ([]model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[model.ChannelKey(pod, channelID)]
	if e == nil || !e.loaded {
		return nil, false
	}
	return slices.Clone(e.msgs), true
}

// Loading reports whether a fetch for the channel is in flight.
func (s *Store) Loading(pod, channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[model.ChannelKey(pod, channelID)]
	return e != nil && e.loading
}

// FetchPins loads the channel's pins, replacing the cached list. Concurrent
// calls for the same channel share one request.
func (s *Store) FetchPins(ctx context.Context, pod, channelID string) error {
	key := model.ChannelKey(pod, channelID)
	_, err, _ := s.flights.Do(key.String(), func() (any, error) {
		return nil, s.fetch(ctx, key, pod, channelID)
	})
	return err
}

func (s *Store) fetch(ctx context.Context, key model.Key, pod, channelID string) error {
	s.mu.Lock()
	e := s.entries[key]
	if e == nil {
		e = &entry{}
		s.entries[key] = e
	}
	e.loading = true
	s.mu.Unlock()

	client, err := s.deps.Client(pod)
	var msgs []model.Message
	if err == nil {
		msgs, err = client.ListPins(ctx, channelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Invalidated or evicted while the request was in flight.
	if s.entries[key] != e {
		s.logger.Debug("dropping stale pins", "key", key)
		return nil
	}
	e.loading = false

	if err != nil {
		if !e.loaded {
			delete(s.entries, key)
		}
		return err
	}

	e.msgs = msgs
	e.loaded = true
	return nil
}

// PinMessage pins msg and adds it to the front of the cached list, if any.
// The cached list is restored when the request fails.
func (s *Store) PinMessage(ctx context.Context, pod, channelID string, msg model.Message) error {
	client, err := s.deps.Client(pod)
	if err != nil {
		return err
	}

	key := model.ChannelKey(pod, channelID)

	s.mu.Lock()
	e := s.entries[key]
	added := false
	if e != nil && e.loaded && indexOf(e.msgs, msg.ID) < 0 {
		msg.Pinned = true
		e.msgs = slices.Insert(e.msgs, 0, msg)
		added = true
	}
	s.mu.Unlock()

	if err := client.PinMessage(ctx, channelID, msg.ID); err != nil {
		if added {
			s.mu.Lock()
			if s.entries[key] == e {
				if i := indexOf(e.msgs, msg.ID); i >= 0 {
					e.msgs = slices.Delete(e.msgs, i, i+1)
				}
			}
			s.mu.Unlock()
		}
		return err
	}
	return nil
}

// UnpinMessage unpins a message and removes it from the cached list. When
// the request fails the cache entry is dropped and re-fetched.
func (s *Store) UnpinMessage(ctx context.Context, pod, channelID, messageID string) error {
	client, err := s.deps.Client(pod)
	if err != nil {
		return err
	}

	key := model.ChannelKey(pod, channelID)

	s.mu.Lock()
	if e := s.entries[key]; e != nil && e.loaded {
		if i := indexOf(e.msgs, messageID); i >= 0 {
			e.msgs = slices.Delete(e.msgs, i, i+1)
		}
	}
	s.mu.Unlock()

	if err := client.UnpinMessage(ctx, channelID, messageID); err != nil {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()

		if ferr := s.FetchPins(ctx, pod, channelID); ferr != nil {
			s.logger.Warn("re-fetch pins after failed unpin", "key", key, "error", ferr)
		}
		return err
	}
	return nil
}

// GatewayChannelPinsUpdate drops the cached pins of the channel.
func (s *Store) GatewayChannelPinsUpdate(pod string, ev model.ChannelPinsUpdateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, model.ChannelKey(pod, ev.ChannelID))
}

// EvictPod drops every cached pin list of pod.
func (s *Store) EvictPod(pod string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if key.BelongsTo(pod) {
			delete(s.entries, key)
		}
	}
}

func indexOf(msgs []model.Message, id string) int {
	return slices.IndexFunc(msgs, func(m model.Message) bool { return m.ID == id })
}
