package messages

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/model"
)

// Errors
var (
	ErrNotLoaded           = errors.New("channel window not loaded")
	ErrNonContiguousCursor = errors.New("cursor is not the window boundary")
	ErrConflictingCursors  = errors.New("before and after are mutually exclusive")
	ErrMessageNotFound     = errors.New("message not in window")
)

// API is the subset of the pod REST client the store uses.
type API interface {
	ListMessages(ctx context.Context, channelID string, params api.ListMessagesParams) (*api.MessagePage, error)
	CreateMessage(ctx context.Context, channelID string, req api.CreateMessageRequest) (*model.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) (*model.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// Deps are the per-pod accessors the store needs.
type Deps struct {
	Client      func(pod string) (API, error)
	CurrentUser func(pod string) string // user id, "" if unknown
}

// Config holds message store configuration.
type Config struct {
	PageSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PageSize: 50}
}

// Window is a read-only snapshot of a channel window.
type Window struct {
	Messages []model.Message
	HasOlder bool
	HasNewer bool
	Loading  bool
}

// ChannelRef names a channel on a pod.
type ChannelRef struct {
	Pod       string
	ChannelID string
}

type window struct {
	channelID string
	msgs      []model.Message
	hasOlder  bool
	hasNewer  bool
	loading   bool
	loaded    bool
}

type pendingEntry struct {
	msg model.PendingMessage
	seq uint64
}

// Store is the message store. All methods are safe for concurrent use.
type Store struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu         sync.Mutex
	windows    map[model.Key]*window
	pending    map[string]*pendingEntry
	pendingSeq uint64
	reactions  map[model.Key]map[string]*emojiState

	flights  singleflight.Group
	now      func() time.Time
	newNonce func() string
}

// New creates a message store.
func New(cfg Config, deps Deps, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}

	return &Store{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		windows:   make(map[model.Key]*window),
		pending:   make(map[string]*pendingEntry),
		reactions: make(map[model.Key]map[string]*emojiState),
		now:       time.Now,
		newNonce:  uuid.NewString,
	}
}

func (s *Store) client(pod string) (API, error) {
	return s.deps.Client(pod)
}

func (s *Store) currentUser(pod string) string {
	if s.deps.CurrentUser == nil {
		return ""
	}
	return s.deps.CurrentUser(pod)
}

// Window returns a snapshot of a channel window.
func (s *Store) Window(pod, channelID string) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[model.ChannelKey(pod, channelID)]
	if !ok {
		return Window{}, false
	}
	return Window{
		Messages: slices.Clone(w.msgs),
		HasOlder: w.hasOlder,
		HasNewer: w.hasNewer,
		Loading:  w.loading,
	}, true
}

// Pending returns the pending messages of a channel, oldest first.
func (s *Store) Pending(pod, channelID string) []model.PendingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*pendingEntry, 0)
	for _, e := range s.pending {
		if e.msg.PodID == pod && e.msg.ChannelID == channelID {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *pendingEntry) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]model.PendingMessage, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

// LiveChannels returns the loaded windows that sit at the live tail.
func (s *Store) LiveChannels() []ChannelRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ChannelRef
	for key, w := range s.windows {
		if w.loaded && !w.hasNewer {
			out = append(out, ChannelRef{Pod: key.Pod, ChannelID: w.channelID})
		}
	}
	return out
}

// EvictPod drops every window, pending message and reaction aggregate of pod.
func (s *Store) EvictPod(pod string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.windows {
		if key.BelongsTo(pod) {
			delete(s.windows, key)
		}
	}
	for nonce, e := range s.pending {
		if e.msg.PodID == pod {
			delete(s.pending, nonce)
		}
	}
	for key := range s.reactions {
		if key.BelongsTo(pod) {
			delete(s.reactions, key)
		}
	}
}

// search finds id in msgs, which must be sorted ascending.
func search(msgs []model.Message, id string) (int, bool) {
	return slices.BinarySearchFunc(msgs, id, func(m model.Message, id string) int {
		return model.CompareIDs(m.ID, id)
	})
}

// loadedLocked returns the window for key if it has completed an initial load.
func (s *Store) loadedLocked(key model.Key) *window {
	w := s.windows[key]
	if w == nil || !w.loaded {
		return nil
	}
	return w
}
