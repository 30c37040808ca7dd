package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/podsync/internal/model"
)

var (
	errMissingField = errors.New("missing required field")
	errEmptyPayload = errors.New("empty payload")
	errUnknownEvent = errors.New("unknown event")
)

// Router turns gateway dispatches into store mutations.
type Router interface {
	// Route applies one dispatch from pod.
	Route(event string, payload json.RawMessage, pod string)

	// Hydrate applies a READY snapshot from pod.
	Hydrate(pod string, ready *model.Ready)

	// Archive returns the archive queue, nil when archiving is disabled.
	Archive() *Queue[ArchiveEvent]

	// Stats returns current router statistics.
	Stats() Stats
}

type router struct {
	cfg    Config
	stores Stores
	logger *slog.Logger

	archive *Queue[ArchiveEvent]
	now     func() time.Time

	mu          sync.Mutex
	received    int64
	routed      int64
	parseErrors int64
	unknown     int64
}

// New creates a dispatch router.
func New(cfg Config, stores Stores, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ArchiveQueueSize <= 0 {
		cfg.ArchiveQueueSize = def.ArchiveQueueSize
	}
	if cfg.ArchiveQueueLimit <= 0 {
		cfg.ArchiveQueueLimit = cfg.ArchiveQueueSize * 16
	}

	r := &router{
		cfg:    cfg,
		stores: stores,
		logger: logger,
		now:    time.Now,
	}
	if cfg.Archive {
		r.archive = NewQueue[ArchiveEvent](cfg.ArchiveQueueSize, cfg.ArchiveQueueLimit)
	}
	return r
}

func (r *router) Archive() *Queue[ArchiveEvent] {
	return r.archive
}

func (r *router) Stats() Stats {
	r.mu.Lock()
	st := Stats{
		Received:    r.received,
		Routed:      r.routed,
		ParseErrors: r.parseErrors,
		Unknown:     r.unknown,
	}
	r.mu.Unlock()

	if r.archive != nil {
		st.Archive = r.archive.Stats()
	}
	return st
}

func (r *router) Hydrate(pod string, ready *model.Ready) {
	if ready == nil {
		return
	}
	r.stores.Communities.Hydrate(pod, ready.Communities)
	r.stores.Presence.Seed(pod, ready.Presences)

	r.logger.Info("hydrated pod",
		"pod", pod,
		"session", ready.SessionID,
		"user", ready.User.ID,
		"communities", len(ready.Communities),
		"presences", len(ready.Presences),
	)
}

func (r *router) Route(event string, payload json.RawMessage, pod string) {
	r.count(&r.received)

	err := r.route(event, payload, pod)
	switch {
	case err == nil:
		r.count(&r.routed)
	case errors.Is(err, errUnknownEvent):
		r.count(&r.unknown)
		r.logger.Debug("unknown event", "pod", pod, "event", event)
	default:
		r.count(&r.parseErrors)
		r.logger.Warn("dropping malformed dispatch", "pod", pod, "event", event, "error", err)
	}
}

func (r *router) route(event string, payload json.RawMessage, pod string) error {
	s := r.stores

	switch event {
	case model.EventReady:
		ready, err := decode(payload, func(v model.Ready) bool { return true })
		if err != nil {
			return err
		}
		r.Hydrate(pod, &ready)

	case model.EventMessageCreate:
		msg, err := decode(payload, validMessage)
		if err != nil {
			return err
		}
		s.Messages.GatewayMessageCreate(pod, msg)
		r.archiveMessage(ArchiveCreate, pod, msg)

	case model.EventMessageUpdate:
		msg, err := decode(payload, validMessage)
		if err != nil {
			return err
		}
		s.Messages.GatewayMessageUpdate(pod, msg)
		r.archiveMessage(ArchiveUpdate, pod, msg)

	case model.EventMessageDelete:
		ev, err := decode(payload, func(v model.MessageDeleteEvent) bool { return v.ID != "" && v.ChannelID != "" })
		if err != nil {
			return err
		}
		s.Messages.GatewayMessageDelete(pod, ev)
		r.push(ArchiveEvent{Kind: ArchiveDelete, Pod: pod, MessageID: ev.ID, ChannelID: ev.ChannelID})

	case model.EventMessageReactionAdd, model.EventMessageReactionRemove:
		ev, err := decode(payload, func(v model.ReactionEvent) bool { return v.MessageID != "" && v.Emoji != "" })
		if err != nil {
			return err
		}
		if event == model.EventMessageReactionAdd {
			s.Messages.GatewayReactionAdd(pod, ev)
		} else {
			s.Messages.GatewayReactionRemove(pod, ev)
		}

	case model.EventChannelCreate, model.EventChannelUpdate:
		ch, err := decode(payload, func(v model.Channel) bool { return v.ID != "" && v.CommunityID != "" })
		if err != nil {
			return err
		}
		if event == model.EventChannelCreate {
			s.Communities.GatewayChannelCreate(pod, ch)
		} else {
			s.Communities.GatewayChannelUpdate(pod, ch)
		}

	case model.EventChannelDelete:
		ev, err := decode(payload, func(v model.ChannelDeleteEvent) bool { return v.ID != "" && v.CommunityID != "" })
		if err != nil {
			return err
		}
		s.Communities.GatewayChannelDelete(pod, ev)

	case model.EventCommunityUpdate:
		patch, err := decode(payload, func(v model.CommunityPatch) bool { return v.ID != "" })
		if err != nil {
			return err
		}
		s.Communities.GatewayCommunityUpdate(pod, patch)

	case model.EventMemberJoin, model.EventMemberUpdate:
		m, err := decode(payload, func(v model.Member) bool { return v.CommunityID != "" && v.User.ID != "" })
		if err != nil {
			return err
		}
		if event == model.EventMemberJoin {
			s.Communities.GatewayMemberJoin(pod, m)
		} else {
			s.Communities.GatewayMemberUpdate(pod, m)
		}

	case model.EventMemberLeave:
		ev, err := decode(payload, func(v model.MemberLeaveEvent) bool { return v.CommunityID != "" && v.UserID != "" })
		if err != nil {
			return err
		}
		s.Communities.GatewayMemberLeave(pod, ev)

	case model.EventTypingStart:
		ev, err := decode(payload, func(v model.TypingStartEvent) bool { return v.ChannelID != "" && v.UserID != "" })
		if err != nil {
			return err
		}
		s.Typing.GatewayTypingStart(pod, ev)

	case model.EventChannelPinsUpdate:
		ev, err := decode(payload, func(v model.ChannelPinsUpdateEvent) bool { return v.ChannelID != "" })
		if err != nil {
			return err
		}
		s.Pins.GatewayChannelPinsUpdate(pod, ev)

	case model.EventPresenceUpdate:
		p, err := decode(payload, func(v model.Presence) bool { return v.UserID != "" })
		if err != nil {
			return err
		}
		s.Presence.GatewayPresenceUpdate(pod, p)

	default:
		return errUnknownEvent
	}
	return nil
}

func (r *router) archiveMessage(kind ArchiveKind, pod string, msg model.Message) {
	if r.archive == nil {
		return
	}
	r.push(ArchiveEvent{Kind: kind, Pod: pod, MessageID: msg.ID, ChannelID: msg.ChannelID, Message: &msg})
}

func (r *router) push(ev ArchiveEvent) {
	if r.archive == nil {
		return
	}
	ev.ReceivedAt = r.now()
	r.archive.Push(ev)
}

func (r *router) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

func validMessage(m model.Message) bool {
	return m.ID != "" && m.ChannelID != ""
}

// decode unmarshals payload into T and checks its required fields.
func decode[T any](payload json.RawMessage, valid func(T) bool) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, errEmptyPayload
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decode: %w", err)
	}
	if !valid(v) {
		return v, errMissingField
	}
	return v, nil
}
