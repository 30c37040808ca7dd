package messages

import (
	"context"

	"github.com/rickgao/podsync/internal/model"
)

// emojiState is one emoji of a reaction aggregate. reactors records the
// users seen through gateway events: true after an add, false after a
// remove. A repeated event for the same user is ignored.
type emojiState struct {
	count    int
	me       bool
	reactors map[string]bool
}

// AddReaction reacts as the current user. The aggregate changes only when
// the gateway echo arrives.
func (s *Store) AddReaction(ctx context.Context, pod, channelID, messageID, emoji string) error {
	client, err := s.client(pod)
	if err != nil {
		return err
	}
	return client.AddReaction(ctx, channelID, messageID, emoji)
}

// RemoveReaction removes the current user's reaction. The aggregate changes
// only when the gateway echo arrives.
func (s *Store) RemoveReaction(ctx context.Context, pod, channelID, messageID, emoji string) error {
	client, err := s.client(pod)
	if err != nil {
		return err
	}
	return client.RemoveReaction(ctx, channelID, messageID, emoji)
}

// GatewayReactionAdd applies a MESSAGE_REACTION_ADD.
func (s *Store) GatewayReactionAdd(pod string, ev model.ReactionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.MessageKey(pod, ev.MessageID)
	agg := s.reactions[key]
	if agg == nil {
		// Aggregates exist only for messages a window holds.
		if !s.holdsMessageLocked(pod, ev.ChannelID, ev.MessageID) {
			return
		}
		agg = make(map[string]*emojiState)
		s.reactions[key] = agg
	}
	st := agg[ev.Emoji]
	if st == nil {
		st = &emojiState{reactors: make(map[string]bool)}
		agg[ev.Emoji] = st
	}

	if ev.UserID != "" {
		if st.reactors[ev.UserID] {
			return
		}
		st.reactors[ev.UserID] = true
	}
	st.count++
	if ev.UserID != "" && ev.UserID == s.currentUser(pod) {
		st.me = true
	}
}

// GatewayReactionRemove applies a MESSAGE_REACTION_REMOVE. Counts floor at
// zero and an emoji at zero is removed.
func (s *Store) GatewayReactionRemove(pod string, ev model.ReactionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.MessageKey(pod, ev.MessageID)
	agg := s.reactions[key]
	if agg == nil {
		return
	}
	st := agg[ev.Emoji]
	if st == nil {
		return
	}

	if ev.UserID != "" {
		if present, seen := st.reactors[ev.UserID]; seen && !present {
			return
		}
		st.reactors[ev.UserID] = false
	}
	st.count = max(st.count-1, 0)
	if ev.UserID != "" && ev.UserID == s.currentUser(pod) {
		st.me = false
	}

	if st.count == 0 {
		delete(agg, ev.Emoji)
	}
	if len(agg) == 0 {
		delete(s.reactions, key)
	}
}

// Reactions returns the reaction aggregate of a message.
func (s *Store) Reactions(pod, messageID string) map[string]model.Reaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := s.reactions[model.MessageKey(pod, messageID)]
	out := make(map[string]model.Reaction, len(agg))
	for emoji, st := range agg {
		out[emoji] = model.Reaction{Count: st.count, Me: st.me}
	}
	return out
}

// seedReactionsLocked replaces the aggregate of m with its fetched summary.
func (s *Store) seedReactionsLocked(pod string, m model.Message) {
	key := model.MessageKey(pod, m.ID)
	if len(m.Reactions) == 0 {
		return
	}

	agg := make(map[string]*emojiState, len(m.Reactions))
	me := s.currentUser(pod)
	for _, r := range m.Reactions {
		if r.Count <= 0 {
			continue
		}
		st := &emojiState{count: r.Count, me: r.Me, reactors: make(map[string]bool)}
		if r.Me && me != "" {
			st.reactors[me] = true
		}
		agg[r.Emoji] = st
	}
	if len(agg) == 0 {
		delete(s.reactions, key)
		return
	}
	s.reactions[key] = agg
}

// holdsMessageLocked reports whether a loaded window of pod contains
// messageID. An empty channelID searches every window of the pod.
func (s *Store) holdsMessageLocked(pod, channelID, messageID string) bool {
	if channelID != "" {
		w := s.loadedLocked(model.ChannelKey(pod, channelID))
		if w == nil {
			return false
		}
		_, ok := search(w.msgs, messageID)
		return ok
	}
	for key, w := range s.windows {
		if key.Pod != pod || !w.loaded {
			continue
		}
		if _, ok := search(w.msgs, messageID); ok {
			return true
		}
	}
	return false
}

// dropReactionsLocked removes the aggregates of msgs.
func (s *Store) dropReactionsLocked(pod string, msgs []model.Message) {
	for _, m := range msgs {
		delete(s.reactions, model.MessageKey(pod, m.ID))
	}
}
