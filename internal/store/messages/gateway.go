package messages

import (
	"slices"

	"github.com/rickgao/podsync/internal/model"
)

// GatewayMessageCreate applies a MESSAGE_CREATE. It reconciles a pending
// send and appends the message when its window is loaded and at the live
// tail. Duplicate deliveries are ignored.
func (s *Store) GatewayMessageCreate(pod string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconcilePendingLocked(pod, msg)
	s.insertConfirmedLocked(pod, msg)
}

// GatewayMessageUpdate applies a MESSAGE_UPDATE. Unknown messages are ignored.
func (s *Store) GatewayMessageUpdate(pod string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.loadedLocked(model.ChannelKey(pod, msg.ChannelID))
	if w == nil {
		return
	}
	i, ok := search(w.msgs, msg.ID)
	if !ok {
		return
	}
	w.msgs[i] = mergeUpdate(w.msgs[i], msg)
}

// GatewayMessageDelete applies a MESSAGE_DELETE. Idempotent.
func (s *Store) GatewayMessageDelete(pod string, ev model.MessageDeleteEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.reactions, model.MessageKey(pod, ev.ID))

	w := s.loadedLocked(model.ChannelKey(pod, ev.ChannelID))
	if w == nil {
		return
	}
	if i, ok := search(w.msgs, ev.ID); ok {
		w.msgs = slices.Delete(w.msgs, i, i+1)
	}
}

// mergeUpdate overlays an update payload on the stored message, keeping
// fields the payload leaves empty.
func mergeUpdate(cur, upd model.Message) model.Message {
	out := upd
	if out.Author.ID == "" {
		out.Author = cur.Author
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = cur.CreatedAt
	}
	if out.Nonce == "" {
		out.Nonce = cur.Nonce
	}
	if out.ReplyTo == "" {
		out.ReplyTo = cur.ReplyTo
	}
	if out.Reactions == nil {
		out.Reactions = cur.Reactions
	}
	return out
}

// insertConfirmedLocked adds a confirmed message to its window if the
// window is loaded, at the live tail and does not hold the id already.
func (s *Store) insertConfirmedLocked(pod string, msg model.Message) bool {
	w := s.loadedLocked(model.ChannelKey(pod, msg.ChannelID))
	if w == nil || w.hasNewer {
		return false
	}
	i, found := search(w.msgs, msg.ID)
	if found {
		return false
	}
	w.msgs = slices.Insert(w.msgs, i, msg)
	return true
}

// reconcilePendingLocked removes the pending entry msg confirms. With a
// nonce only the exact entry matches; without one the oldest entry from the
// same author with the same content in the same channel matches.
func (s *Store) reconcilePendingLocked(pod string, msg model.Message) bool {
	if msg.Nonce != "" {
		e, ok := s.pending[msg.Nonce]
		if !ok || e.msg.PodID != pod {
			return false
		}
		delete(s.pending, msg.Nonce)
		return true
	}

	var match *pendingEntry
	for _, e := range s.pending {
		p := e.msg
		if p.PodID != pod || p.ChannelID != msg.ChannelID || p.AuthorID != msg.Author.ID || p.Content != msg.Content {
			continue
		}
		if match == nil || e.seq < match.seq {
			match = e
		}
	}
	if match == nil {
		return false
	}
	delete(s.pending, match.msg.Nonce)
	return true
}
