package messages

import (
	"context"
	"slices"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/model"
)

// SendMessage creates a pending entry and posts the message. On success the
// pending entry is cleared if still present and the confirmed message is
// merged into the window. On failure the pending entry is removed and the
// error returned; nothing is retried.
func (s *Store) SendMessage(ctx context.Context, pod, channelID, content, replyTo string) (*model.Message, error) {
	client, err := s.client(pod)
	if err != nil {
		return nil, err
	}

	nonce := s.newNonce()

	s.mu.Lock()
	s.pendingSeq++
	s.pending[nonce] = &pendingEntry{
		seq: s.pendingSeq,
		msg: model.PendingMessage{
			Nonce:     nonce,
			PodID:     pod,
			ChannelID: channelID,
			AuthorID:  s.currentUser(pod),
			Content:   content,
			ReplyTo:   replyTo,
			CreatedAt: s.now(),
		},
	}
	s.mu.Unlock()

	msg, err := client.CreateMessage(ctx, channelID, api.CreateMessageRequest{
		Content: content,
		Nonce:   nonce,
		ReplyTo: replyTo,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		delete(s.pending, nonce)
		s.logger.Warn("send failed", "pod", pod, "channel", channelID, "error", err)
		return nil, err
	}

	if e, ok := s.pending[nonce]; ok && e.msg.PodID == pod {
		delete(s.pending, nonce)
	}
	if msg.ChannelID == "" {
		msg.ChannelID = channelID
	}
	s.insertConfirmedLocked(pod, *msg)
	return msg, nil
}

// EditMessage patches the message locally and sends the edit. A failed
// request restores the previous content.
func (s *Store) EditMessage(ctx context.Context, pod, channelID, messageID, content string) (*model.Message, error) {
	client, err := s.client(pod)
	if err != nil {
		return nil, err
	}

	key := model.ChannelKey(pod, channelID)

	s.mu.Lock()
	w := s.loadedLocked(key)
	var prev *model.Message
	if w != nil {
		if i, ok := search(w.msgs, messageID); ok {
			p := w.msgs[i]
			prev = &p
			w.msgs[i].Content = content
		}
	}
	s.mu.Unlock()

	updated, err := client.EditMessage(ctx, channelID, messageID, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.windows[key] != w || w == nil {
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	i, ok := search(w.msgs, messageID)
	if err != nil {
		// Only undo our own patch; a newer gateway update wins.
		if ok && prev != nil && w.msgs[i].Content == content {
			w.msgs[i].Content = prev.Content
			w.msgs[i].EditedAt = prev.EditedAt
		}
		s.logger.Warn("edit failed", "pod", pod, "message", messageID, "error", err)
		return nil, err
	}

	if ok {
		w.msgs[i] = mergeUpdate(w.msgs[i], *updated)
	}
	return updated, nil
}

// DeleteMessage removes the message locally and sends the delete. A failed
// request reinserts the message in id order.
func (s *Store) DeleteMessage(ctx context.Context, pod, channelID, messageID string) error {
	client, err := s.client(pod)
	if err != nil {
		return err
	}

	key := model.ChannelKey(pod, channelID)

	s.mu.Lock()
	w := s.loadedLocked(key)
	var removed *model.Message
	if w != nil {
		if i, ok := search(w.msgs, messageID); ok {
			m := w.msgs[i]
			removed = &m
			w.msgs = slices.Delete(w.msgs, i, i+1)
		}
	}
	s.mu.Unlock()

	err = client.DeleteMessage(ctx, channelID, messageID)
	if err == nil {
		s.mu.Lock()
		delete(s.reactions, model.MessageKey(pod, messageID))
		s.mu.Unlock()
		return nil
	}

	s.logger.Warn("delete failed", "pod", pod, "message", messageID, "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if removed != nil && s.windows[key] == w {
		if i, found := search(w.msgs, messageID); !found {
			w.msgs = slices.Insert(w.msgs, i, *removed)
		}
	}
	return err
}
