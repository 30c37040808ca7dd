package messages

import (
	"context"
	"fmt"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/model"
)

// FetchOptions selects which page FetchMessages loads. With neither cursor
// set the newest page is loaded as the initial window.
type FetchOptions struct {
	Before string
	After  string
}

// FetchMessages loads a page into the channel window.
//
// An initial load is a no-op once the window holds messages. A paginated
// load is a no-op when that side is exhausted, and must use the window's
// current boundary id as its cursor. Concurrent identical calls share one
// request.
func (s *Store) FetchMessages(ctx context.Context, pod, channelID string, opts FetchOptions) error {
	if opts.Before != "" && opts.After != "" {
		return ErrConflictingCursors
	}

	key := model.ChannelKey(pod, channelID)
	flight := fmt.Sprintf("fetch|%s|%s|%s", key, opts.Before, opts.After)

	_, err, _ := s.flights.Do(flight, func() (any, error) {
		return nil, s.fetch(ctx, key, pod, channelID, opts)
	})
	return err
}

// FetchOlder loads the page before the window's oldest message.
func (s *Store) FetchOlder(ctx context.Context, pod, channelID string) error {
	s.mu.Lock()
	w := s.loadedLocked(model.ChannelKey(pod, channelID))
	if w == nil || len(w.msgs) == 0 {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	cursor := w.msgs[0].ID
	s.mu.Unlock()

	return s.FetchMessages(ctx, pod, channelID, FetchOptions{Before: cursor})
}

// FetchNewer loads the page after the window's newest message.
func (s *Store) FetchNewer(ctx context.Context, pod, channelID string) error {
	s.mu.Lock()
	w := s.loadedLocked(model.ChannelKey(pod, channelID))
	if w == nil || len(w.msgs) == 0 {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	cursor := w.msgs[len(w.msgs)-1].ID
	s.mu.Unlock()

	return s.FetchMessages(ctx, pod, channelID, FetchOptions{After: cursor})
}

func (s *Store) fetch(ctx context.Context, key model.Key, pod, channelID string, opts FetchOptions) error {
	s.mu.Lock()
	w := s.windows[key]
	initial := opts.Before == "" && opts.After == ""

	switch {
	case initial:
		if w != nil && len(w.msgs) > 0 {
			s.mu.Unlock()
			return nil
		}
		if w == nil {
			w = &window{channelID: channelID}
			s.windows[key] = w
		}

	case w == nil || !w.loaded || len(w.msgs) == 0:
		s.mu.Unlock()
		return ErrNotLoaded

	case opts.Before != "":
		if !w.hasOlder {
			s.mu.Unlock()
			return nil
		}
		if opts.Before != w.msgs[0].ID {
			s.mu.Unlock()
			return ErrNonContiguousCursor
		}

	default:
		if !w.hasNewer {
			s.mu.Unlock()
			return nil
		}
		if opts.After != w.msgs[len(w.msgs)-1].ID {
			s.mu.Unlock()
			return ErrNonContiguousCursor
		}
	}
	w.loading = true
	s.mu.Unlock()

	client, err := s.client(pod)
	var page *api.MessagePage
	if err == nil {
		page, err = client.ListMessages(ctx, channelID, api.ListMessagesParams{
			Before: opts.Before,
			After:  opts.After,
			Limit:  s.cfg.PageSize,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Evicted or replaced while the request was in flight.
	if s.windows[key] != w {
		s.logger.Debug("dropping stale page", "key", key)
		return nil
	}
	w.loading = false

	if err != nil {
		if !w.loaded {
			delete(s.windows, key)
		}
		return err
	}

	// The boundary moved while the request was in flight (delete, gap
	// repair). Merging would break contiguity.
	if !initial && !boundaryIs(w, opts) {
		s.logger.Debug("dropping page for moved boundary", "key", key, "before", opts.Before, "after", opts.After)
		return nil
	}

	batch := dedupeSorted(page.Messages)
	switch {
	case initial:
		w.msgs = batch
		w.hasOlder = page.HasMore
		w.hasNewer = false
		w.loaded = true

	case opts.Before != "":
		first := w.msgs[0].ID
		older := batch[:0:0]
		for _, m := range batch {
			if model.CompareIDs(m.ID, first) < 0 {
				older = append(older, m)
			}
		}
		w.msgs = append(older, w.msgs...)
		w.hasOlder = page.HasMore

	default:
		last := w.msgs[len(w.msgs)-1].ID
		for _, m := range batch {
			if model.CompareIDs(m.ID, last) > 0 {
				w.msgs = append(w.msgs, m)
			}
		}
		w.hasNewer = page.HasMore
	}

	for _, m := range batch {
		s.seedReactionsLocked(pod, m)
	}

	s.logger.Debug("fetched messages",
		"key", key,
		"count", len(batch),
		"has_more", page.HasMore,
		"window", len(w.msgs),
	)
	return nil
}

// boundaryIs reports whether the cursor in opts is still the window edge it
// paginates from.
func boundaryIs(w *window, opts FetchOptions) bool {
	if len(w.msgs) == 0 {
		return false
	}
	if opts.Before != "" {
		return w.msgs[0].ID == opts.Before
	}
	return w.msgs[len(w.msgs)-1].ID == opts.After
}

// CatchUp merges the newest page into a loaded live-tail window. Messages
// newer than the tail are appended and reconcile pending sends. If the page
// does not reach back to the tail, the window is replaced with it.
func (s *Store) CatchUp(ctx context.Context, pod, channelID string) error {
	key := model.ChannelKey(pod, channelID)
	_, err, _ := s.flights.Do("catchup|"+key.String(), func() (any, error) {
		return nil, s.catchUp(ctx, key, pod, channelID)
	})
	return err
}

func (s *Store) catchUp(ctx context.Context, key model.Key, pod, channelID string) error {
	s.mu.Lock()
	w := s.loadedLocked(key)
	if w == nil || w.hasNewer || w.loading {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	client, err := s.client(pod)
	if err != nil {
		return err
	}
	page, err := client.ListMessages(ctx, channelID, api.ListMessagesParams{Limit: s.cfg.PageSize})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.windows[key] != w || w.hasNewer {
		return nil
	}

	batch := dedupeSorted(page.Messages)
	for _, m := range batch {
		s.reconcilePendingLocked(pod, m)
	}

	if len(w.msgs) == 0 {
		w.msgs = batch
		w.hasOlder = page.HasMore
		for _, m := range batch {
			s.seedReactionsLocked(pod, m)
		}
		return nil
	}

	last := w.msgs[len(w.msgs)-1].ID
	overlaps := !page.HasMore || len(batch) == 0 || model.CompareIDs(batch[0].ID, last) <= 0
	if !overlaps {
		s.logger.Info("gap detected, replacing window", "key", key, "tail", last, "page_oldest", batch[0].ID)
		s.dropReactionsLocked(pod, w.msgs)
		w.msgs = batch
		w.hasOlder = true
		for _, m := range batch {
			s.seedReactionsLocked(pod, m)
		}
		return nil
	}

	added := 0
	for _, m := range batch {
		if model.CompareIDs(m.ID, last) > 0 {
			w.msgs = append(w.msgs, m)
			s.seedReactionsLocked(pod, m)
			added++
		}
	}
	if added > 0 {
		s.logger.Debug("caught up", "key", key, "added", added)
	}
	return nil
}

// dedupeSorted returns msgs sorted ascending with duplicate ids removed.
func dedupeSorted(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	model.SortMessages(out)

	n := 0
	for i, m := range out {
		if i > 0 && m.ID == out[n-1].ID {
			out[n-1] = m
			continue
		}
		out[n] = m
		n++
	}
	return out[:n]
}
