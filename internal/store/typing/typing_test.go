package typing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/podsync/internal/model"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(DefaultConfig(), Deps{CurrentUser: func(string) string { return "me" }}, nil)
	s.now = c.now
	return s, c
}

func users(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestGatewayTypingStart(t *testing.T) {
	s, c := newTestStore()

	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})

	got := s.Typing("p", "c")
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].UserID)
	assert.Equal(t, c.t.Add(8*time.Second), got[0].ExpiresAt)
}

func TestGatewayTypingStart_IgnoresCurrentUser(t *testing.T) {
	s, _ := newTestStore()

	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "me"})
	assert.Empty(t, s.Typing("p", "c"))
}

func TestGatewayTypingStart_RepeatRefreshesExpiry(t *testing.T) {
	s, c := newTestStore()

	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})
	c.advance(5 * time.Second)
	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})

	got := s.Typing("p", "c")
	require.Len(t, got, 1)
	assert.Equal(t, c.t.Add(8*time.Second), got[0].ExpiresAt)

	c.advance(5 * time.Second)
	assert.Equal(t, 0, s.PruneExpired(c.t))
	assert.Len(t, s.Typing("p", "c"), 1)
}

func TestPruneExpired(t *testing.T) {
	s, c := newTestStore()

	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})
	c.advance(3 * time.Second)
	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "bob"})

	c.advance(5 * time.Second)
	assert.Equal(t, 1, s.PruneExpired(c.t))
	assert.Equal(t, []string{"bob"}, users(s.Typing("p", "c")))

	c.advance(3 * time.Second)
	assert.Equal(t, 1, s.PruneExpired(c.t))
	assert.Empty(t, s.Typing("p", "c"))
}

func TestTyping_OrderedByExpiry(t *testing.T) {
	s, c := newTestStore()

	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "carol"})
	c.advance(time.Second)
	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})

	assert.Equal(t, []string{"carol", "alice"}, users(s.Typing("p", "c")))
}

func TestRun_PrunesUntilCancelled(t *testing.T) {
	s := New(Config{TTL: 10 * time.Millisecond, PruneInterval: 5 * time.Millisecond}, Deps{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.GatewayTypingStart("p", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})
	assert.Eventually(t, func() bool { return len(s.Typing("p", "c")) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEvictPod(t *testing.T) {
	s, _ := newTestStore()

	s.GatewayTypingStart("pod-a", model.TypingStartEvent{ChannelID: "c", UserID: "alice"})
	s.GatewayTypingStart("pod-ab", model.TypingStartEvent{ChannelID: "c", UserID: "bob"})

	s.EvictPod("pod-a")

	assert.Empty(t, s.Typing("pod-a", "c"))
	assert.Equal(t, []string{"bob"}, users(s.Typing("pod-ab", "c")))
}
