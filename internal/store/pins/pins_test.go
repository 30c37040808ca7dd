package pins

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/podsync/internal/model"
)

type fakeAPI struct {
	mu       sync.Mutex
	pins     []model.Message
	listErr  error
	listGate chan struct{}
	calls    int
	pinErr   error
	unpinErr error
}

func (f *fakeAPI) ListPins(ctx context.Context, channelID string) ([]model.Message, error) {
	f.mu.Lock()
	f.calls++
	gate := f.listGate
	pins := append([]model.Message(nil), f.pins...)
	err := f.listErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return pins, err
}

func (f *fakeAPI) PinMessage(ctx context.Context, channelID, messageID string) error {
	return f.pinErr
}

func (f *fakeAPI) UnpinMessage(ctx context.Context, channelID, messageID string) error {
	return f.unpinErr
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(clients map[string]*fakeAPI) *Store {
	return New(Deps{
		Client: func(pod string) (API, error) {
			c, ok := clients[pod]
			if !ok {
				return nil, errors.New("unknown pod")
			}
			return c, nil
		},
	}, nil)
}

func pinIDs(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestFetchPins_ReplacesWholesale(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "3"}, {ID: "1"}}}
	s := newTestStore(map[string]*fakeAPI{"p": f})

	_, ok := s.Pins("p", "c")
	assert.False(t, ok)

	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))
	got, ok := s.Pins("p", "c")
	require.True(t, ok)
	assert.Equal(t, []string{"3", "1"}, pinIDs(got))

	f.pins = []model.Message{{ID: "7"}}
	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))
	got, _ = s.Pins("p", "c")
	assert.Equal(t, []string{"7"}, pinIDs(got))
}

func TestFetchPins_CollapsesConcurrentCalls(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "1"}}, listGate: make(chan struct{})}
	s := newTestStore(map[string]*fakeAPI{"p": f})

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.FetchPins(context.Background(), "p", "c"))
		}()
	}

	require.Eventually(t, func() bool { return s.Loading("p", "c") }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.listGate)
	wg.Wait()

	assert.Equal(t, 1, f.listCalls())
	assert.False(t, s.Loading("p", "c"))
}

func TestFetchPins_ErrorLeavesNoEntry(t *testing.T) {
	f := &fakeAPI{listErr: errors.New("boom")}
	s := newTestStore(map[string]*fakeAPI{"p": f})

	assert.Error(t, s.FetchPins(context.Background(), "p", "c"))
	_, ok := s.Pins("p", "c")
	assert.False(t, ok)
	assert.False(t, s.Loading("p", "c"))
}

func TestFetchPins_InvalidatedInFlightIsDropped(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "1"}}, listGate: make(chan struct{})}
	s := newTestStore(map[string]*fakeAPI{"p": f})

	done := make(chan error, 1)
	go func() { done <- s.FetchPins(context.Background(), "p", "c") }()

	require.Eventually(t, func() bool { return s.Loading("p", "c") }, time.Second, time.Millisecond)
	s.GatewayChannelPinsUpdate("p", model.ChannelPinsUpdateEvent{ChannelID: "c"})
	close(f.listGate)
	require.NoError(t, <-done)

	_, ok := s.Pins("p", "c")
	assert.False(t, ok, "stale response must not repopulate an invalidated entry")
}

func TestPinMessage_OptimisticAdd(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "1"}}}
	s := newTestStore(map[string]*fakeAPI{"p": f})
	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))

	require.NoError(t, s.PinMessage(context.Background(), "p", "c", model.Message{ID: "5"}))

	got, _ := s.Pins("p", "c")
	assert.Equal(t, []string{"5", "1"}, pinIDs(got))
	assert.True(t, got[0].Pinned)
}

func TestPinMessage_RollbackOnFailure(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "1"}}, pinErr: errors.New("forbidden")}
	s := newTestStore(map[string]*fakeAPI{"p": f})
	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))

	err := s.PinMessage(context.Background(), "p", "c", model.Message{ID: "5"})
	assert.EqualError(t, err, "forbidden")

	got, _ := s.Pins("p", "c")
	assert.Equal(t, []string{"1"}, pinIDs(got))
}

func TestPinMessage_WithoutCacheOnlyCallsREST(t *testing.T) {
	f := &fakeAPI{}
	s := newTestStore(map[string]*fakeAPI{"p": f})

	require.NoError(t, s.PinMessage(context.Background(), "p", "c", model.Message{ID: "5"}))
	_, ok := s.Pins("p", "c")
	assert.False(t, ok)
}

func TestUnpinMessage_OptimisticRemove(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "2"}, {ID: "1"}}}
	s := newTestStore(map[string]*fakeAPI{"p": f})
	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))

	require.NoError(t, s.UnpinMessage(context.Background(), "p", "c", "2"))
	got, _ := s.Pins("p", "c")
	assert.Equal(t, []string{"1"}, pinIDs(got))
}

func TestUnpinMessage_FailureRefetches(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "2"}, {ID: "1"}}, unpinErr: errors.New("boom")}
	s := newTestStore(map[string]*fakeAPI{"p": f})
	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))

	err := s.UnpinMessage(context.Background(), "p", "c", "2")
	assert.EqualError(t, err, "boom")

	got, ok := s.Pins("p", "c")
	require.True(t, ok)
	assert.Equal(t, []string{"2", "1"}, pinIDs(got))
	assert.Equal(t, 2, f.listCalls())
}

func TestGatewayChannelPinsUpdate_Invalidates(t *testing.T) {
	f := &fakeAPI{pins: []model.Message{{ID: "1"}}}
	s := newTestStore(map[string]*fakeAPI{"p": f})
	require.NoError(t, s.FetchPins(context.Background(), "p", "c"))

	s.GatewayChannelPinsUpdate("p", model.ChannelPinsUpdateEvent{ChannelID: "c"})
	_, ok := s.Pins("p", "c")
	assert.False(t, ok)
}

func TestEvictPod(t *testing.T) {
	a := &fakeAPI{pins: []model.Message{{ID: "1"}}}
	b := &fakeAPI{pins: []model.Message{{ID: "2"}}}
	s := newTestStore(map[string]*fakeAPI{"pod-a": a, "pod-ab": b})

	require.NoError(t, s.FetchPins(context.Background(), "pod-a", "c"))
	require.NoError(t, s.FetchPins(context.Background(), "pod-ab", "c"))

	s.EvictPod("pod-a")

	_, ok := s.Pins("pod-a", "c")
	assert.False(t, ok)
	got, ok := s.Pins("pod-ab", "c")
	require.True(t, ok)
	assert.Equal(t, []string{"2"}, pinIDs(got))
}
