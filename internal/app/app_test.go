package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/podsync/internal/config"
	"github.com/rickgao/podsync/internal/connection"
	"github.com/rickgao/podsync/internal/model"
)

func newPodServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	var server *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "a1",
			"refresh_token": "r1",
			"expires_in":    3600,
			"ws_url":        "ws" + strings.TrimPrefix(server.URL, "http") + "/gateway",
			"ws_ticket":     "t1",
		})
	})
	mux.HandleFunc("GET /channels/general/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []any{map[string]any{
				"id": "m1", "channel_id": "general", "content": "hi",
				"author":     map[string]any{"id": "alice"},
				"created_at": "2026-01-01T00:00:00Z",
			}},
			"has_more": false,
		})
	})
	mux.HandleFunc("/gateway", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{
			"op": "DISPATCH", "t": model.EventReady, "s": 1,
			"d": map[string]any{
				"session_id": "s1",
				"user":       map[string]any{"id": "me"},
				"communities": []any{map[string]any{
					"id": "c1", "name": "General Chat",
					"channels": []any{
						map[string]any{"id": "general", "community_id": "c1", "name": "general", "type": "text"},
						map[string]any{"id": "voice", "community_id": "c1", "name": "voice", "type": "voice"},
					},
				}},
				"presences":          []any{map[string]any{"user_id": "alice", "status": "online"}},
				"heartbeat_interval": 30000,
			},
		})
		conn.WriteJSON(map[string]any{
			"op": "DISPATCH", "t": model.EventTypingStart, "s": 2,
			"d": map[string]any{"channel_id": "general", "user_id": "alice"},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newHome(t *testing.T) *httptest.Server {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"assertion": "assert-p1", "expires_in": 60})
	}))
	t.Cleanup(s.Close)
	return s
}

func loadConfig(t *testing.T, yaml string) *config.Config {
	path := filepath.Join(t.TempDir(), "podsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.LoadWithDefaults(path)
	require.NoError(t, err)
	return cfg
}

func TestApp_StartStopWithoutPods(t *testing.T) {
	cfg := loadConfig(t, "home:\n  url: http://127.0.0.1:1\n  token: pat\n")

	a := New(cfg, nil)
	require.NoError(t, a.Start(context.Background()))

	st := a.Stats()
	assert.Empty(t, st.Pods)
	assert.Zero(t, st.Router.Received)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Stop(ctx))
}

func TestApp_ConnectsHydratesAndPreloads(t *testing.T) {
	pod := newPodServer(t)
	home := newHome(t)
	cfg := loadConfig(t, fmt.Sprintf(`
home:
  url: %s
  token: pat
pods:
  - id: p1
    base_url: %s
`, home.URL, pod.URL))

	var mu sync.Mutex
	var observed []string
	a := New(cfg, nil, WithObserver(func(pod, event string, payload json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, pod+":"+event)
	}))
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Stop(context.Background()) })

	status, ok := a.Sessions.Status("p1")
	require.True(t, ok)
	assert.Equal(t, connection.StatusConnected, status)
	assert.Equal(t, "me", a.Directory.CurrentUser("p1"))

	require.Len(t, a.Communities.Communities("p1"), 1)
	assert.Equal(t, model.PresenceOnline, a.Presence.Status("p1", "alice"))

	require.Eventually(t, func() bool {
		w, ok := a.Messages.Window("p1", "general")
		return ok && len(w.Messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, ok = a.Messages.Window("p1", "voice")
	assert.False(t, ok, "non-text channels are not preloaded")

	require.Eventually(t, func() bool {
		return len(a.Typing.Typing("p1", "general")) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"p1:" + model.EventReady, "p1:" + model.EventTypingStart}, observed)
}

func TestApp_StopEvictsPods(t *testing.T) {
	pod := newPodServer(t)
	home := newHome(t)
	cfg := loadConfig(t, fmt.Sprintf(`
home:
  url: %s
  token: pat
pods:
  - id: p1
    base_url: %s
`, home.URL, pod.URL))

	a := New(cfg, nil)
	require.NoError(t, a.Start(context.Background()))
	require.Len(t, a.Communities.Communities("p1"), 1)

	require.NoError(t, a.Stop(context.Background()))

	assert.Empty(t, a.Communities.Communities("p1"))
	assert.Equal(t, model.PresenceOffline, a.Presence.Status("p1", "alice"))
}
