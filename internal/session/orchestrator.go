package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/auth"
	"github.com/rickgao/podsync/internal/connection"
	"github.com/rickgao/podsync/internal/model"
)

// ErrClosed is returned once the orchestrator has been closed.
var ErrClosed = errors.New("session orchestrator closed")

// Config holds orchestrator configuration.
type Config struct {
	RetryMaxAttempts int           // retries after the first failed connect
	RetryInitial     time.Duration // first retry delay, doubled per attempt
	RetryMax         time.Duration // retry delay cap
	RefreshLead      time.Duration // refresh this long before token expiry
	Gateway          connection.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts: 5,
		RetryInitial:     time.Second,
		RetryMax:         30 * time.Second,
		RefreshLead:      60 * time.Second,
		Gateway:          connection.DefaultConfig(),
	}
}

// Pod names a pod and its REST root.
type Pod struct {
	ID      string
	BaseURL string
}

// Credentials acquires and refreshes pod tokens. Satisfied by *auth.Exchanger.
type Credentials interface {
	Acquire(ctx context.Context, podID string, pod auth.PodAuthenticator) (*oauth2.Token, error)
	Refresh(ctx context.Context, pod auth.PodAuthenticator, tok *oauth2.Token) (*oauth2.Token, error)
}

// Dispatcher consumes gateway traffic. Satisfied by router.Router.
type Dispatcher interface {
	Route(event string, payload json.RawMessage, pod string)
	Hydrate(pod string, ready *model.Ready)
}

// Evictor drops a pod's state. Every store implements it.
type Evictor interface {
	EvictPod(pod string)
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Credentials Credentials
	Dispatcher  Dispatcher
	Directory   *Directory
	Evictors    []Evictor

	// NewClient builds a pod REST client. tokens is nil for the login
	// client. Defaults to api.NewClient.
	NewClient func(baseURL string, tokens oauth2.TokenSource) *api.Client

	// OnStatus, if set, observes every Conn status transition.
	OnStatus func(pod string, s connection.Status)
}

type podSession struct {
	pod    Pod
	conn   *connection.Conn
	holder *auth.Holder
	login  *api.Client
	unsub  func()

	attempt      int
	retryTimer   *time.Timer
	refreshTimer *time.Timer
}

// Orchestrator owns every pod session. All methods are safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*podSession
	closed   bool
	now      func() time.Time
}

// New creates an orchestrator. Background retries and refreshes run until
// Close.
func New(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.NewClient == nil {
		deps.NewClient = func(baseURL string, tokens oauth2.TokenSource) *api.Client {
			return api.NewClient(baseURL, tokens, api.WithLogger(logger))
		}
	}
	if deps.Directory == nil {
		deps.Directory = NewDirectory()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*podSession),
		now:      time.Now,
	}
}

// Directory returns the directory the orchestrator registers pods in.
func (o *Orchestrator) Directory() *Directory {
	return o.deps.Directory
}

// Status returns the connection status of pod.
func (o *Orchestrator) Status(pod string) (connection.Status, bool) {
	o.mu.Lock()
	s, ok := o.sessions[pod]
	o.mu.Unlock()

	if !ok {
		return connection.StatusDisconnected, false
	}
	return s.conn.Status(), true
}

// Pods returns the ids of pods with a session, sorted.
func (o *Orchestrator) Pods() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// ConnectToPod creates a session for pod and runs the first connect
// attempt. If it fails, the error is returned and retries continue in the
// background until one succeeds or RetryMaxAttempts is exhausted, after
// which the session is torn down. Connecting a pod that already has a
// session is a no-op.
func (o *Orchestrator) ConnectToPod(ctx context.Context, pod Pod) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if _, ok := o.sessions[pod.ID]; ok {
		o.mu.Unlock()
		return nil
	}

	s := o.newSessionLocked(pod)
	o.sessions[pod.ID] = s
	o.mu.Unlock()

	o.logger.Info("connecting to pod", "pod", pod.ID, "base_url", pod.BaseURL)
	return o.attempt(ctx, s)
}

func (o *Orchestrator) newSessionLocked(pod Pod) *podSession {
	logger := o.logger.With("pod", pod.ID)
	holder := &auth.Holder{}

	s := &podSession{
		pod:    pod,
		holder: holder,
		login:  o.deps.NewClient(pod.BaseURL, nil),
	}
	s.conn = connection.New(pod.ID, o.cfg.Gateway, connection.Handlers{
		OnReady: func(ready *model.Ready) {
			o.deps.Directory.setUser(pod.ID, ready.User.ID)
			if o.deps.Dispatcher != nil {
				o.deps.Dispatcher.Hydrate(pod.ID, ready)
			}
		},
		OnDispatch: func(d model.Dispatch) {
			if o.deps.Dispatcher != nil {
				o.deps.Dispatcher.Route(d.Event, d.Data, pod.ID)
			}
		},
		OnRejected: func(err error) {
			o.reacquire(s, err)
		},
	}, logger)
	s.unsub = s.conn.Subscribe(func(st connection.Status) {
		logger.Info("pod status", "status", st)
		if o.deps.OnStatus != nil {
			o.deps.OnStatus(pod.ID, st)
		}
	})

	o.deps.Directory.register(pod.ID, o.deps.NewClient(pod.BaseURL, holder))
	return s
}

// attempt runs one acquire+connect cycle and schedules the next one on
// failure.
func (o *Orchestrator) attempt(ctx context.Context, s *podSession) error {
	tok, err := o.deps.Credentials.Acquire(ctx, s.pod.ID, s.login)
	if err == nil {
		s.holder.Set(tok)
		if o.live(s) {
			_, err = s.conn.Connect(ctx, auth.WSURL(tok), auth.WSTicket(tok))
		}
	}

	o.mu.Lock()
	if cur := o.sessions[s.pod.ID]; cur != s {
		o.mu.Unlock()
		// Torn down while connecting. A READY may have hydrated the
		// stores after eviction, so evict again unless a new session
		// owns the pod.
		s.conn.Disconnect()
		if cur == nil {
			for _, e := range o.deps.Evictors {
				e.EvictPod(s.pod.ID)
			}
		}
		return fmt.Errorf("connect %s: %w", s.pod.ID, ErrUnknownPod)
	}

	if err != nil {
		if s.attempt >= o.cfg.RetryMaxAttempts {
			o.removeLocked(s)
			o.mu.Unlock()

			o.logger.Error("giving up on pod", "pod", s.pod.ID, "attempts", s.attempt+1, "error", err)
			o.teardown(s)
			return fmt.Errorf("connect %s: %w", s.pod.ID, err)
		}

		delay := o.retryDelay(s.attempt)
		s.attempt++
		s.retryTimer = time.AfterFunc(delay, func() {
			_ = o.attempt(o.ctx, s)
		})
		o.mu.Unlock()

		o.logger.Warn("pod connect failed, retrying",
			"pod", s.pod.ID,
			"attempt", s.attempt,
			"delay", delay,
			"error", err,
		)
		return fmt.Errorf("connect %s: %w", s.pod.ID, err)
	}

	s.attempt = 0
	s.retryTimer = nil
	o.scheduleRefreshLocked(s, tok)
	o.mu.Unlock()

	o.logger.Info("pod connected", "pod", s.pod.ID, "expires", tok.Expiry)
	return nil
}

// reacquire restarts a session whose reconnect the gateway rejected. The
// ticket is likely spent, so it goes back through Acquire under the capped
// retry of attempt.
func (o *Orchestrator) reacquire(s *podSession, cause error) {
	o.mu.Lock()
	if o.sessions[s.pod.ID] != s {
		o.mu.Unlock()
		return
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	s.attempt = 0
	o.mu.Unlock()

	o.logger.Warn("gateway rejected reconnect, re-acquiring credentials", "pod", s.pod.ID, "error", cause)
	s.conn.Disconnect()
	_ = o.attempt(o.ctx, s)
}

// retryDelay is min(RetryInitial × 2^attempt, RetryMax).
func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	return connection.Backoff(attempt, o.cfg.RetryInitial, 2, o.cfg.RetryMax)
}

func (o *Orchestrator) live(s *podSession) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[s.pod.ID] == s
}

func (o *Orchestrator) scheduleRefreshLocked(s *podSession, tok *oauth2.Token) {
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	now := o.now()
	at := auth.RefreshAt(tok, o.cfg.RefreshLead, now)
	if at.IsZero() {
		return
	}
	s.refreshTimer = time.AfterFunc(at.Sub(now), func() { o.refresh(s) })
}

// refresh renews the pod token. Failure ends the session.
func (o *Orchestrator) refresh(s *podSession) {
	o.mu.Lock()
	if o.sessions[s.pod.ID] != s {
		o.mu.Unlock()
		return
	}
	s.refreshTimer = nil
	o.mu.Unlock()

	tok, err := o.deps.Credentials.Refresh(o.ctx, s.login, s.holder.Current())
	if err != nil {
		o.logger.Error("token refresh failed, disconnecting pod", "pod", s.pod.ID, "error", err)
		o.disconnect(s)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessions[s.pod.ID] != s {
		return
	}
	s.holder.Set(tok)
	s.conn.SetCredentials(auth.WSURL(tok), auth.WSTicket(tok))
	o.scheduleRefreshLocked(s, tok)
	o.logger.Info("token refreshed", "pod", s.pod.ID, "expires", tok.Expiry)
}

// DisconnectFromPod ends the pod's session and evicts its state from every
// store. Unknown pods are ignored.
func (o *Orchestrator) DisconnectFromPod(pod string) {
	o.mu.Lock()
	s, ok := o.sessions[pod]
	o.mu.Unlock()

	if ok {
		o.disconnect(s)
	}
}

func (o *Orchestrator) disconnect(s *podSession) {
	o.mu.Lock()
	if o.sessions[s.pod.ID] != s {
		o.mu.Unlock()
		return
	}
	o.removeLocked(s)
	o.mu.Unlock()

	o.teardown(s)
	o.logger.Info("disconnected from pod", "pod", s.pod.ID)
}

// removeLocked unregisters s and stops its timers.
func (o *Orchestrator) removeLocked(s *podSession) {
	delete(o.sessions, s.pod.ID)
	o.deps.Directory.remove(s.pod.ID)
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
}

// teardown disconnects s and evicts its pod. Runs without o.mu.
func (o *Orchestrator) teardown(s *podSession) {
	s.conn.Disconnect()
	s.unsub()
	for _, e := range o.deps.Evictors {
		e.EvictPod(s.pod.ID)
	}
}

// ConnectAll connects pods concurrently. It returns the first error; pods
// that failed keep retrying in the background.
func (o *Orchestrator) ConnectAll(ctx context.Context, pods []Pod) error {
	var g errgroup.Group
	for _, p := range pods {
		g.Go(func() error {
			return o.ConnectToPod(ctx, p)
		})
	}
	return g.Wait()
}

// Close disconnects every pod and stops background work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	sessions := make([]*podSession, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.Unlock()

	o.cancel()
	for _, s := range sessions {
		o.disconnect(s)
	}
}
