package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/podsync/internal/api"
	"github.com/rickgao/podsync/internal/auth"
	"github.com/rickgao/podsync/internal/config"
	"github.com/rickgao/podsync/internal/connection"
	"github.com/rickgao/podsync/internal/database"
	"github.com/rickgao/podsync/internal/model"
	"github.com/rickgao/podsync/internal/poller"
	"github.com/rickgao/podsync/internal/router"
	"github.com/rickgao/podsync/internal/session"
	"github.com/rickgao/podsync/internal/store/community"
	"github.com/rickgao/podsync/internal/store/messages"
	"github.com/rickgao/podsync/internal/store/pins"
	"github.com/rickgao/podsync/internal/store/presence"
	"github.com/rickgao/podsync/internal/store/typing"
	"github.com/rickgao/podsync/internal/version"
	"github.com/rickgao/podsync/internal/writer"
)

// preloadTimeout bounds the initial window fetch of one channel after READY.
const preloadTimeout = 30 * time.Second

// App is a running podsync client.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Directory   *session.Directory
	Sessions    *session.Orchestrator
	Router      router.Router
	Messages    *messages.Store
	Communities *community.Store
	Pins        *pins.Store
	Typing      *typing.Store
	Presence    *presence.Store

	observe func(pod, event string, payload json.RawMessage)

	sweep  *poller.Poller
	writer *writer.MessageWriter
	pool   *pgxpool.Pool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats is a point-in-time view of the running client.
type Stats struct {
	Pods   map[string]connection.Status
	Router router.Stats
	Sweep  poller.Stats
	Writer writer.Metrics
}

// Option configures an App.
type Option func(*App)

// WithObserver calls fn for every gateway dispatch before it is routed.
// fn runs on the pod's reader goroutine.
func WithObserver(fn func(pod, event string, payload json.RawMessage)) Option {
	return func(a *App) {
		a.observe = fn
	}
}

// New builds every component from cfg. Nothing connects until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		Directory: session.NewDirectory(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Messages = messages.New(messages.Config{PageSize: cfg.API.PageSize}, messages.Deps{
		Client: func(pod string) (messages.API, error) {
			c, err := a.Directory.Client(pod)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		CurrentUser: a.Directory.CurrentUser,
	}, logger.With("component", "messages"))

	a.Communities = community.New(community.Deps{
		Client: func(pod string) (community.API, error) {
			c, err := a.Directory.Client(pod)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}, logger.With("component", "community"))

	a.Pins = pins.New(pins.Deps{
		Client: func(pod string) (pins.API, error) {
			c, err := a.Directory.Client(pod)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}, logger.With("component", "pins"))

	a.Typing = typing.New(typing.Config{
		TTL:           cfg.Typing.TTL,
		PruneInterval: cfg.Typing.PruneInterval,
	}, typing.Deps{CurrentUser: a.Directory.CurrentUser}, logger.With("component", "typing"))

	a.Presence = presence.New()

	a.Router = router.New(router.Config{
		Archive:           cfg.Archive.Enabled,
		ArchiveQueueSize:  cfg.Archive.BufferSize,
		ArchiveQueueLimit: cfg.Archive.BufferSize * 16,
	}, router.Stores{
		Messages:    a.Messages,
		Communities: a.Communities,
		Typing:      a.Typing,
		Pins:        a.Pins,
		Presence:    a.Presence,
	}, logger.With("component", "router"))

	home := api.NewHomeClient(cfg.Home.URL, cfg.Home.Token, a.clientOptions()...)

	a.Sessions = session.New(session.Config{
		RetryMaxAttempts: cfg.Session.RetryMaxAttempts,
		RetryInitial:     cfg.Session.RetryInitial,
		RetryMax:         cfg.Session.RetryMax,
		RefreshLead:      cfg.Session.RefreshLead,
		Gateway: connection.Config{
			ReconnectInitial: cfg.Gateway.ReconnectInitial,
			ReconnectFactor:  cfg.Gateway.ReconnectFactor,
			ReconnectMax:     cfg.Gateway.ReconnectMax,
			HandshakeTimeout: cfg.Gateway.HandshakeTimeout,
			WriteTimeout:     cfg.Gateway.WriteTimeout,
		},
	}, session.Deps{
		Credentials: auth.NewExchanger(home),
		Dispatcher:  &preloader{Router: a.Router, app: a},
		Directory:   a.Directory,
		Evictors:    []session.Evictor{a.Messages, a.Communities, a.Pins, a.Typing, a.Presence},
		NewClient: func(baseURL string, tokens oauth2.TokenSource) *api.Client {
			return api.NewClient(baseURL, tokens, a.clientOptions()...)
		},
		OnStatus: func(pod string, s connection.Status) {
			logger.Info("pod status", "pod", pod, "status", s)
		},
	}, logger.With("component", "session"))

	if cfg.Sweep.Interval > 0 {
		a.sweep = poller.New(poller.Config{
			Interval:    cfg.Sweep.Interval,
			Concurrency: cfg.Sweep.Concurrency,
			Timeout:     cfg.API.Timeout,
		}, a.Messages, logger.With("component", "sweep"))
	}

	return a
}

func (a *App) clientOptions() []api.ClientOption {
	return []api.ClientOption{
		api.WithLogger(a.logger.With("component", "api")),
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithRetries(a.cfg.API.MaxRetries, a.cfg.API.RetryBackoff),
		api.WithUserAgent(a.cfg.Client.Name + "/" + version.Version),
	}
}

// Start opens the archive if enabled, starts background work and connects
// every configured pod. Pods that fail their first attempt keep retrying in
// the background and do not fail Start.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if a.cfg.Archive.Enabled {
		if err := a.startArchive(a.ctx); err != nil {
			a.cancel()
			return err
		}
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Typing.Run(a.ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.watchCommunities(a.ctx)
	}()

	if a.sweep != nil {
		if err := a.sweep.Start(a.ctx); err != nil {
			return fmt.Errorf("start sweep: %w", err)
		}
	}

	pods := make([]session.Pod, 0, len(a.cfg.Pods))
	for _, p := range a.cfg.Pods {
		pods = append(pods, session.Pod{ID: p.ID, BaseURL: p.BaseURL})
	}
	if err := a.Sessions.ConnectAll(a.ctx, pods); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return err
		}
		a.logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	a.logger.Info("podsync started", "pods", len(pods), "archive", a.cfg.Archive.Enabled)
	return nil
}

func (a *App) startArchive(ctx context.Context) error {
	db := a.cfg.Archive.Database
	a.logger.Info("connecting to archive database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return err
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.pool = pool

	a.writer = writer.NewMessageWriter(writer.Config{
		BatchSize:     a.cfg.Archive.BatchSize,
		FlushInterval: a.cfg.Archive.FlushInterval,
	}, a.Router.Archive(), pool, a.logger.With("component", "writer"))
	return a.writer.Start(ctx)
}

// watchCommunities logs community changes until ctx is done.
func (a *App) watchCommunities(ctx context.Context) {
	changes := a.Communities.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changes:
			a.logger.Debug("community changed",
				"pod", c.Pod,
				"community", c.CommunityID,
				"kind", c.Kind,
			)
		}
	}
}

// Stats returns the current client statistics.
func (a *App) Stats() Stats {
	st := Stats{
		Pods:   make(map[string]connection.Status),
		Router: a.Router.Stats(),
	}
	for _, pod := range a.Sessions.Pods() {
		if s, ok := a.Sessions.Status(pod); ok {
			st.Pods[pod] = s
		}
	}
	if a.sweep != nil {
		st.Sweep = a.sweep.Stats()
	}
	if a.writer != nil {
		st.Writer = a.writer.Stats()
	}
	return st
}

// Stop disconnects every pod, then stops background work and flushes the
// archive.
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("stopping podsync")

	a.Sessions.Close()

	var errs []error
	if a.sweep != nil {
		if err := a.sweep.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop sweep: %w", err))
		}
	}
	if a.writer != nil {
		if err := a.writer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop writer: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}

// preloader hydrates through the router, then loads the newest page of
// every text channel of the pod in the background.
type preloader struct {
	router.Router
	app *App
}

func (p *preloader) Route(event string, payload json.RawMessage, pod string) {
	if p.app.observe != nil {
		p.app.observe(pod, event, payload)
	}
	p.Router.Route(event, payload, pod)
}

func (p *preloader) Hydrate(pod string, ready *model.Ready) {
	if p.app.observe != nil {
		if data, err := json.Marshal(ready); err == nil {
			p.app.observe(pod, model.EventReady, data)
		}
	}
	p.Router.Hydrate(pod, ready)
	if p.app.ctx == nil || p.app.ctx.Err() != nil {
		return
	}
	p.app.wg.Add(1)
	go func() {
		defer p.app.wg.Done()
		p.app.preload(p.app.ctx, pod)
	}()
}

func (a *App) preload(ctx context.Context, pod string) {
	var g errgroup.Group
	g.SetLimit(max(1, a.cfg.Sweep.Concurrency))

	for _, ch := range a.Communities.TextChannels(pod) {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, preloadTimeout)
			defer cancel()
			if err := a.Messages.FetchMessages(fctx, pod, ch.ID, messages.FetchOptions{}); err != nil {
				a.logger.Warn("preload failed", "pod", pod, "channel", ch.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
