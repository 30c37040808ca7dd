package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/podsync/internal/store/messages"
)

// Source provides the channels to sweep and fetches what they missed.
type Source interface {
	LiveChannels() []messages.ChannelRef
	CatchUp(ctx context.Context, pod, channelID string) error
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Sweep interval (default: 30s)
	Concurrency int           // Max concurrent catch-ups (default: 8)
	Timeout     time.Duration // Per-channel timeout (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Concurrency: 8,
		Timeout:     15 * time.Second,
	}
}

// Stats contains sweep statistics.
type Stats struct {
	Sweeps   int64
	CaughtUp int64
	Errors   int64
}

// Poller periodically catches up live channel windows via REST.
type Poller struct {
	cfg    Config
	source Source
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sweeps   atomic.Int64
	caughtUp atomic.Int64
	errors   atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, source Source, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:    cfg,
		source: source,
		logger: logger,
	}
}

// Start begins the sweep loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("reconciliation sweep started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("reconciliation sweep stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	return Stats{
		Sweeps:   p.sweeps.Load(),
		CaughtUp: p.caughtUp.Load(),
		Errors:   p.errors.Load(),
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.sweep(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.sweep(p.ctx)
		}
	}
}

// sweep catches up every live channel. Individual failures are logged and
// counted; they never abort the cycle.
func (p *Poller) sweep(ctx context.Context) {
	start := time.Now()
	p.sweeps.Add(1)

	channels := p.source.LiveChannels()
	if len(channels) == 0 {
		p.logger.Debug("no live channels to sweep")
		return
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	var fetched, failed atomic.Int64
	for _, ch := range channels {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.catchUp(ctx, ch); err != nil {
				p.logger.Warn("catch-up failed",
					"pod", ch.Pod,
					"channel", ch.ChannelID,
					"err", err,
				)
				failed.Add(1)
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	p.caughtUp.Add(fetched.Load())
	p.errors.Add(failed.Load())

	p.logger.Debug("sweep complete",
		"channels", len(channels),
		"caught_up", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

func (p *Poller) catchUp(ctx context.Context, ch messages.ChannelRef) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.source.CatchUp(ctx, ch.Pod, ch.ChannelID)
}
