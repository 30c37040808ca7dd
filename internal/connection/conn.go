package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rickgao/podsync/internal/model"
)

// Conn is the gateway connection for one pod.
type Conn struct {
	cfg      Config
	pod      string
	handlers Handlers
	logger   *slog.Logger

	mu             sync.Mutex
	status         Status
	gen            uint64 // bumped whenever the current transport is replaced or dropped
	tr             *transport
	hbStop         chan struct{}
	inflight       *attempt
	url            string
	ticket         string
	seq            int64
	reconnects     int
	intentional    bool
	reconnectTimer *time.Timer

	// deliverMu is held while a handler runs for the current generation.
	deliverMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(Status)
	nextSub int
}

// attempt is one dial+IDENTIFY+READY cycle. Resolved exactly once under Conn.mu.
type attempt struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	ready  *model.Ready
	err    error
}

func (a *attempt) resolveLocked(ready *model.Ready, err error) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	a.ready = ready
	a.err = err
	close(a.done)
	return true
}

// New creates a disconnected Conn for pod.
func New(pod string, cfg Config, handlers Handlers, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}

	return &Conn{
		cfg:      cfg,
		pod:      pod,
		handlers: handlers,
		logger:   logger.With("pod", pod),
		status:   StatusDisconnected,
		subs:     make(map[int]func(Status)),
	}
}

// Status returns the current status.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Seq returns the last dispatch sequence seen.
func (c *Conn) Seq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Attempt returns the reconnect attempt counter.
func (c *Conn) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// SetCredentials replaces the URL and ticket used by later reconnects.
func (c *Conn) SetCredentials(url, ticket string) {
	c.mu.Lock()
	c.url = url
	c.ticket = ticket
	c.mu.Unlock()
}

// Subscribe registers fn for status transitions and returns a function
// that removes it. fn is called synchronously and must not block.
func (c *Conn) Subscribe(fn func(Status)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Conn) notify(s Status) {
	c.subsMu.Lock()
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// setStatusLocked records s and reports whether subscribers must be notified.
func (c *Conn) setStatusLocked(s Status) bool {
	if c.status == s {
		return false
	}
	c.logger.Debug("status change", "from", c.status, "to", s)
	c.status = s
	return true
}

// Connect opens a transport to url, sends IDENTIFY with ticket and waits
// for READY. A call made while another is in flight supersedes it.
func (c *Conn) Connect(ctx context.Context, url, ticket string) (*model.Ready, error) {
	c.mu.Lock()
	if c.inflight != nil {
		c.inflight.resolveLocked(nil, ErrSuperseded)
		c.inflight.cancel()
		c.inflight = nil
	}
	c.stopReconnectLocked()
	c.detachLocked()
	c.url = url
	c.ticket = ticket
	c.intentional = false
	a := c.newAttemptLocked(ctx)
	changed := c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	if changed {
		c.notify(StatusConnecting)
	}

	ready, err := c.run(a, url, ticket)
	if err != nil {
		c.mu.Lock()
		if c.inflight == a {
			c.inflight = nil
		}
		changed := false
		// A superseding Connect or a Disconnect owns the status already.
		if !errors.Is(err, ErrSuperseded) && !errors.Is(err, ErrDisconnected) {
			changed = c.setStatusLocked(StatusDisconnected)
		}
		c.mu.Unlock()
		if changed {
			c.notify(StatusDisconnected)
		}
		return nil, err
	}
	return ready, nil
}

// Disconnect closes the connection and suppresses reconnection. Idempotent.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.stopReconnectLocked()
	if c.inflight != nil {
		c.inflight.resolveLocked(nil, ErrDisconnected)
		c.inflight.cancel()
		c.inflight = nil
	}
	c.detachLocked()
	changed := c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()

	// Wait out a handler already running; later ones see the new generation.
	c.deliverMu.Lock()
	c.deliverMu.Unlock()

	if changed {
		c.logger.Info("disconnected")
		c.notify(StatusDisconnected)
	}
}

// newAttemptLocked starts a new generation with its own handshake deadline.
func (c *Conn) newAttemptLocked(parent context.Context) *attempt {
	c.gen++
	ctx, cancel := context.WithTimeoutCause(parent, c.cfg.HandshakeTimeout, ErrHandshakeTimeout)
	a := &attempt{gen: c.gen, cancel: cancel, done: make(chan struct{})}
	c.inflight = a
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.gen == a.gen && c.inflight == a {
				err := context.Cause(ctx)
				if errors.Is(err, context.Canceled) && parent.Err() != nil {
					err = parent.Err()
				}
				if a.resolveLocked(nil, err) {
					c.inflight = nil
					c.detachLocked()
				}
			}
			c.mu.Unlock()
		case <-a.done:
		}
	}()
	return a
}

// detachLocked drops the current transport so its reader and heartbeat
// become stale, then closes it.
func (c *Conn) detachLocked() {
	c.gen++
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	if c.tr != nil {
		tr := c.tr
		c.tr = nil
		go tr.close()
	}
}

func (c *Conn) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// run dials, installs the transport and waits for the attempt to resolve.
func (c *Conn) run(a *attempt, url, ticket string) (*model.Ready, error) {
	defer a.cancel()

	dialCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.done:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	tr, err := dial(dialCtx, url, c.cfg)
	cancel()
	if err != nil {
		c.mu.Lock()
		a.resolveLocked(nil, err)
		c.mu.Unlock()
		<-a.done
		return nil, a.err
	}

	c.mu.Lock()
	if c.gen != a.gen {
		c.mu.Unlock()
		tr.close()
		<-a.done
		return nil, a.err
	}
	c.tr = tr
	c.mu.Unlock()

	go c.readLoop(tr, a)

	if err := tr.writeJSON(frame{Op: OpIdentify, D: identifyData{Ticket: ticket}}); err != nil {
		c.mu.Lock()
		if a.resolveLocked(nil, fmt.Errorf("send identify: %w", err)) && c.gen == a.gen {
			c.inflight = nil
			c.detachLocked()
		}
		c.mu.Unlock()
	}

	<-a.done
	return a.ready, a.err
}

// readLoop reads frames from tr until it closes.
func (c *Conn) readLoop(tr *transport, a *attempt) {
	sawReady := false

	for {
		data, err := tr.read()
		if err != nil {
			c.handleClose(a, sawReady, err)
			return
		}

		if !gjson.ValidBytes(data) {
			c.logger.Debug("dropping malformed frame", "size", len(data))
			continue
		}

		res := gjson.GetManyBytes(data, "op", "t", "s", "d")
		switch op := res[0].String(); op {
		case OpHeartbeatAck:
			c.logger.Debug("heartbeat ack")

		case OpDispatch:
			c.mu.Lock()
			if c.gen != a.gen {
				c.mu.Unlock()
				return
			}
			if res[2].Exists() {
				c.seq = res[2].Int()
			}
			c.mu.Unlock()

			event := res[1].String()
			payload := json.RawMessage(res[3].Raw)

			if event == model.EventReady {
				if !c.handleReady(tr, a, payload) {
					tr.close()
					return
				}
				sawReady = true
				continue
			}
			if !sawReady {
				c.logger.Debug("dispatch before READY dropped", "event", event)
				continue
			}
			if c.handlers.OnDispatch != nil {
				d := model.Dispatch{Event: event, Seq: res[2].Int(), Data: payload}
				if !c.deliver(a.gen, func() { c.handlers.OnDispatch(d) }) {
					return
				}
			}

		default:
			c.logger.Debug("unknown opcode", "op", op)
		}
	}
}

// deliver runs fn if gen is still current. Disconnect waits for a running
// fn, so no handler runs for a dropped transport after Disconnect returns.
func (c *Conn) deliver(gen uint64, fn func()) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	current := c.gen == gen
	c.mu.Unlock()
	if current {
		fn()
	}
	return current
}

// handleReady completes the handshake. Returns false if the transport
// is stale or the payload is unusable.
func (c *Conn) handleReady(tr *transport, a *attempt, payload json.RawMessage) bool {
	var ready model.Ready
	if err := json.Unmarshal(payload, &ready); err != nil {
		c.mu.Lock()
		if a.resolveLocked(nil, fmt.Errorf("parse READY: %w", err)) && c.gen == a.gen {
			c.inflight = nil
			c.detachLocked()
		}
		c.mu.Unlock()
		return false
	}

	current := c.deliver(a.gen, func() {
		if c.handlers.OnReady != nil {
			c.handlers.OnReady(&ready)
		}
	})
	if !current {
		return false
	}

	c.mu.Lock()
	if c.gen != a.gen {
		c.mu.Unlock()
		return false
	}
	c.reconnects = 0
	if c.inflight == a {
		c.inflight = nil
	}
	a.resolveLocked(&ready, nil)
	if c.hbStop != nil {
		close(c.hbStop)
	}
	stop := make(chan struct{})
	c.hbStop = stop
	changed := c.setStatusLocked(StatusConnected)
	c.mu.Unlock()

	interval := time.Duration(ready.HeartbeatInterval) * time.Millisecond
	if interval > 0 {
		go c.heartbeatLoop(tr, a.gen, interval, stop)
	}

	c.logger.Info("gateway ready",
		"session", ready.SessionID,
		"communities", len(ready.Communities),
		"heartbeat_interval", interval,
	)
	if changed {
		c.notify(StatusConnected)
	}
	return true
}

// handleClose reacts to the end of tr's read loop.
func (c *Conn) handleClose(a *attempt, sawReady bool, err error) {
	c.mu.Lock()
	if c.gen != a.gen {
		// Detached transport; whoever replaced it owns the status.
		c.mu.Unlock()
		return
	}

	if !sawReady {
		if a.resolveLocked(nil, fmt.Errorf("%w: %v", ErrClosedBeforeReady, err)) {
			c.inflight = nil
		}
		c.detachLocked()
		c.mu.Unlock()
		return
	}

	c.logger.Warn("gateway closed unexpectedly", "error", err)
	c.detachLocked()
	status := c.scheduleReconnectLocked()
	changed := c.setStatusLocked(status)
	c.mu.Unlock()

	if changed {
		c.notify(status)
	}
}

// scheduleReconnectLocked arms the reconnect timer and returns the status
// the Conn should be in afterwards.
func (c *Conn) scheduleReconnectLocked() Status {
	if c.intentional {
		return StatusDisconnected
	}
	if c.url == "" || c.ticket == "" {
		c.logger.Warn("no credentials for reconnect")
		return StatusDisconnected
	}

	delay := Backoff(c.reconnects, c.cfg.ReconnectInitial, c.cfg.ReconnectFactor, c.cfg.ReconnectMax)
	c.reconnects++
	gen := c.gen
	c.logger.Info("scheduling reconnect", "attempt", c.reconnects, "delay", delay)

	c.stopReconnectLocked()
	c.reconnectTimer = time.AfterFunc(delay, func() { c.reconnect(gen) })
	return StatusReconnecting
}

// reconnect runs one scheduled attempt. gen is the generation at
// scheduling time; any change since then cancels the attempt.
func (c *Conn) reconnect(gen uint64) {
	c.mu.Lock()
	if c.intentional || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	url, ticket := c.url, c.ticket
	a := c.newAttemptLocked(context.Background())
	c.mu.Unlock()

	c.logger.Info("attempting reconnection", "attempt", c.Attempt())

	if _, err := c.run(a, url, ticket); err != nil {
		c.logger.Warn("reconnection failed", "error", err)

		c.mu.Lock()
		if c.inflight == a {
			c.inflight = nil
		}
		// Superseded by Connect or stopped by Disconnect.
		if errors.Is(err, ErrSuperseded) || errors.Is(err, ErrDisconnected) || c.intentional {
			c.mu.Unlock()
			return
		}
		if rejected := c.handlers.OnRejected; rejected != nil && errors.Is(err, ErrClosedBeforeReady) {
			c.mu.Unlock()
			c.logger.Warn("reconnect rejected, handing off", "attempt", c.Attempt())
			rejected(err)
			return
		}
		status := c.scheduleReconnectLocked()
		changed := c.setStatusLocked(status)
		c.mu.Unlock()
		if changed {
			c.notify(status)
		}
		return
	}

	c.logger.Info("reconnected")
}

// heartbeatLoop sends HEARTBEAT frames until stop is closed.
func (c *Conn) heartbeatLoop(tr *transport, gen uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			seq := c.seq
			c.mu.Unlock()

			if err := tr.writeJSON(frame{Op: OpHeartbeat, D: heartbeatData{Seq: seq}}); err != nil {
				c.logger.Debug("failed to send heartbeat", "error", err)
			}
		}
	}
}
