package connection

import (
	"errors"
	"time"

	"github.com/rickgao/podsync/internal/model"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrSuperseded        = errors.New("connect superseded by a newer call")
	ErrDisconnected      = errors.New("disconnected by client")
	ErrClosedBeforeReady = errors.New("connection closed before READY")
	ErrHandshakeTimeout  = errors.New("handshake timeout waiting for READY")
)

// Status is the lifecycle state of a Conn.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Gateway opcodes.
const (
	OpIdentify     = "IDENTIFY"
	OpHeartbeat    = "HEARTBEAT"
	OpDispatch     = "DISPATCH"
	OpHeartbeatAck = "HEARTBEAT_ACK"
)

// frame is an outbound gateway frame.
type frame struct {
	Op string `json:"op"`
	D  any    `json:"d,omitempty"`
}

type identifyData struct {
	Ticket string `json:"ticket"`
}

type heartbeatData struct {
	Seq int64 `json:"seq"`
}

// Config configures a Conn.
type Config struct {
	ReconnectInitial time.Duration // First reconnect delay
	ReconnectFactor  float64       // Multiplier per attempt
	ReconnectMax     time.Duration // Delay cap
	HandshakeTimeout time.Duration // Dial + IDENTIFY + READY
	WriteTimeout     time.Duration // Write deadline for IDENTIFY/HEARTBEAT
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectInitial: 1 * time.Second,
		ReconnectFactor:  2,
		ReconnectMax:     30 * time.Second,
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Handlers receive gateway events. OnReady and OnDispatch are called from
// the reader goroutine, so a slow handler delays later frames of the same
// pod. They must not call Disconnect.
type Handlers struct {
	// OnReady is called for every READY, before Connect returns and before
	// any later dispatch of that session.
	OnReady func(ready *model.Ready)

	// OnDispatch is called for every non-READY dispatch in receipt order.
	OnDispatch func(d model.Dispatch)

	// OnRejected is called when the server closes a reconnect before READY.
	// The Conn stops reconnecting and leaves recovery to the caller, which
	// usually needs fresh credentials. When nil the Conn keeps backing off
	// with the ticket it has.
	OnRejected func(err error)
}
