// Package connection implements the per-pod gateway connection.
//
// A Conn:
//   - Owns at most one gorilla/websocket transport at a time
//   - Sends IDENTIFY on open and resolves Connect on the READY dispatch
//   - Sends HEARTBEAT at the server interval carrying the last dispatch sequence
//   - Reconnects with exponential backoff after an unexpected close
//   - Delivers dispatches in receipt order from a single reader goroutine
//
// Status transitions are disconnected → connecting → connected →
// reconnecting → (connecting | disconnected).
package connection
