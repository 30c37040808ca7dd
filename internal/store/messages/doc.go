// Package messages holds per-channel message windows, the optimistic send
// pipeline and per-message reaction aggregates.
//
// A window is a contiguous, ascending, duplicate-free slice of a channel's
// server history. It grows only from its current boundaries: older pages
// are prepended with a before-cursor equal to the oldest id, newer pages
// are appended with an after-cursor equal to the newest id, and gateway
// creates are appended only while the window is at the live tail.
//
// Pending messages are an overlay keyed by nonce. They never enter a
// window and are removed exactly once: by the REST response, by a gateway
// create carrying the same nonce, or by a gateway create from the same
// author with identical content (oldest pending first).
package messages
