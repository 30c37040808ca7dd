// Package router applies gateway dispatches to the entity stores.
//
// Responsibilities:
//   - Decode each dispatch payload into its model type
//   - Call the owning store's Gateway* method
//   - Hydrate stores from READY snapshots
//   - Count received, routed, unknown and malformed dispatches
//   - Optionally copy confirmed message events onto an archive queue
//
// Unknown events and malformed payloads are counted and dropped; routing
// never panics on server input.
package router
