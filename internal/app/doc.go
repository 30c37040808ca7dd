// Package app wires a podsync client together from configuration.
//
// An App owns:
//   - The pod directory and session orchestrator
//   - The message, community, pin, typing and presence stores
//   - The dispatch router, with READY channel preloading
//   - The reconciliation sweep and the optional PostgreSQL archive
package app
