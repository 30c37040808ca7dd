// Package session owns the set of live pod sessions.
//
// For each pod the Orchestrator:
//   - Obtains an assertion from the home service and logs in to the pod
//   - Connects the pod's gateway Conn with the returned URL and ticket
//   - Retries the whole sequence with capped exponential backoff on failure
//   - Refreshes the pod token ahead of expiry and hands the new ticket to the Conn
//   - Tears the session down and evicts the pod from every store on disconnect
//
// Per-pod resources that stores need (REST client, current user) live in
// a Directory owned by the caller and shared with the stores.
package session
