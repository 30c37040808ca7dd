// Package api provides REST clients for pods and for the home service.
//
// Pod endpoints (rooted at the pod base URL):
//   - GET/POST /channels/{id}/messages
//   - PATCH/DELETE /channels/{cid}/messages/{mid}
//   - PUT/DELETE /channels/{cid}/messages/{mid}/reactions/{emoji}/@me
//   - GET /channels/{cid}/pins, PUT/DELETE /channels/{cid}/pins/{mid}
//   - GET /communities, GET/POST /communities/{id}/channels, GET /communities/{id}/members
//   - POST /auth/login, POST /auth/refresh
//
// Home service:
//   - POST /federation/assertion
//
// GET requests are retried on 5xx/429 with jittered exponential backoff.
// Mutations are sent once.
package api
