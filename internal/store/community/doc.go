// Package community holds community metadata, channel and role lists and
// member rosters for every connected pod.
//
// Sources of truth, in order of precedence:
//   - READY snapshot: replaces community fields, channels and roles
//   - Gateway events: channel create/update/delete, community patches, member join/leave/update
//   - REST fetches: communities, channels, members, channel creation
//
// Channel and role lists are always sorted by position, then id. Member
// counts never go below zero and a repeated join for a known member does
// not change the count.
//
// Every mutation publishes a Change on a buffered channel. Sends never
// block: a slow consumer misses changes, not state.
package community
