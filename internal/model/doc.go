// Package model defines the chat entities shared across podsync packages.
//
// The same types are used on the wire (REST responses and gateway payloads)
// and inside the stores.
//
// Conventions:
//   - IDs: server-assigned decimal strings, time-ordered (see CompareIDs)
//   - Timestamps: time.Time, RFC 3339 on the wire
//   - Store keys: always built with the Key constructors in keys.go
package model
