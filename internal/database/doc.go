// Package database manages the PostgreSQL pool used by the message archive.
//
// The archive keeps one row per (pod_id, message_id):
//   - Creates and edits upsert the row with the latest content
//   - Deletes set deleted_at and keep the row
package database
