// Package writer persists archived message events to PostgreSQL.
//
// The MessageWriter drains the router's archive queue, batches rows and
// flushes them with pgx.Batch when the batch is full or the flush
// interval elapses:
//   - create/update: upsert on (pod_id, message_id), latest content wins
//   - delete: soft delete by setting deleted_at
package writer
