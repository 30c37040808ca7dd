package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. Satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema is applied in order by EnsureSchema. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		pod_id      TEXT        NOT NULL,
		message_id  TEXT        NOT NULL,
		channel_id  TEXT        NOT NULL,
		author_id   TEXT        NOT NULL DEFAULT '',
		content     TEXT        NOT NULL DEFAULT '',
		reply_to    TEXT,
		created_at  TIMESTAMPTZ,
		edited_at   TIMESTAMPTZ,
		deleted_at  TIMESTAMPTZ,
		received_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (pod_id, message_id)
	)`,
	`CREATE INDEX IF NOT EXISTS messages_channel_idx
		ON messages (pod_id, channel_id, created_at)`,
}

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
