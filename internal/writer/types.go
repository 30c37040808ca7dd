package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Config holds writer configuration.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	FlushTimeout  time.Duration // per flush, including the final flush on Stop
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		FlushTimeout:  10 * time.Second,
	}
}

// Metrics contains writer statistics.
type Metrics struct {
	Upserts int64
	Deletes int64
	Errors  int64
	Flushes int64
}

// Batcher sends a batch of queued statements. Satisfied by *pgxpool.Pool.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
