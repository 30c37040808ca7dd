package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/podsync/internal/router"
)

const upsertSQL = `
	INSERT INTO messages (pod_id, message_id, channel_id, author_id, content, reply_to, created_at, edited_at, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (pod_id, message_id) DO UPDATE SET
		channel_id  = EXCLUDED.channel_id,
		author_id   = CASE WHEN EXCLUDED.author_id = '' THEN messages.author_id ELSE EXCLUDED.author_id END,
		content     = EXCLUDED.content,
		reply_to    = COALESCE(EXCLUDED.reply_to, messages.reply_to),
		created_at  = COALESCE(messages.created_at, EXCLUDED.created_at),
		edited_at   = COALESCE(EXCLUDED.edited_at, messages.edited_at),
		received_at = EXCLUDED.received_at
`

const deleteSQL = `
	INSERT INTO messages (pod_id, message_id, channel_id, deleted_at, received_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (pod_id, message_id) DO UPDATE SET
		deleted_at = EXCLUDED.deleted_at
`

// messageRow is one archive statement.
type messageRow struct {
	Kind       router.ArchiveKind
	PodID      string
	MessageID  string
	ChannelID  string
	AuthorID   string
	Content    string
	ReplyTo    *string
	CreatedAt  *time.Time
	EditedAt   *time.Time
	ReceivedAt time.Time
}

// MessageWriter consumes archive events and writes them to the messages table.
type MessageWriter struct {
	cfg    Config
	logger *slog.Logger

	input *router.Queue[router.ArchiveEvent]
	db    Batcher

	batch   []messageRow
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewMessageWriter creates a MessageWriter.
func NewMessageWriter(cfg Config, input *router.Queue[router.ArchiveEvent], db Batcher, logger *slog.Logger) *MessageWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	return &MessageWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]messageRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events.
func (w *MessageWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("message writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop stops consuming, then drains the queue and flushes what is left.
func (w *MessageWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping message writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("message writer stop timed out")
		return ctx.Err()
	}

	w.consume()
	w.flush()
	w.logger.Info("message writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *MessageWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *MessageWriter) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		case <-w.input.Ready():
			w.consume()
		}
	}
}

// consume drains the queue into the batch, flushing every BatchSize rows.
func (w *MessageWriter) consume() {
	for {
		events := w.input.Drain(w.cfg.BatchSize)
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			w.handleEvent(ev)
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *MessageWriter) handleEvent(ev router.ArchiveEvent) {
	row := transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	full := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if full {
		w.flush()
	}
}

// transform converts an archive event to a row.
func transform(ev router.ArchiveEvent) messageRow {
	row := messageRow{
		Kind:       ev.Kind,
		PodID:      ev.Pod,
		MessageID:  ev.MessageID,
		ChannelID:  ev.ChannelID,
		ReceivedAt: ev.ReceivedAt.UTC(),
	}
	if m := ev.Message; m != nil {
		row.AuthorID = m.Author.ID
		row.Content = m.Content
		if m.ReplyTo != "" {
			r := m.ReplyTo
			row.ReplyTo = &r
		}
		if !m.CreatedAt.IsZero() {
			t := m.CreatedAt.UTC()
			row.CreatedAt = &t
		}
		if m.EditedAt != nil {
			t := m.EditedAt.UTC()
			row.EditedAt = &t
		}
	}
	return row
}

// flush writes the current batch to the database.
func (w *MessageWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]messageRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	upserts, deletes, err := w.send(batch)
	if err != nil {
		w.logger.Error("archive batch failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Upserts += int64(upserts)
	w.metrics.Deletes += int64(deletes)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed messages",
		"upserts", upserts,
		"deletes", deletes,
		"duration", time.Since(start),
	)
}

// send queues one statement per row and executes them as a pgx.Batch.
func (w *MessageWriter) send(rows []messageRow) (upserts, deletes int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		if r.Kind == router.ArchiveDelete {
			batch.Queue(deleteSQL, r.PodID, r.MessageID, r.ChannelID, r.ReceivedAt)
			continue
		}
		batch.Queue(upsertSQL, r.PodID, r.MessageID, r.ChannelID, r.AuthorID, r.Content,
			r.ReplyTo, r.CreatedAt, r.EditedAt, r.ReceivedAt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.FlushTimeout)
	defer cancel()

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			return upserts, deletes, err
		}
		if r.Kind == router.ArchiveDelete {
			deletes++
		} else {
			upserts++
		}
	}
	return upserts, deletes, nil
}
