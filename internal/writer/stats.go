package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rtpmididns/midirouter/internal/model"
)

const createPeerStats = `
	CREATE TABLE IF NOT EXISTS peer_stats (
		run_id           UUID        NOT NULL,
		peer_id          BIGINT      NOT NULL,
		name             TEXT        NOT NULL DEFAULT '',
		kind             TEXT        NOT NULL,
		packets_sent     BIGINT      NOT NULL,
		packets_received BIGINT      NOT NULL,
		recorded_at      BIGINT      NOT NULL,
		PRIMARY KEY (run_id, peer_id, recorded_at)
	)
`

const insertPeerStats = `
	INSERT INTO peer_stats (run_id, peer_id, name, kind, packets_sent, packets_received, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT DO NOTHING
`

// EnsureSchema creates the peer_stats table if it does not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, createPeerStats); err != nil {
		return fmt.Errorf("create peer_stats: %w", err)
	}
	return nil
}

// StatsWriter periodically persists router status snapshots.
type StatsWriter struct {
	cfg      WriterConfig
	logger   *slog.Logger
	runID    uuid.UUID
	source   StatusSource
	db       DB
	recorder FlushRecorder
	now      func() time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewStatsWriter creates a writer sampling source into db. recorder may be nil.
func NewStatsWriter(
	cfg WriterConfig,
	source StatusSource,
	db DB,
	recorder FlushRecorder,
	logger *slog.Logger,
) *StatsWriter {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New()
	return &StatsWriter{
		cfg:      cfg,
		logger:   logger.With("run_id", runID.String()),
		runID:    runID,
		source:   source,
		db:       db,
		recorder: recorder,
		now:      time.Now,
	}
}

// RunID identifies this writer's samples.
func (w *StatsWriter) RunID() uuid.UUID {
	return w.runID
}

// Start begins periodic flushing.
func (w *StatsWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("stats writer started", "flush_interval", w.cfg.FlushInterval)
	return nil
}

// Stop halts the flush loop and writes a final sample.
func (w *StatsWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping stats writer")

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
		w.logger.Warn("stats writer stop timed out")
		return ctx.Err()
	}

	// Final flush on the caller's context; w.ctx is already cancelled.
	err := w.flush(ctx)
	w.logger.Info("stats writer stopped")
	return err
}

// Stats returns current metrics.
func (w *StatsWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

func (w *StatsWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// snapshot converts the current router status into rows.
func (w *StatsWriter) snapshot() []model.PeerStats {
	status := w.source.Status()
	recordedAt := w.now().UnixMicro()

	rows := make([]model.PeerStats, 0, len(status))
	for _, s := range status {
		rows = append(rows, model.PeerStats{
			RunID:           w.runID,
			PeerID:          uint64(s.ID),
			Name:            s.Name,
			Kind:            s.Kind,
			PacketsSent:     s.PacketsSent,
			PacketsReceived: s.PacketsReceived,
			RecordedAt:      recordedAt,
		})
	}
	return rows
}

func (w *StatsWriter) flush(ctx context.Context) error {
	rows := w.snapshot()
	if len(rows) == 0 {
		return nil
	}

	if w.cfg.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.FlushTimeout)
		defer cancel()
	}

	start := time.Now()
	err := w.batchInsert(ctx, rows)
	duration := time.Since(start)
	if w.recorder != nil {
		w.recorder.RecordFlush(err, duration)
	}

	w.mu.Lock()
	if err != nil {
		w.metrics.Errors++
	} else {
		w.metrics.Inserts += int64(len(rows))
		w.metrics.Flushes++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(rows))
		return err
	}

	w.logger.Debug("flushed peer stats", "count", len(rows), "duration", duration)
	return nil
}

// batchInsert inserts rows using pgx.Batch.
func (w *StatsWriter) batchInsert(ctx context.Context, rows []model.PeerStats) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertPeerStats,
			r.RunID, int64(r.PeerID), r.Name, r.Kind, r.PacketsSent, r.PacketsReceived, r.RecordedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert peer_stats: %w", err)
		}
	}
	return nil
}
