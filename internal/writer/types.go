package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rtpmididns/midirouter/internal/router"
)

// StatusSource provides the peer snapshot to persist.
type StatusSource interface {
	Status() []router.PeerStatus
}

// FlushRecorder observes flush outcomes (see package metrics).
type FlushRecorder interface {
	RecordFlush(err error, duration time.Duration)
}

// DB is the subset of *pgxpool.Pool used by the writer.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds writer configuration.
type WriterConfig struct {
	FlushInterval time.Duration
	FlushTimeout  time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		FlushInterval: 10 * time.Second,
		FlushTimeout:  5 * time.Second,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}
