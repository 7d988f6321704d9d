package router

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseSink bulk-loads formatted log lines into a Postgres-style table.
// Rather than one INSERT per record, it accumulates a small batch and uses
// a temp-table-plus-COPY pattern on flush, which is the only way to keep
// per-record overhead low enough that the Database destination doesn't
// become the slowest sink in the fan-out.
type DatabaseSink struct {
	pool      *pgxpool.Pool
	batchSize int

	mu      sync.Mutex
	pending []pendingRecord
}

type pendingRecord struct {
	at        time.Time
	subsystem string
	level     string
	line      string
}

// NewDatabaseSink returns a sink that bulk-inserts into the time and line
// columns of table hydrogen_log_records via pool.
func NewDatabaseSink(pool *pgxpool.Pool, batchSize int) *DatabaseSink {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &DatabaseSink{pool: pool, batchSize: batchSize}
}

// Accept buffers line for the next flush, recording the current wall-clock
// time as the record's timestamp. When the buffer reaches batchSize records
// it flushes them synchronously, blocking on the database until Flush
// returns.
func (s *DatabaseSink) Accept(line string) error {
	s.mu.Lock()
	s.pending = append(s.pending, pendingRecord{at: time.Now(), line: line})
	shouldFlush := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		return s.Flush()
	}
	return nil
}

// Flush bulk-loads any pending records using a temp table, CopyFrom, and an
// INSERT ... ON CONFLICT DO NOTHING into the permanent table.
func (s *DatabaseSink) Flush() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE hydrogen_log_staging (
			time TIMESTAMPTZ NOT NULL,
			line TEXT NOT NULL
		) ON COMMIT DROP
	`)
	if err != nil {
		return err
	}

	rows := make([][]any, len(pending))
	for i, p := range pending {
		rows[i] = []any{p.at, p.line}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"hydrogen_log_staging"},
		[]string{"time", "line"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO hydrogen_log_records (time, line)
		SELECT time, line FROM hydrogen_log_staging
		ON CONFLICT DO NOTHING
	`); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Close flushes any remaining pending records and closes the pool.
func (s *DatabaseSink) Close() error {
	err := s.Flush()
	s.pool.Close()
	return err
}
