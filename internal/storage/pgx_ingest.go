package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadingIngester writes meter readings in bulk through a pgxpool
// connection. The HTTP path goes through Storage; this exists for
// high-volume backfills where per-row GORM inserts are too slow.
type ReadingIngester struct {
	pool *pgxpool.Pool
}

func OpenReadingIngester(ctx context.Context, dsn string) (*ReadingIngester, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/enerbill?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &ReadingIngester{pool: pool}, nil
}

func (i *ReadingIngester) Close() error {
	i.pool.Close()
	return nil
}

// Ingest replaces and inserts a batch of readings for one contract. Rows
// matching an incoming (date, hour) key are deleted first, inside the same
// transaction, so a replaced key never coexists with its predecessor.
func (i *ReadingIngester) Ingest(ctx context.Context, contractID uint, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range readings {
		if _, err := tx.Exec(ctx,
			`DELETE FROM readings WHERE contract_id=$1 AND date=$2 AND hour=$3`,
			contractID, DateOnly(r.Date), r.Hour); err != nil {
			return err
		}
	}

	now := time.Now()
	rows := make([][]any, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, []any{DateOnly(r.Date), r.Hour, r.Energy, contractID, now, now})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"readings"},
		[]string{"date", "hour", "energy", "contract_id", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// PoolStats exposes pool counters for the metrics collector.
func (i *ReadingIngester) PoolStats() (total, idle, acquired int32, acquires int64) {
	s := i.pool.Stat()
	return s.TotalConns(), s.IdleConns(), s.AcquiredConns(), s.AcquireCount()
}
