package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency_listings/identity"
	"agency_listings/models"
)

// PostgresStore archives every classified listing so a listing's bucket
// history survives the output file being overwritten.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listing_archive (
			listing_key   TEXT PRIMARY KEY,
			bucket        TEXT NOT NULL,
			status        TEXT,
			is_rental     BOOLEAN NOT NULL DEFAULT FALSE,
			data          JSONB NOT NULL,
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at  TIMESTAMPTZ NOT NULL,
			last_run_id   UUID NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_listing_archive_bucket ON listing_archive(bucket, last_seen_at)`)
	return err
}

// ArchiveRow is one listing_archive upsert.
type ArchiveRow struct {
	Key      string
	Bucket   string
	Status   string
	IsRental bool
	Data     []byte
}

// ArchiveRows flattens named buckets into upsert rows. Bucket names are
// visited in the order given so the result is deterministic.
func ArchiveRows(order []string, buckets map[string][]models.Listing) ([]ArchiveRow, error) {
	var rows []ArchiveRow
	for _, name := range order {
		for _, l := range buckets[name] {
			data, err := json.Marshal(l)
			if err != nil {
				return nil, fmt.Errorf("encode listing %s: %w", identity.Key(l), err)
			}
			rows = append(rows, ArchiveRow{
				Key:      identity.Key(l),
				Bucket:   name,
				Status:   l.Status(),
				IsRental: l.IsRental(),
				Data:     data,
			})
		}
	}
	return rows, nil
}

// Archive upserts all rows in one batch. first_seen_at is kept from the
// original insert.
func (s *PostgresStore) Archive(ctx context.Context, runID uuid.UUID, rows []ArchiveRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO listing_archive (listing_key, bucket, status, is_rental, data, first_seen_at, last_seen_at, last_run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (listing_key) DO UPDATE SET
			bucket = EXCLUDED.bucket,
			status = EXCLUDED.status,
			is_rental = EXCLUDED.is_rental,
			data = EXCLUDED.data,
			last_seen_at = EXCLUDED.last_seen_at,
			last_run_id = EXCLUDED.last_run_id`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.Key, r.Bucket, r.Status, r.IsRental, r.Data, now, runID)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("archive %s: %w", r.Key, err)
		}
	}
	return nil
}

// BucketCounts returns how many archived listings currently sit in each
// bucket.
func (s *PostgresStore) BucketCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT bucket, COUNT(*) FROM listing_archive GROUP BY bucket`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bucket string
		var count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		counts[bucket] = count
	}
	return counts, rows.Err()
}
