package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
)

// DedupStore keeps first-seen timestamps in the block_timestamps table.
// The primary key on key makes the first insert win.
type DedupStore struct {
	pool      *pgxpool.Pool
	namespace string
}

var _ domain.DedupStore = (*DedupStore)(nil)

func NewDedupStore(pool *pgxpool.Pool, namespace string) *DedupStore {
	return &DedupStore{pool: pool, namespace: namespace}
}

func (s *DedupStore) RecordFirstSeen(ctx context.Context, hash string, seenAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO block_timestamps (key, first_seen_ms) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		domain.DedupKey(s.namespace, hash), seenAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to save hash timestamp: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FirstSeen returns the stored timestamp for hash, or false when none exists.
func (s *DedupStore) FirstSeen(ctx context.Context, hash string) (time.Time, bool, error) {
	var ms int64
	err := s.pool.QueryRow(ctx,
		`SELECT first_seen_ms FROM block_timestamps WHERE key = $1`,
		domain.DedupKey(s.namespace, hash)).Scan(&ms)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read hash timestamp: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *DedupStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}
