package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DedupStore records first-seen block timestamps with SETNX, so the first write wins.
// Values are epoch milliseconds under "{namespace}/block_timestamp/{hash}" and never expire.
type DedupStore struct {
	rdb       *goredis.Client
	namespace string
}

var _ domain.DedupStore = (*DedupStore)(nil)

func NewDedupStore(rdb *goredis.Client, namespace string) *DedupStore {
	return &DedupStore{rdb: rdb, namespace: namespace}
}

func (s *DedupStore) RecordFirstSeen(ctx context.Context, hash string, seenAt time.Time) (bool, error) {
	set, err := s.rdb.SetNX(ctx, domain.DedupKey(s.namespace, hash), seenAt.UnixMilli(), 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to save hash timestamp: %w", err)
	}
	return set, nil
}

// FirstSeen returns the stored timestamp for hash, or false when none exists.
func (s *DedupStore) FirstSeen(ctx context.Context, hash string) (time.Time, bool, error) {
	ms, err := s.rdb.Get(ctx, domain.DedupKey(s.namespace, hash)).Int64()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read hash timestamp: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *DedupStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
