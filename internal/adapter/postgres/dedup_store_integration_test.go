package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_WriteOnce(t *testing.T) {
	store := NewDedupStore(setupTestDB(t), "crawler")
	ctx := context.Background()

	t1 := time.UnixMilli(1_700_000_000_000)
	t2 := t1.Add(3 * time.Second)

	first, err := store.RecordFirstSeen(ctx, "H1", t1)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = store.RecordFirstSeen(ctx, "H1", t2)
	require.NoError(t, err)
	assert.False(t, first)

	seen, ok, err := store.FirstSeen(ctx, "H1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, t1.UnixMilli(), seen.UnixMilli())
}

func TestDedupStore_NamespacedKey(t *testing.T) {
	pool := setupTestDB(t)
	store := NewDedupStore(pool, "nano")

	_, err := store.RecordFirstSeen(context.Background(), "ABC", time.UnixMilli(42))
	require.NoError(t, err)

	var ms int64
	err = pool.QueryRow(context.Background(),
		`SELECT first_seen_ms FROM block_timestamps WHERE key = 'nano/block_timestamp/ABC'`).Scan(&ms)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ms)
}

func TestDedupStore_ConcurrentWritersOneWins(t *testing.T) {
	store := NewDedupStore(setupTestDB(t), "crawler")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := store.RecordFirstSeen(context.Background(), "H2", time.UnixMilli(int64(i)))
			assert.NoError(t, err)
			if first {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestDedupStore_FirstSeenMissing(t *testing.T) {
	store := NewDedupStore(setupTestDB(t), "crawler")

	_, ok, err := store.FirstSeen(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
