package redis

import (
	"context"
	"testing"
	"time"

	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupStore_WriteOnce(t *testing.T) {
	client := setupTestClient(t)
	store := NewDedupStore(client, "crawler")
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

func TestDedupStore_KeyLayout(t *testing.T) {
	client := setupTestClient(t)
	store := NewDedupStore(client, "nano")
	ctx := context.Background()

	_, err := store.RecordFirstSeen(ctx, "ABC", time.UnixMilli(42))
	require.NoError(t, err)

	val, err := client.Get(ctx, "nano/block_timestamp/ABC").Result()
	require.NoError(t, err)
	assert.Equal(t, "42", val)

	ttl, err := client.TTL(ctx, "nano/block_timestamp/ABC").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "first-seen records never expire")
}

func TestDedupStore_FirstSeenMissing(t *testing.T) {
	client := setupTestClient(t)
	store := NewDedupStore(client, "crawler")

	_, ok, err := store.FirstSeen(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedupStore_Ping(t *testing.T) {
	client := setupTestClient(t)
	assert.NoError(t, NewDedupStore(client, "crawler").Ping(context.Background()))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://nope", nil)
	assert.Error(t, err)
}

func TestNewClient_RecordsMetrics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())

	client, err := NewClient(context.Background(), testRedisURL, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewDedupStore(client, "metrics")
	_, err = store.RecordFirstSeen(context.Background(), "H1", time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("setnx", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.OpsTotal.WithLabelValues("ping", "success")), 1.0)
}
