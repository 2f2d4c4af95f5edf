package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSessions int

func (f fixedSessions) SessionCount() int { return int(f) }

type fakeReceived struct {
	n     atomic.Int64
	takes atomic.Int32
}

func (f *fakeReceived) TakeReceived() int64 {
	f.takes.Add(1)
	return f.n.Swap(0)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestStatsReporter_ReportsEachInterval(t *testing.T) {
	logs := captureLogs(t)
	clock := clockwork.NewFakeClock()
	received := &fakeReceived{}
	received.n.Store(50)

	r := NewStatsReporter(fixedSessions(3), received, clock, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)

	assert.Eventually(t, func() bool {
		out := logs.String()
		return strings.Contains(out, `msg="Connected clients" count=3`) &&
			strings.Contains(out, `msg="TPS average" tps=5`)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), received.n.Load(), "counter resets after each report")
}

func TestStatsReporter_NothingBeforeFirstTick(t *testing.T) {
	logs := captureLogs(t)
	clock := clockwork.NewFakeClock()
	received := &fakeReceived{}

	r := NewStatsReporter(fixedSessions(1), received, clock, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(9 * time.Second)

	assert.Never(t, func() bool {
		return received.takes.Load() > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.NotContains(t, logs.String(), "Connected clients")
}

func TestStatsReporter_StopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewStatsReporter(fixedSessions(0), &fakeReceived{}, clock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewStatsReporter_DefaultInterval(t *testing.T) {
	r := NewStatsReporter(fixedSessions(0), &fakeReceived{}, clockwork.NewFakeClock(), 0)
	assert.Equal(t, defaultStatsInterval, r.interval)
}
