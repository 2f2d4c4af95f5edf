package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/correlation"
)

const defaultWriteTimeout = 2 * time.Second

// Broadcaster delivers a notification to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, n domain.Notification) (int, error)
}

// Service processes ingested blocks.
type Service struct {
	store        domain.DedupStore
	broadcaster  Broadcaster
	clock        clockwork.Clock
	relayMetrics *metrics.RelayMetrics
	writeTimeout time.Duration

	received atomic.Int64
	inflight sync.WaitGroup
}

// NewService creates an ingest service. relayMetrics may be nil; writeTimeout <= 0 uses
// the default of two seconds.
func NewService(store domain.DedupStore, broadcaster Broadcaster, clock clockwork.Clock, relayMetrics *metrics.RelayMetrics, writeTimeout time.Duration) *Service {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Service{
		store:        store,
		broadcaster:  broadcaster,
		clock:        clock,
		relayMetrics: relayMetrics,
		writeTimeout: writeTimeout,
	}
}

// Accept counts the payload and processes it in the background.
// The caller has already been acknowledged; nothing is reported back.
func (s *Service) Accept(ctx context.Context, raw []byte) {
	s.received.Add(1)
	if s.relayMetrics != nil {
		s.relayMetrics.BlocksReceived.Inc()
	}

	ctx = correlation.Detach(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.Process(ctx, raw)
	}()
}

// Process normalizes raw, starts the first-seen write and broadcasts the notification.
// A malformed payload is dropped with neither a broadcast nor a dedup write.
// Duplicate hashes are broadcast again; the dedup outcome is only recorded.
func (s *Service) Process(ctx context.Context, raw []byte) {
	slog.DebugContext(ctx, "Received block")

	n, err := Normalize(raw, s.clock.Now())
	if err != nil {
		if s.relayMetrics != nil {
			s.relayMetrics.BlocksRejected.Inc()
		}
		slog.WarnContext(ctx, "Error parsing block data", "error", err)
		return
	}

	s.recordFirstSeen(ctx, n.Hash, time.UnixMilli(n.Timestamp))

	delivered, err := s.broadcaster.Broadcast(ctx, n)
	if err != nil {
		slog.ErrorContext(ctx, "Broadcast failed", "hash", n.Hash, "error", err)
		return
	}
	slog.DebugContext(ctx, "Block broadcast", "hash", n.Hash, "account", n.Account, "delivered", delivered)
}

// recordFirstSeen writes the first-seen timestamp in the background. The result is logged and
// counted but never awaited and never influences delivery.
func (s *Service) recordFirstSeen(ctx context.Context, hash string, seenAt time.Time) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		writeCtx, cancel := context.WithTimeout(correlation.Detach(ctx), s.writeTimeout)
		defer cancel()

		first, err := s.store.RecordFirstSeen(writeCtx, hash, seenAt)
		switch {
		case err != nil:
			s.countDedup(metrics.DedupError)
			if errors.Is(err, context.DeadlineExceeded) {
				slog.WarnContext(ctx, "Dedup write timed out", "hash", hash, "timeout", s.writeTimeout)
				return
			}
			slog.ErrorContext(ctx, "Error saving hash timestamp", "hash", hash, "error", err)
		case first:
			s.countDedup(metrics.DedupFirstWrite)
			slog.DebugContext(ctx, "Saved hash timestamp", "hash", hash)
		default:
			s.countDedup(metrics.DedupDuplicate)
			slog.DebugContext(ctx, "Hash already recorded", "hash", hash)
		}
	}()
}

func (s *Service) countDedup(outcome string) {
	if s.relayMetrics != nil {
		s.relayMetrics.DedupWrites.WithLabelValues(outcome).Inc()
	}
}

// TakeReceived returns the number of payloads accepted since the previous call and resets it.
func (s *Service) TakeReceived() int64 {
	return s.received.Swap(0)
}

// Wait blocks until all background processing and dedup writes have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}
