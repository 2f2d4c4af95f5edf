package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
)

const shutdownReason = "Server shutting down"

// Broadcaster fans notifications out to the sessions subscribed to their destination topics.
type Broadcaster struct {
	registry     *Registry
	clock        clockwork.Clock
	relayMetrics *metrics.RelayMetrics
}

// NewBroadcaster creates a broadcaster over registry. relayMetrics may be nil.
func NewBroadcaster(registry *Registry, clock clockwork.Clock, relayMetrics *metrics.RelayMetrics) *Broadcaster {
	return &Broadcaster{
		registry:     registry,
		clock:        clock,
		relayMetrics: relayMetrics,
	}
}

// Broadcast delivers n once to every session subscribed to "all" or to n.Account and returns
// the number of sessions that accepted it. A failed send affects only that session.
func (b *Broadcaster) Broadcast(ctx context.Context, n domain.Notification) (int, error) {
	start := b.clock.Now()

	data, err := json.Marshal(domain.NewTransactionEvent(n))
	if err != nil {
		return 0, fmt.Errorf("marshal newTransaction event: %w", err)
	}

	delivered, failed := 0, 0
	seen := make(map[uuid.UUID]struct{})
	for _, topic := range domain.Destinations(n.Account) {
		subscribers := b.registry.SubscribersOf(topic)
		if len(subscribers) == 0 {
			continue
		}

		slog.DebugContext(ctx, "Sending block", "topic", topic, "hash", n.Hash, "subscribers", len(subscribers))

		for _, s := range subscribers {
			if _, dup := seen[s.ID()]; dup {
				continue
			}
			seen[s.ID()] = struct{}{}

			if err := s.Send(data); err != nil {
				failed++
				slog.WarnContext(ctx, "Delivery failed", "session_id", s.ID().String(), "topic", topic, "hash", n.Hash, "error", err)
				continue
			}
			delivered++
		}
	}

	if b.relayMetrics != nil {
		b.relayMetrics.Deliveries.Add(float64(delivered))
		b.relayMetrics.DeliveryFailures.Add(float64(failed))
		b.relayMetrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
	}

	return delivered, nil
}

// Stop disconnects every open session. Each transport then closes its session,
// which empties the registry.
func (b *Broadcaster) Stop() {
	sessions := b.registry.Sessions()
	slog.Info("Broadcaster shutting down", "sessions", len(sessions), "topics", b.registry.TopicCount())

	for _, s := range sessions {
		s.Disconnect(shutdownReason)
	}

	slog.Info("Broadcaster shutdown complete", "disconnected_clients", len(sessions))
}
