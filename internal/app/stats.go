package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultStatsInterval = 10 * time.Second

type sessionCounter interface {
	SessionCount() int
}

type receivedCounter interface {
	TakeReceived() int64
}

// StatsReporter periodically logs the connected subscriber count and the average ingest rate
// over the last interval.
type StatsReporter struct {
	sessions sessionCounter
	received receivedCounter
	clock    clockwork.Clock
	interval time.Duration
}

func NewStatsReporter(sessions sessionCounter, received receivedCounter, clock clockwork.Clock, interval time.Duration) *StatsReporter {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsReporter{
		sessions: sessions,
		received: received,
		clock:    clock,
		interval: interval,
	}
}

// Run reports once per interval. It blocks until ctx is cancelled.
func (r *StatsReporter) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.report(ctx)
		}
	}
}

func (r *StatsReporter) report(ctx context.Context) {
	clients := r.sessions.SessionCount()
	tps := float64(r.received.TakeReceived()) / r.interval.Seconds()

	slog.InfoContext(ctx, "Connected clients", "count", clients)
	slog.InfoContext(ctx, "TPS average", "tps", tps)
}
