package broadcast

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
)

// Registry maps topics to the sessions subscribed to them.
// It holds non-owning references; sessions remove themselves through Cleanup on close.
type Registry struct {
	mu       sync.RWMutex
	topics   map[string][]*Session
	sessions map[uuid.UUID]*Session

	relayMetrics *metrics.RelayMetrics
}

// NewRegistry creates an empty registry. relayMetrics may be nil.
func NewRegistry(relayMetrics *metrics.RelayMetrics) *Registry {
	return &Registry{
		topics:       make(map[string][]*Session),
		sessions:     make(map[uuid.UUID]*Session),
		relayMetrics: relayMetrics,
	}
}

func (r *Registry) attach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

// Subscribe adds s to every topic it does not already hold and returns how many were added.
// Empty topic names are skipped. Subscribing a closed session is a no-op.
func (r *Registry) Subscribe(s *Session, topics []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return 0
	}

	added := 0
	for _, topic := range topics {
		if topic == "" || slices.Contains(s.subscriptions, topic) {
			continue
		}
		s.subscriptions = append(s.subscriptions, topic)
		r.topics[topic] = append(r.topics[topic], s)
		added++
	}

	r.updateTopicGauge()
	return added
}

// Unsubscribe removes s from every listed topic it holds and returns how many were removed.
// A topic whose last subscriber leaves is deleted.
func (r *Registry) Unsubscribe(s *Session, topics []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, topic := range topics {
		i := slices.Index(s.subscriptions, topic)
		if i == -1 {
			continue
		}
		s.subscriptions = slices.Delete(s.subscriptions, i, i+1)
		r.removeLocked(s, topic)
		removed++
	}

	r.updateTopicGauge()
	return removed
}

// Cleanup drops every back-reference s holds, using the session's own list as the source of
// truth, and forgets the session. Session.Close calls it exactly once.
// Disagreement between the list and the topic map is logged and skipped.
func (r *Registry) Cleanup(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	topics := s.subscriptions
	s.subscriptions = nil
	s.mu.Unlock()

	for _, topic := range topics {
		r.removeLocked(s, topic)
	}
	delete(r.sessions, s.id)

	r.updateTopicGauge()
}

// removeLocked deletes s from topic. Caller holds r.mu.
func (r *Registry) removeLocked(s *Session, topic string) {
	subs, ok := r.topics[topic]
	if !ok {
		slog.Warn("Topic missing from registry, potential leak", "session_id", s.id.String(), "topic", topic)
		return
	}

	i := slices.Index(subs, s)
	if i == -1 {
		slog.Warn("Session not found under topic, potential leak", "session_id", s.id.String(), "topic", topic)
		return
	}

	subs = slices.Delete(subs, i, i+1)
	if len(subs) == 0 {
		delete(r.topics, topic)
		return
	}
	r.topics[topic] = subs
}

// SubscribersOf returns a snapshot of the sessions subscribed to topic, in subscription order.
func (r *Registry) SubscribersOf(topic string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.topics[topic])
}

// Topics returns the topics that currently have subscribers.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}

func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// SessionCount returns the number of open sessions, subscribed or not.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of all open sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) updateTopicGauge() {
	if r.relayMetrics != nil {
		r.relayMetrics.RegistryTopics.Set(float64(len(r.topics)))
	}
}
