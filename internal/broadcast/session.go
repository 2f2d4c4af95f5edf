package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/logging"
)

// Sender is the transport side of a session.
type Sender interface {
	// Send queues data without blocking. It fails when the connection cannot take more.
	Send(data []byte) error
	// Close terminates the connection, telling the peer why when possible.
	Close(reason string)
}

// State is the lifecycle state of a session.
type State int32

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session is one subscriber connection. It owns its subscription list, which is the
// authoritative record for cleanup, and reaches its connection only through a Sender.
type Session struct {
	id       uuid.UUID
	sender   Sender
	registry *Registry
	logger   *slog.Logger

	// guarded by mu; subscriptions only change while registry.mu is also held
	mu            sync.Mutex
	state         State
	subscriptions []string
}

// NewSession creates an open session with no subscriptions and attaches it to registry.
func NewSession(registry *Registry, sender Sender) *Session {
	id := uuid.New()
	s := &Session{
		id:       id,
		sender:   sender,
		registry: registry,
		logger:   logging.WithSession(id.String()),
		state:    StateOpen,
	}
	registry.attach(s)
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscriptions returns a copy of the session's topics in subscription order.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.subscriptions)
}

// HandleMessage applies one client frame. Unknown events and malformed frames are logged and
// reported through the returned error; they never close the session.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) error {
	if s.State() == StateClosed {
		return domain.ErrSessionClosed
	}

	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		s.logger.WarnContext(ctx, "Bad message", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrMalformedFrame, err)
	}

	switch event.Event {
	case domain.EventSubscribe, domain.EventUnsubscribe:
		topics, err := parseTopics(event.Data)
		if err != nil {
			s.logger.WarnContext(ctx, "Bad message", "event", event.Event, "error", err)
			return err
		}
		if event.Event == domain.EventSubscribe {
			n := s.registry.Subscribe(s, topics)
			s.logger.DebugContext(ctx, "Subscribed", "topics", topics, "added", n)
		} else {
			n := s.registry.Unsubscribe(s, topics)
			s.logger.DebugContext(ctx, "Unsubscribed", "topics", topics, "removed", n)
		}
		return nil
	default:
		s.logger.DebugContext(ctx, "Ignoring unknown event", "event", event.Event)
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, event.Event)
	}
}

func parseTopics(data json.RawMessage) ([]string, error) {
	var topics []string
	if err := json.Unmarshal(data, &topics); err != nil || topics == nil {
		return nil, fmt.Errorf("%w: data must be an array of topic strings", domain.ErrMalformedFrame)
	}
	return topics, nil
}

// Send hands data to the transport. It never blocks.
func (s *Session) Send(data []byte) error {
	if s.State() == StateClosed {
		return domain.ErrSessionClosed
	}
	if err := s.sender.Send(data); err != nil {
		return fmt.Errorf("send to session %s: %w", s.id, err)
	}
	return nil
}

// Close moves the session to Closed and removes it from the registry.
// Only the first call has an effect.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.registry.Cleanup(s)
	s.logger.Debug("Connection closed, unsubscribed")
}

// Disconnect asks the transport to close the connection. The transport reports the close
// back through Close.
func (s *Session) Disconnect(reason string) {
	s.sender.Close(reason)
}
