package broadcast

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeSender records frames in memory. Set full to make every Send fail.
type fakeSender struct {
	mu          sync.Mutex
	frames      [][]byte
	full        bool
	closed      bool
	closeReason string
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return domain.ErrSendBufferFull
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSender) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeReason = reason
}

func (f *fakeSender) received(t *testing.T) []domain.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	events := make([]domain.Event, 0, len(f.frames))
	for _, frame := range f.frames {
		var ev domain.Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		events = append(events, ev)
	}
	return events
}

func newTestSession(t *testing.T, r *Registry) (*Session, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	s := NewSession(r, sender)
	t.Cleanup(s.Close)
	return s, sender
}

func frame(t *testing.T, event string, topics ...string) []byte {
	t.Helper()
	if topics == nil {
		topics = []string{}
	}
	data, err := json.Marshal(map[string]any{"event": event, "data": topics})
	require.NoError(t, err)
	return data
}
