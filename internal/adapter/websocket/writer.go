package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/oslocurrency/oslocrawler-ws/internal/broadcast"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 64
)

// connWriter owns all writes to one connection. Frames are queued by Send and written by a
// single goroutine, which also keeps the connection alive with pings.
type connWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	wsMetrics   *metrics.WebSocketMetrics
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

var _ broadcast.Sender = (*connWriter)(nil)

func newConnWriter(connection *websocket.Conn, clock clockwork.Clock, wsMetrics *metrics.WebSocketMetrics) *connWriter {
	cw := &connWriter{
		connection:  connection,
		clock:       clock,
		wsMetrics:   wsMetrics,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// Send queues data for the writer goroutine. A full queue fails immediately.
func (cw *connWriter) Send(data []byte) error {
	select {
	case <-cw.doneChannel:
		return domain.ErrSessionClosed
	default:
	}

	select {
	case cw.sendChannel <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// Close sends a close frame carrying reason, then closes the connection.
func (cw *connWriter) Close(reason string) {
	cw.stopGraceful(reason)
}

func (cw *connWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = cw.connection.Close()
				return
			}
			if cw.wsMetrics != nil {
				cw.wsMetrics.MessagesSent.Inc()
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				if cw.wsMetrics != nil {
					cw.wsMetrics.PingFailures.Inc()
				}
				_ = cw.connection.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *connWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *connWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// the run goroutine must be gone before we write the close frame
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *connWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *connWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *connWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
