package chattest

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// session is one attached websocket client. Outbound writes go through a
// buffered channel so the hub can fan out without blocking on slow readers.
type session struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func newSession(ws *websocket.Conn) *session {
	return &session{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 128),
		done: make(chan struct{}),
	}
}

func (s *session) start() {
	go s.writeLoop()
}

func (s *session) enqueue(payload []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	case s.send <- payload:
		return nil
	default:
		s.close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("session buffer exceeded")
	}
}

func (s *session) close(code int, reason string) {
	s.once.Do(func() {
		close(s.done)
		_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = s.ws.Close()
	})
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
