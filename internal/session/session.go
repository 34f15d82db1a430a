package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/devaloi/chatrooms/internal/domain"
	"github.com/devaloi/chatrooms/internal/hub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// DefaultMaxSaved is the number of own messages a session remembers.
	DefaultMaxSaved = 20
)

// Session is one user's WebSocket connection to a room.
type Session struct {
	hub      *hub.Hub
	conn     *websocket.Conn
	send     chan []byte
	roomID   string
	userID   string
	username string
	maxSaved int

	mu    sync.Mutex
	saved []domain.Message

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Session with a fresh user id.
func New(h *hub.Hub, conn *websocket.Conn, roomID, username string, maxSaved int) *Session {
	if maxSaved <= 0 {
		maxSaved = DefaultMaxSaved
	}
	return &Session{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		roomID:   roomID,
		userID:   uuid.NewString(),
		username: username,
		maxSaved: maxSaved,
		closed:   make(chan struct{}),
	}
}

// Username returns the session's username.
func (s *Session) Username() string {
	return s.username
}

// UserID returns the id assigned to this connection.
func (s *Session) UserID() string {
	return s.userID
}

// Send queues a frame for the peer. Own user messages are remembered.
func (s *Session) Send(data []byte) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.send <- data:
		s.remember(data)
	default:
		log.Warn().Str("component", "session").Str("user", s.username).Str("room_id", s.roomID).Msg("send buffer full, dropping message")
	}
}

// Close ends the write pump, which closes the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Messages returns the most recent user messages this session sent and
// saw delivered, oldest first.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.saved...)
}

// ReadPump reads frames from the WebSocket connection and routes them to the hub.
func (s *Session) ReadPump() {
	defer func() {
		s.hub.Leave(s.roomID, s)
		s.Close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("component", "session").Str("user", s.username).Msg("read error")
			}
			return
		}
		s.handleFrame(data)
	}
}

// WritePump writes queued frames to the WebSocket connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			s.drain()
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// drain flushes frames queued before Close.
func (s *Session) drain() {
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) handleFrame(data []byte) {
	msg, err := domain.DecodeMessage(data)
	if err != nil {
		s.sendError("invalid message: expected JSON")
		return
	}
	if msg.Message == "" {
		return
	}

	now := time.Now().UTC()
	msg.UserID = s.userID
	msg.Username = s.username
	msg.MessageType = domain.UserMessage
	msg.EventType = ""
	msg.SentAt = &now

	if err := s.hub.Broadcast(s.roomID, msg); err != nil {
		s.sendError(err.Error())
	}
}

func (s *Session) remember(data []byte) {
	msg, err := domain.DecodeMessage(data)
	if err != nil || msg.MessageType != domain.UserMessage || msg.UserID != s.userID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, msg)
	if len(s.saved) > s.maxSaved {
		s.saved = s.saved[len(s.saved)-s.maxSaved:]
	}
}

func (s *Session) sendError(text string) {
	if data, err := domain.Encode(domain.NewSystemMessage(text, "")); err == nil {
		s.Send(data)
	}
}
