package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/devaloi/chatrooms/internal/domain"
	"github.com/devaloi/chatrooms/internal/hub"
	"github.com/devaloi/chatrooms/internal/testutil"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type fixture struct {
	hub      *hub.Hub
	roomID   string
	server   *httptest.Server
	sessions chan *Session
}

func setup(t *testing.T) *fixture {
	t.Helper()
	h := hub.New(testutil.NewMockStore(), hub.Options{})
	go h.Run()
	t.Cleanup(h.Stop)

	room, err := h.CreateRoom("general")
	require.NoError(t, err)

	f := &fixture{hub: h, roomID: room.RoomID, sessions: make(chan *Session, 8)}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := New(h, conn, room.RoomID, r.URL.Query().Get("user"), 2)
		if err := h.Join(room.RoomID, s); err != nil {
			conn.Close()
			return
		}
		f.sessions <- s
		go s.ReadPump()
		go s.WritePump()
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, pred func(domain.Message) bool) domain.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for i := 0; i < 20; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var m domain.Message
		if json.Unmarshal(data, &m) == nil && pred(m) {
			return m
		}
	}
	t.Fatal("expected message not received")
	return domain.Message{}
}

func TestSessionStampsAndBroadcasts(t *testing.T) {
	t.Parallel()
	f := setup(t)

	alice := f.dial(t, "alice")
	readUntil(t, alice, func(m domain.Message) bool { return m.EventType == domain.UserJoined })
	aliceSession := <-f.sessions

	bob := f.dial(t, "bob")
	readUntil(t, bob, func(m domain.Message) bool { return m.EventType == domain.UserJoined })
	<-f.sessions

	// Sender-supplied identity is replaced by the server's.
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"username":"mallory","message":"hello","message_type":"SYSTEM_MESSAGE"}`)))

	got := readUntil(t, bob, func(m domain.Message) bool { return m.Message == "hello" })
	require.Equal(t, "alice", got.Username)
	require.Equal(t, aliceSession.UserID(), got.UserID)
	require.Equal(t, domain.UserMessage, got.MessageType)
	require.NotNil(t, got.SentAt)
}

func TestSessionInvalidJSON(t *testing.T) {
	t.Parallel()
	f := setup(t)

	conn := f.dial(t, "alice")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readUntil(t, conn, func(m domain.Message) bool {
		return m.MessageType == domain.SystemMessage && m.EventType == ""
	})
	require.Contains(t, msg.Message, "invalid message")
}

func TestSessionRemembersOwnMessages(t *testing.T) {
	t.Parallel()
	f := setup(t)

	conn := f.dial(t, "alice")
	s := <-f.sessions
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"`+text+`"}`)))
	}
	readUntil(t, conn, func(m domain.Message) bool { return m.Message == "three" })

	require.Eventually(t, func() bool {
		saved := s.Messages()
		return len(saved) == 2 && saved[0].Message == "two" && saved[1].Message == "three"
	}, time.Second, 10*time.Millisecond)
}

func TestSessionDisconnectLeavesRoom(t *testing.T) {
	t.Parallel()
	f := setup(t)

	alice := f.dial(t, "alice")
	readUntil(t, alice, func(m domain.Message) bool { return m.EventType == domain.UserJoined })
	bob := f.dial(t, "bob")
	readUntil(t, alice, func(m domain.Message) bool { return m.Message == "bob joined the room." })

	bob.Close()
	left := readUntil(t, alice, func(m domain.Message) bool { return m.EventType == domain.UserLeft })
	require.Equal(t, "bob left the room.", left.Message)
}

func TestSessionClosedByServer(t *testing.T) {
	t.Parallel()
	f := setup(t)

	conn := f.dial(t, "alice")
	readUntil(t, conn, func(m domain.Message) bool { return m.EventType == domain.UserJoined })

	require.NoError(t, f.hub.DeleteRoom(f.roomID))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			return
		}
	}
}
