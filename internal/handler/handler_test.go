package handler

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

func newMux(t *testing.T, opts hub.Options) (*http.ServeMux, *hub.Hub, *testutil.MockStore) {
	t.Helper()
	s := testutil.NewMockStore()
	h := hub.New(s, opts)
	go h.Run()
	t.Cleanup(h.Stop)

	mux := http.NewServeMux()
	Routes(mux, h, 20)
	return mux, h, s
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})
	w := serve(mux, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestListRoomsEmpty(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})
	w := serve(mux, http.MethodGet, "/api/v1/chat/rooms", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"chat_rooms":[]}`, w.Body.String())
}

func TestCreateAndGetRoom(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})

	w := serve(mux, http.MethodPost, "/api/v1/chat/rooms/new", `{"name":"lobby"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var created domain.ChatRoom
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotEmpty(t, created.RoomID)
	require.Equal(t, "lobby", created.RoomName)
	require.Zero(t, created.UserCount)

	w = serve(mux, http.MethodGet, "/api/v1/chat/rooms/"+created.RoomID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.ChatRoom
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, created, got)

	w = serve(mux, http.MethodGet, "/api/v1/chat/rooms", "")
	var list domain.RoomList
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Equal(t, []domain.ChatRoom{created}, list.ChatRooms)
}

func TestCreateRoomWithoutBody(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})

	w := serve(mux, http.MethodPost, "/api/v1/chat/rooms/new", "")
	require.Equal(t, http.StatusOK, w.Code)
	var created domain.ChatRoom
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.Equal(t, hub.DefaultRoomName(created.RoomID), created.RoomName)
}

func TestCreateRoomBadBody(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})

	w := serve(mux, http.MethodPost, "/api/v1/chat/rooms/new", `{"name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRoomAtCapacity(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{MaxRooms: 1})

	require.Equal(t, http.StatusOK, serve(mux, http.MethodPost, "/api/v1/chat/rooms/new", `{}`).Code)
	w := serve(mux, http.MethodPost, "/api/v1/chat/rooms/new", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetRoomNotFound(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})

	w := serve(mux, http.MethodGet, "/api/v1/chat/rooms/nonexistent", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"message":"Chat room nonexistent not found"}`, w.Body.String())
}

func TestRoomHistory(t *testing.T) {
	t.Parallel()
	mux, h, s := newMux(t, hub.Options{})

	room, err := h.CreateRoom("general")
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(room.RoomID, domain.Message{Username: "alice", Message: text, MessageType: domain.UserMessage}))
	}

	w := serve(mux, http.MethodGet, "/api/v1/chat/history/"+room.RoomID+"?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history domain.History
	require.NoError(t, json.NewDecoder(w.Body).Decode(&history))
	require.Equal(t, room.RoomID, history.RoomID)
	require.Len(t, history.Messages, 2)
	require.Equal(t, "b", history.Messages[0].Message)

	require.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/api/v1/chat/history/"+room.RoomID+"?limit=x", "").Code)
	require.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/api/v1/chat/history/missing", "").Code)
}

func TestConnectUnknownRoom(t *testing.T) {
	t.Parallel()
	mux, _, _ := newMux(t, hub.Options{})

	w := serve(mux, http.MethodGet, "/api/v1/chat/missing/connect/alice", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectRoomUpgrade(t *testing.T) {
	t.Parallel()
	mux, h, _ := newMux(t, hub.Options{})
	room, err := h.CreateRoom("general")
	require.NoError(t, err)

	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/chat/" + room.RoomID + "/connect/alice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := domain.DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, domain.UserJoined, msg.EventType)
	require.Equal(t, "alice joined the room.", msg.Message)

	require.Eventually(t, func() bool {
		info, _ := h.GetRoom(room.RoomID)
		return info.UserCount == 1
	}, time.Second, 10*time.Millisecond)
}
