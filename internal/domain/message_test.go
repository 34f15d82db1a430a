package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageEncodeDecode(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC().Truncate(time.Second)
	original := Message{
		UserID:      "u-1",
		Username:    "alice",
		Message:     "hello world",
		MessageType: UserMessage,
		SentAt:      &now,
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, original.UserID, decoded.UserID)
	require.Equal(t, original.Username, decoded.Username)
	require.Equal(t, original.Message, decoded.Message)
	require.Equal(t, UserMessage, decoded.MessageType)
	require.NotNil(t, decoded.SentAt)
	require.True(t, now.Equal(*decoded.SentAt))
}

func TestMessageWireNames(t *testing.T) {
	t.Parallel()
	data, err := Encode(NewSystemMessage("alice joined the room.", UserJoined))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "System", raw["username"])
	require.Equal(t, "SYSTEM_MESSAGE", raw["message_type"])
	require.Equal(t, "USER_JOINED", raw["event_type"])
	require.Contains(t, raw, "sent_at")
	require.NotContains(t, raw, "user_id")
}

func TestDecodeClientFrame(t *testing.T) {
	t.Parallel()
	// Browsers send only the fields they know about.
	m, err := DecodeMessage([]byte(`{"username":"bob","message":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, "bob", m.Username)
	require.Equal(t, "hi", m.Message)
	require.Empty(t, m.MessageType)
	require.Nil(t, m.SentAt)
}

func TestDecodeInvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := DecodeMessage([]byte("not json"))
	require.Error(t, err)
}

func TestRoomListEncode(t *testing.T) {
	t.Parallel()
	data, err := Encode(RoomList{ChatRooms: []ChatRoom{{RoomID: "r1", RoomName: "room 1", UserCount: 2}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"chat_rooms":[{"room_id":"r1","room_name":"room 1","user_count":2}]}`, string(data))
}
