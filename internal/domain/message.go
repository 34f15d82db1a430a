package domain

import (
	"encoding/json"
	"time"
)

// MessageType distinguishes user chatter from server notices.
type MessageType string

// Message types.
const (
	UserMessage   MessageType = "USER_MESSAGE"
	SystemMessage MessageType = "SYSTEM_MESSAGE"
)

// EventType tags system messages that report membership changes.
type EventType string

// Event types.
const (
	UserJoined EventType = "USER_JOINED"
	UserLeft   EventType = "USER_LEFT"
)

// SystemUsername is the sender name used for server-generated messages.
const SystemUsername = "System"

// Message is the frame exchanged over a room socket.
type Message struct {
	UserID      string      `json:"user_id,omitempty"`
	Username    string      `json:"username"`
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type,omitempty"`
	EventType   EventType   `json:"event_type,omitempty"`
	SentAt      *time.Time  `json:"sent_at,omitempty"`
}

// History is a room's recent user messages, oldest first.
type History struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
}

// NewSystemMessage builds a server notice stamped with the current time.
func NewSystemMessage(text string, event EventType) Message {
	now := time.Now().UTC()
	return Message{
		Username:    SystemUsername,
		Message:     text,
		MessageType: SystemMessage,
		EventType:   event,
		SentAt:      &now,
	}
}

// Encode serializes a value to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeMessage deserializes JSON bytes into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
