package testutil

import (
	"encoding/json"
	"sync"

	"github.com/devaloi/chatrooms/internal/domain"
)

// MockClient implements hub.Client for testing.
type MockClient struct {
	Name     string
	messages [][]byte
	closed   bool
	mu       sync.Mutex
}

// NewMockClient creates a new MockClient with the given name.
func NewMockClient(name string) *MockClient {
	return &MockClient{Name: name}
}

// Username returns the mock client's name.
func (m *MockClient) Username() string { return m.Name }

// Send records a message sent to the mock client.
func (m *MockClient) Send(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.messages = append(m.messages, cp)
}

// Close marks the mock client as closed.
func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetMessages returns a copy of all messages received by the mock client.
func (m *MockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]byte, len(m.messages))
	copy(cp, m.messages)
	return cp
}

// Decoded returns the received frames decoded as chat messages, skipping
// anything that does not decode.
func (m *MockClient) Decoded() []domain.Message {
	var out []domain.Message
	for _, raw := range m.GetMessages() {
		var msg domain.Message
		if err := json.Unmarshal(raw, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

// MockStore implements store.Store for testing.
type MockStore struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
	purged   []string
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{messages: make(map[string][]domain.Message)}
}

// Save persists a message in the mock store.
func (s *MockStore) Save(roomID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[roomID] = append(s.messages[roomID], msg)
	return nil
}

// History returns stored messages for a room.
func (s *MockStore) History(roomID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Purge drops stored messages for a room.
func (s *MockStore) Purge(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, roomID)
	s.purged = append(s.purged, roomID)
	return nil
}

// Purged returns the room ids passed to Purge.
func (s *MockStore) Purged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.purged...)
}

// Close is a no-op for the mock store.
func (s *MockStore) Close() error { return nil }
