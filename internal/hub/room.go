package hub

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devaloi/chatrooms/internal/domain"
)

// Client is the interface that hub/room expects from a connected user.
type Client interface {
	Username() string
	Send(data []byte)
	Close()
}

// Room manages a set of clients and broadcasts messages to them.
type Room struct {
	id        string
	name      string
	seq       uint64
	clients   map[Client]bool
	mu        sync.RWMutex
	broadcast chan []byte
	idle      *time.Timer
	quit      chan struct{}
	stopOnce  sync.Once
}

// NewRoom creates a new room with the given id and display name.
func NewRoom(id, name string) *Room {
	return &Room{
		id:        id,
		name:      name,
		clients:   make(map[Client]bool),
		broadcast: make(chan []byte, 256),
		quit:      make(chan struct{}),
	}
}

// DefaultRoomName derives "room N" from a UUID room id, where N is the
// id read as a 128-bit integer modulo 10000.
func DefaultRoomName(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return "room " + id
	}
	n := new(big.Int).SetBytes(u[:])
	n.Mod(n, big.NewInt(10000))
	return fmt.Sprintf("room %d", n.Int64())
}

// Run starts the room's broadcast loop. Should be called as a goroutine.
func (r *Room) Run() {
	for {
		select {
		case msg := <-r.broadcast:
			r.mu.RLock()
			for c := range r.clients {
				c.Send(msg)
			}
			r.mu.RUnlock()
		case <-r.quit:
			return
		}
	}
}

// Stop signals the room's broadcast loop to exit. Safe to call more than once.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		if r.idle != nil {
			r.idle.Stop()
		}
		close(r.quit)
	})
}

// Join adds a client to the room and announces it to every member.
func (r *Room) Join(c Client) {
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()

	r.announce(c.Username()+" joined the room.", domain.UserJoined)
}

// Leave removes a client from the room and announces it to the rest.
func (r *Room) Leave(c Client) {
	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	r.mu.Unlock()

	if ok {
		r.announce(c.Username()+" left the room.", domain.UserLeft)
	}
}

// Broadcast sends a raw JSON message to all clients in the room.
func (r *Room) Broadcast(data []byte) {
	select {
	case r.broadcast <- data:
	case <-r.quit:
	}
}

// ClientCount returns the number of connected clients.
func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// Info returns the room as reported over the API.
func (r *Room) Info() domain.ChatRoom {
	return domain.ChatRoom{
		RoomID:    r.ID(),
		RoomName:  r.Name(),
		UserCount: r.ClientCount(),
	}
}

// Users returns a list of usernames in the room.
func (r *Room) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.clients))
	for c := range r.clients {
		users = append(users, c.Username())
	}
	return users
}

func (r *Room) announce(text string, event domain.EventType) {
	if data, err := domain.Encode(domain.NewSystemMessage(text, event)); err == nil {
		r.Broadcast(data)
	}
}
