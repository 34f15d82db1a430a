package hub

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/devaloi/chatrooms/internal/domain"
	"github.com/devaloi/chatrooms/internal/store"
)

var (
	// ErrRoomNotFound is returned for operations on an unknown room id.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrMaxRooms is returned when the room limit has been reached.
	ErrMaxRooms = errors.New("max rooms reached")
)

// Options bound the hub's resource usage.
type Options struct {
	MaxRooms   int
	MaxHistory int
	// EmptyRoomTTL is how long a new room may stay without anyone joining
	// before it is removed.
	EmptyRoomTTL time.Duration
}

// JoinRequest asks the hub to add a client to a room.
type JoinRequest struct {
	Client Client
	RoomID string
}

// LeaveRequest asks the hub to remove a client from a room.
type LeaveRequest struct {
	Client Client
	RoomID string
}

// MessageRequest routes a message through the hub.
type MessageRequest struct {
	Message domain.Message
	RoomID  string
}

// Hub manages all rooms and routes messages between clients.
type Hub struct {
	rooms map[string]*Room
	mu    sync.RWMutex
	// requests carries JoinRequest, LeaveRequest and MessageRequest values
	// on one channel so each client's requests are handled in send order.
	requests chan any
	store    store.Store
	opts     Options
	nextSeq  uint64
	quit     chan struct{}
	stopOnce sync.Once
}

// New creates a new Hub. A nil store disables persistence.
func New(s store.Store, opts Options) *Hub {
	if opts.MaxRooms <= 0 {
		opts.MaxRooms = 100
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 50
	}
	if opts.EmptyRoomTTL <= 0 {
		opts.EmptyRoomTTL = 10 * time.Second
	}
	return &Hub{
		rooms:    make(map[string]*Room),
		requests: make(chan any, 768),
		store:    s,
		opts:     opts,
		quit:     make(chan struct{}),
	}
}

// Run starts the hub's main event loop. Should be called as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case req := <-h.requests:
			switch req := req.(type) {
			case JoinRequest:
				h.handleJoin(req)
			case LeaveRequest:
				h.handleLeave(req)
			case MessageRequest:
				h.handleMessage(req)
			}
		case <-h.quit:
			return
		}
	}
}

// Stop signals the hub's event loop to exit and stops all rooms.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, r := range h.rooms {
			r.Stop()
		}
	})
}

// CreateRoom registers a new room. An empty name is replaced by one derived
// from the room id.
func (h *Hub) CreateRoom(name string) (domain.ChatRoom, error) {
	id := uuid.NewString()
	if name == "" {
		name = DefaultRoomName(id)
	}

	h.mu.Lock()
	if len(h.rooms) >= h.opts.MaxRooms {
		h.mu.Unlock()
		return domain.ChatRoom{}, ErrMaxRooms
	}
	r := NewRoom(id, name)
	h.nextSeq++
	r.seq = h.nextSeq
	r.idle = time.AfterFunc(h.opts.EmptyRoomTTL, func() {
		h.removeIfEmpty(id, "inactive")
	})
	h.rooms[id] = r
	h.mu.Unlock()

	go r.Run()
	log.Info().Str("component", "hub").Str("room_id", id).Str("room_name", name).Msg("room created")
	return r.Info(), nil
}

// ListRooms returns info about all active rooms, oldest first.
func (h *Hub) ListRooms() []domain.ChatRoom {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]domain.ChatRoom, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

// GetRoom returns details about a specific room.
func (h *Hub) GetRoom(id string) (domain.ChatRoom, bool) {
	r, ok := h.room(id)
	if !ok {
		return domain.ChatRoom{}, false
	}
	return r.Info(), true
}

// DeleteRoom stops a room, disconnects its members and drops its history.
func (h *Hub) DeleteRoom(id string) error {
	h.mu.Lock()
	r, ok := h.rooms[id]
	if !ok {
		h.mu.Unlock()
		return ErrRoomNotFound
	}
	delete(h.rooms, id)
	h.mu.Unlock()

	h.teardown(r, "deleted")
	return nil
}

// History returns the last `limit` stored messages of a room. A limit
// outside (0, MaxHistory] is treated as MaxHistory.
func (h *Hub) History(id string, limit int) (domain.History, error) {
	if _, ok := h.room(id); !ok {
		return domain.History{}, ErrRoomNotFound
	}
	if limit <= 0 || limit > h.opts.MaxHistory {
		limit = h.opts.MaxHistory
	}
	out := domain.History{RoomID: id, Messages: []domain.Message{}}
	if h.store == nil {
		return out, nil
	}
	msgs, err := h.store.History(id, limit)
	if err != nil {
		return domain.History{}, errors.Wrap(err, "load history")
	}
	out.Messages = msgs
	return out, nil
}

// Join queues a client registration for an existing room.
func (h *Hub) Join(id string, c Client) error {
	if _, ok := h.room(id); !ok {
		return ErrRoomNotFound
	}
	select {
	case h.requests <- JoinRequest{Client: c, RoomID: id}:
		return nil
	case <-h.quit:
		return errors.New("hub stopped")
	}
}

// Leave queues a client unregistration.
func (h *Hub) Leave(id string, c Client) {
	select {
	case h.requests <- LeaveRequest{Client: c, RoomID: id}:
	case <-h.quit:
	}
}

// Broadcast queues a message for delivery to every member of a room.
func (h *Hub) Broadcast(id string, msg domain.Message) error {
	if _, ok := h.room(id); !ok {
		return ErrRoomNotFound
	}
	select {
	case h.requests <- MessageRequest{Message: msg, RoomID: id}:
		return nil
	case <-h.quit:
		return errors.New("hub stopped")
	}
}

func (h *Hub) room(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) handleJoin(req JoinRequest) {
	r, ok := h.room(req.RoomID)
	if !ok {
		// The room went away between Join and now.
		msg := domain.NewSystemMessage("Chat room "+req.RoomID+" not found", "")
		if data, err := domain.Encode(msg); err == nil {
			req.Client.Send(data)
		}
		req.Client.Close()
		return
	}
	r.Join(req.Client)
	log.Debug().Str("component", "hub").Str("room_id", req.RoomID).Str("user", req.Client.Username()).Msg("user joined")
}

func (h *Hub) handleLeave(req LeaveRequest) {
	r, ok := h.room(req.RoomID)
	if !ok {
		return
	}
	r.Leave(req.Client)
	log.Debug().Str("component", "hub").Str("room_id", req.RoomID).Str("user", req.Client.Username()).Msg("user left")

	h.removeIfEmpty(req.RoomID, "empty")
}

func (h *Hub) handleMessage(req MessageRequest) {
	r, ok := h.room(req.RoomID)
	if !ok {
		return
	}

	if h.store != nil && req.Message.MessageType == domain.UserMessage {
		if err := h.store.Save(req.RoomID, req.Message); err != nil {
			log.Error().Err(err).Str("component", "hub").Str("room_id", req.RoomID).Msg("store save failed")
		}
	}

	if data, err := domain.Encode(req.Message); err == nil {
		r.Broadcast(data)
	}
}

// removeIfEmpty deletes a room that has no members.
func (h *Hub) removeIfEmpty(id, reason string) {
	h.mu.Lock()
	r, ok := h.rooms[id]
	if !ok || r.ClientCount() != 0 {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, id)
	h.mu.Unlock()

	h.teardown(r, reason)
}

func (h *Hub) teardown(r *Room, reason string) {
	r.mu.RLock()
	members := make([]Client, 0, len(r.clients))
	for c := range r.clients {
		members = append(members, c)
	}
	r.mu.RUnlock()
	for _, c := range members {
		c.Close()
	}
	r.Stop()

	if h.store != nil {
		if err := h.store.Purge(r.id); err != nil {
			log.Error().Err(err).Str("component", "hub").Str("room_id", r.id).Msg("purge failed")
		}
	}
	log.Info().Str("component", "hub").Str("room_id", r.id).Str("reason", reason).Msg("room deleted")
}
