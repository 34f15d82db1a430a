package handler

import (
	"net/http"

	"github.com/devaloi/chatrooms/internal/hub"
)

// APIPrefix is the path every API route lives under.
const APIPrefix = "/api/v1"

// Routes mounts the health check and the chat API on mux.
func Routes(mux *http.ServeMux, h *hub.Hub, maxSaved int) {
	mux.HandleFunc("GET /health", Health())
	mux.HandleFunc("GET "+APIPrefix+"/chat/rooms", ListRooms(h))
	mux.HandleFunc("GET "+APIPrefix+"/chat/rooms/{roomID}", GetRoom(h))
	mux.HandleFunc("POST "+APIPrefix+"/chat/rooms/new", CreateRoom(h))
	mux.HandleFunc("GET "+APIPrefix+"/chat/history/{roomID}", RoomHistory(h))
	mux.HandleFunc("GET "+APIPrefix+"/chat/{roomID}/connect/{username}", ConnectRoom(h, maxSaved))
}
