package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/devaloi/chatrooms/internal/hub"
	"github.com/devaloi/chatrooms/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ConnectRoom upgrades /chat/{roomID}/connect/{username} to a room session.
func ConnectRoom(h *hub.Hub, maxSaved int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomID")
		username := r.PathValue("username")
		if _, ok := h.GetRoom(roomID); !ok {
			roomNotFound(w, roomID)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("component", "handler").Msg("ws upgrade failed")
			return
		}

		s := session.New(h, conn, roomID, username, maxSaved)
		if err := h.Join(roomID, s); err != nil {
			log.Info().Err(err).Str("component", "handler").Str("room_id", roomID).Msg("join rejected")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
			conn.Close()
			return
		}
		go s.ReadPump()
		go s.WritePump()
	}
}
