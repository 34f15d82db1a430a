package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/devaloi/chatrooms/internal/domain"
	"github.com/devaloi/chatrooms/internal/hub"
)

// maxBodySize caps request bodies on JSON endpoints.
const maxBodySize = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("component", "handler").Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.ErrorResponse{Message: msg})
}

func roomNotFound(w http.ResponseWriter, roomID string) {
	writeError(w, http.StatusNotFound, "Chat room "+roomID+" not found")
}

// Health returns a simple health check handler.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ListRooms returns all active rooms with user counts.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.RoomList{ChatRooms: h.ListRooms()})
	}
}

// GetRoom returns details about a specific room.
func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomID")
		room, ok := h.GetRoom(roomID)
		if !ok {
			roomNotFound(w, roomID)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

// CreateRoom creates a room from an optional {"name": ...} body.
func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateRoomRequest
		err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		room, err := h.CreateRoom(req.Name)
		if errors.Is(err, hub.ErrMaxRooms) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if err != nil {
			log.Error().Err(err).Str("component", "handler").Msg("create room")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

// RoomHistory returns recent stored messages of a room.
func RoomHistory(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomID")
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		history, err := h.History(roomID, limit)
		if errors.Is(err, hub.ErrRoomNotFound) {
			roomNotFound(w, roomID)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("component", "handler").Str("room_id", roomID).Msg("load history")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}
