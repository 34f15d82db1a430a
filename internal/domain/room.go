package domain

// ChatRoom describes a room as reported by the service.
type ChatRoom struct {
	RoomID    string `json:"room_id"`
	RoomName  string `json:"room_name"`
	UserCount int    `json:"user_count"`
}

// RoomList is the response body of the room listing endpoint.
type RoomList struct {
	ChatRooms []ChatRoom `json:"chat_rooms"`
}

// CreateRoomRequest is the request body of the room creation endpoint.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is returned by the service on failed requests.
type ErrorResponse struct {
	Message string `json:"message"`
}
