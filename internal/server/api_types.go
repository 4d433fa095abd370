package server

// ============================================================================
// CREATE ROOM (create_room)
// ============================================================================
// tygo:generate
type CreateRoomRequest struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// ============================================================================
// JOIN ROOM (join_room)
// ============================================================================
// tygo:generate
type JoinRoomRequest struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// ============================================================================
// PLAY CARD (play_card)
// ============================================================================
// tygo:generate
type PlayCardRequest struct {
	Card string `json:"card"` // "10♠", "QH", "Td"
}

// ============================================================================
// CHAT (join, send_message)
// ============================================================================
// tygo:generate
type JoinChatRequest struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// tygo:generate
type SendMessageRequest struct {
	Message string `json:"message"`
}

// ready and leave_room carry no payload; the connection identifies the
// player.
