package realtime

// Inbound event names.
const (
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventSendRoomMessage  = "send_room_message"
	EventRoomTimerControl = "room_timer_control"
)

// Outbound event names.
const (
	EventStatus             = "status"
	EventRoomTimerUpdate    = "room_timer_update"
	EventRoomTimerError     = "room_timer_error"
	EventReceiveRoomMessage = "receive_room_message"
	EventRoomDeleted        = "room_deleted"
	EventRoomError          = "room_error"
	EventJoinError          = "join_error"
	EventExistingVideoUsers = "existing_video_users"
	EventVideoUserIdentity  = "video_user_identity"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// StatusPayload is the body of a status event.
type StatusPayload struct {
	Msg string `json:"msg"`
}

// NoticePayload is the body of room_deleted, room_error, join_error and room_timer_error.
type NoticePayload struct {
	Room    string `json:"room,omitempty"`
	Message string `json:"message"`
}

// VideoIdentity links a connection's video uid to a display name.
type VideoIdentity struct {
	VideoUID    uint32 `json:"video_uid"`
	DisplayName string `json:"display_name"`
}

// ExistingVideoUsers is sent to a joining connection.
type ExistingVideoUsers struct {
	Identities []VideoIdentity `json:"identities"`
}
