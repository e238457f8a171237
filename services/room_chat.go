package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"study-companion/models"
	"study-companion/realtime"
)

const maxRoomMessageLength = 2000

// RoomMessageRequest is the body of send_room_message.
type RoomMessageRequest struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// RoomChatService persists room chat and then fans it out.
type RoomChatService struct {
	rooms *RoomService
	hub   *realtime.Hub
	now   func() time.Time
}

func NewRoomChatService(rooms *RoomService, hub *realtime.Hub) *RoomChatService {
	return &RoomChatService{rooms: rooms, hub: hub, now: time.Now}
}

// Send stores the message and broadcasts it to the room. Nothing is
// broadcast unless the write succeeded; failures go to sender only.
func (s *RoomChatService) Send(ctx context.Context, sender realtime.Conn, req RoomMessageRequest) error {
	msg, err := s.send(ctx, req)
	if err != nil {
		log.Printf("[CHAT] message from %s to room %s rejected: %v", req.Username, req.Room, err)
		if sender != nil {
			_ = s.hub.PublishToOne(sender, realtime.EventRoomError, realtime.NoticePayload{
				Room:    req.Room,
				Message: notice(noticeChatFailed),
			})
		}
		return err
	}
	s.hub.Publish(req.Room, realtime.EventReceiveRoomMessage, msg)
	return nil
}

func (s *RoomChatService) send(ctx context.Context, req RoomMessageRequest) (models.RoomMessage, error) {
	text := strings.TrimSpace(req.Message)
	if req.Room == "" || req.Username == "" || text == "" {
		return models.RoomMessage{}, fmt.Errorf("%w: room, username and message are required", ErrValidation)
	}
	if len([]rune(text)) > maxRoomMessageLength {
		return models.RoomMessage{}, fmt.Errorf("%w: message longer than %d characters", ErrValidation, maxRoomMessageLength)
	}
	msg := models.RoomMessage{
		Username:  req.Username,
		Message:   text,
		Timestamp: s.now().UTC().Format(models.MessageTimeLayout),
	}
	if err := s.rooms.AppendMessage(ctx, req.Room, msg); err != nil {
		return models.RoomMessage{}, err
	}
	return msg, nil
}
